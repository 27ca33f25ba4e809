// Package app wires configuration, plugins and commands into a running
// bridge.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/waabox/deskbridge/internal/auth"
	"github.com/waabox/deskbridge/internal/bridge"
	"github.com/waabox/deskbridge/internal/commands"
	"github.com/waabox/deskbridge/internal/config"
	"github.com/waabox/deskbridge/internal/launcher"
	"github.com/waabox/deskbridge/internal/plugin"
	"github.com/waabox/deskbridge/internal/plugin/dialog"
	"github.com/waabox/deskbridge/internal/plugin/shortcut"
	"github.com/waabox/deskbridge/internal/plugin/sqldb"
	"github.com/waabox/deskbridge/internal/plugin/updater"
)

// Options overrides collaborators that default to the real platform.
type Options struct {
	Version string
	// GOOS selects launcher, dialog and shortcut behaviour. Empty means runtime.GOOS.
	GOOS         string
	Launcher     launcher.Launcher
	TokenStore   auth.TokenStore
	DialogRunner dialog.Runner
	// DataDir holds SQL plugin databases. Empty means the app config dir.
	DataDir string
}

// App is a configured bridge with its plugins installed.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	router  *bridge.Router
	hub     *bridge.Hub
	plugins *plugin.Registry
	tokens  *auth.TokenManager
}

// New builds the router, installs the sql, dialog, global-shortcut and
// updater plugins and registers the command table.
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	appID := cfg.AppIDOrDefault()

	store := opts.TokenStore
	if store == nil {
		var err error
		store, err = auth.NewTokenStore(cfg.TokenStoreOrDefault(), appID)
		if err != nil {
			return nil, err
		}
	}
	l := opts.Launcher
	if l == nil {
		l = launcher.New(goos, nil)
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = config.AppConfigDir(appID)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		router:  bridge.NewRouter(logger.Named("bridge")),
		hub:     bridge.NewHub(),
		plugins: plugin.NewRegistry(logger),
		tokens:  auth.NewTokenManager(store),
	}

	for _, p := range []plugin.Plugin{
		sqldb.New(dataDir, logger),
		dialog.New(goos, opts.DialogRunner, logger),
		shortcut.New(goos, a.hub, logger),
		updater.New(cfg.Updater.Endpoint, opts.Version, logger,
			updater.WithHTTPClient(&http.Client{Timeout: cfg.UpdaterTimeout()})),
	} {
		if err := a.plugins.Install(a.router, p); err != nil {
			_ = a.plugins.Close()
			return nil, err
		}
	}

	err := commands.Register(a.router, commands.Deps{
		AppID:    appID,
		Launcher: l,
		Tokens:   a.tokens,
		Graph: commands.GraphSettings{
			ClientID: cfg.Graph.ClientID,
			BaseURL:  cfg.Graph.AuthorityURL,
			Tenant:   cfg.TenantOrDefault(),
			Timeout:  cfg.GraphTimeout(),
		},
		Logger: logger,
	})
	if err != nil {
		_ = a.plugins.Close()
		return nil, fmt.Errorf("registering commands: %w", err)
	}

	logger.Info("Bridge ready",
		zap.String("app_id", appID),
		zap.String("platform", goos),
		zap.Strings("plugins", a.plugins.Names()),
		zap.Int("commands", len(a.router.Commands())),
	)
	return a, nil
}

// Router returns the command router.
func (a *App) Router() *bridge.Router { return a.router }

// Hub returns the event hub shared by all transports.
func (a *App) Hub() *bridge.Hub { return a.hub }

// Run serves the bridge on in/out until in is closed or ctx is cancelled. When a websocket
// address is configured the websocket transport runs alongside and stops
// with it. A listen failure is returned before anything is read from in.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Bridge.WebSocketAddr; addr != "" {
		ws := bridge.NewWebSocketServer(addr, a.cfg.Bridge.AllowedOrigins, a.router, a.hub, a.logger.Named("websocket"))
		ln, err := ws.Listen()
		if err != nil {
			return err
		}
		eg.Go(func() error { return ws.Serve(ctx, ln) })
	}

	eg.Go(func() error {
		defer cancel()
		return bridge.NewServer(a.router, a.hub, a.logger.Named("stdio")).Serve(ctx, in, out)
	})
	return eg.Wait()
}

// Close shuts down every plugin.
func (a *App) Close() error {
	return a.plugins.Close()
}
