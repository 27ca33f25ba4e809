// Package commands binds the shell, filesystem and Microsoft Graph
// operations to their bridge command names.
package commands

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/auth"
	"github.com/waabox/deskbridge/internal/bridge"
	"github.com/waabox/deskbridge/internal/launcher"
)

// Command names as invoked by the front-end.
const (
	OpenURL              = "open_url"
	OpenFolder           = "open_folder"
	RevealInFinder       = "reveal_in_finder"
	PathKind             = "path_kind"
	SaveTextFile         = "save_text_file"
	ReadTextFile         = "read_text_file"
	GraphDeviceCodeStart = "graph_device_code_start"
	GraphTokensPath      = "graph_tokens_path"
	GraphDeviceCodePoll  = "graph_device_code_poll"
	GraphTokensLoad      = "graph_tokens_load"
	GraphTokensClear     = "graph_tokens_clear"
	GraphTokenRefresh    = "graph_token_refresh"
)

// GraphSettings configures the identity-provider calls.
type GraphSettings struct {
	// ClientID is used when a request omits client_id.
	ClientID string
	// BaseURL overrides login.microsoftonline.com.
	BaseURL string
	Tenant  string
	Timeout time.Duration
	// PollUnit is the length of one polling interval step. Zero means one second.
	PollUnit time.Duration
}

// Deps are the collaborators the command handlers use.
type Deps struct {
	AppID    string
	Launcher launcher.Launcher
	// Tokens may be nil, in which case the token persistence commands fail.
	Tokens *auth.TokenManager
	Graph  GraphSettings
	Logger *zap.Logger
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// Register adds every command to r.
func Register(r *bridge.Router, deps Deps) error {
	if deps.Launcher == nil {
		return fmt.Errorf("commands: launcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handlers{deps: deps, logger: deps.Logger.Named("commands")}

	sync := map[string]bridge.Handler{
		OpenURL:          bridge.Typed(h.openURL),
		OpenFolder:       bridge.Typed(h.openFolder),
		RevealInFinder:   bridge.Typed(h.reveal),
		PathKind:         bridge.Typed(h.pathKind),
		SaveTextFile:     bridge.Typed(h.saveTextFile),
		ReadTextFile:     bridge.Typed(h.readTextFile),
		GraphTokensPath:  bridge.Typed(h.tokensPath),
		GraphTokensLoad:  bridge.Typed(h.tokensLoad),
		GraphTokensClear: bridge.Typed(h.tokensClear),
	}
	for name, fn := range sync {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}

	async := map[string]bridge.Handler{
		GraphDeviceCodeStart: bridge.Typed(h.deviceCodeStart),
		GraphDeviceCodePoll:  bridge.Typed(h.deviceCodePoll),
		GraphTokenRefresh:    bridge.Typed(h.tokenRefresh),
	}
	for name, fn := range async {
		if err := r.RegisterAsync(name, fn); err != nil {
			return err
		}
	}
	return nil
}
