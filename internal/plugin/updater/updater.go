// Package updater is the update-check plugin. It fetches a JSON manifest
// describing the latest release and compares its version with the running
// one. Downloading and installing are left to the host.
package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/bridge"
	"github.com/waabox/deskbridge/internal/plugin"
)

// Name is the plugin name used in command names.
const Name = "updater"

// ErrNoEndpoint is returned by Check when no manifest endpoint is configured.
var ErrNoEndpoint = errors.New("updater endpoint is not configured")

// Platform is one downloadable artifact in a manifest.
type Platform struct {
	URL       string `json:"url"`
	Signature string `json:"signature"`
}

// Manifest is the document served at the update endpoint.
type Manifest struct {
	Version   string              `json:"version"`
	Notes     string              `json:"notes"`
	PubDate   string              `json:"pub_date"`
	Platforms map[string]Platform `json:"platforms"`
}

// Update is the result of a check.
type Update struct {
	Available      bool   `json:"available"`
	Version        string `json:"version,omitempty"`
	CurrentVersion string `json:"currentVersion"`
	Notes          string `json:"notes,omitempty"`
	Date           string `json:"date,omitempty"`
	URL            string `json:"url,omitempty"`
	Signature      string `json:"signature,omitempty"`
}

// Plugin checks a manifest endpoint for newer releases.
type Plugin struct {
	endpoint string
	current  string
	goos     string
	goarch   string
	client   *http.Client
	logger   *zap.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

// Option customises a Plugin.
type Option func(*Plugin)

// WithPlatform overrides the running OS and architecture.
func WithPlatform(goos, goarch string) Option {
	return func(p *Plugin) {
		p.goos = goos
		p.goarch = goarch
	}
}

// WithHTTPClient sets the client used for manifest requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Plugin) {
		if c != nil {
			p.client = c
		}
	}
}

// New creates the updater plugin. endpoint may contain the placeholders
// {{current_version}}, {{target}} and {{arch}}.
func New(endpoint, currentVersion string, logger *zap.Logger, opts ...Option) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Plugin{
		endpoint: endpoint,
		current:  currentVersion,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.Named(Name),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Close() error { return nil }

func (p *Plugin) Register(r *bridge.Router) error {
	return r.RegisterAsync(plugin.Command(Name, "check"), bridge.Typed(func(ctx context.Context, _ struct{}) (any, error) {
		return p.Check(ctx)
	}))
}

// Target returns the manifest platform key for the running system,
// for example "linux-x86_64" or "darwin-aarch64".
func (p *Plugin) Target() string {
	return p.goos + "-" + archName(p.goarch)
}

func archName(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	case "arm":
		return "armv7"
	default:
		return goarch
	}
}

// URL expands the endpoint placeholders.
func (p *Plugin) URL() string {
	return strings.NewReplacer(
		"{{current_version}}", p.current,
		"{{target}}", p.goos,
		"{{arch}}", archName(p.goarch),
	).Replace(p.endpoint)
}

// Check fetches the manifest and reports whether it offers a newer version
// for this platform. A 204 response means no update.
func (p *Plugin) Check(ctx context.Context) (Update, error) {
	result := Update{CurrentVersion: p.current}
	if p.endpoint == "" {
		return result, ErrNoEndpoint
	}
	current, err := semver.NewVersion(p.current)
	if err != nil {
		return result, fmt.Errorf("invalid current version %q: %w", p.current, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(), nil)
	if err != nil {
		return result, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("fetching update manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return result, nil
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("update manifest request failed: HTTP %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return result, fmt.Errorf("decoding update manifest: %w", err)
	}
	latest, err := semver.NewVersion(m.Version)
	if err != nil {
		return result, fmt.Errorf("invalid manifest version %q: %w", m.Version, err)
	}
	if !latest.GreaterThan(current) {
		p.logger.Debug("No update available", zap.String("current", current.String()), zap.String("latest", latest.String()))
		return result, nil
	}

	platform, ok := m.Platforms[p.Target()]
	if !ok {
		return result, fmt.Errorf("version %s has no build for %s", m.Version, p.Target())
	}
	p.logger.Info("Update available", zap.String("current", current.String()), zap.String("latest", latest.String()))
	return Update{
		Available:      true,
		Version:        m.Version,
		CurrentVersion: p.current,
		Notes:          m.Notes,
		Date:           m.PubDate,
		URL:            platform.URL,
		Signature:      platform.Signature,
	}, nil
}
