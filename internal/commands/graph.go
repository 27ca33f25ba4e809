package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/auth"
	"github.com/waabox/deskbridge/internal/config"
)

var (
	errNoClientID = errors.New("client_id is required")
	errNoStore    = errors.New("token store is not configured")
)

// clientArgs accepts both the snake_case and camelCase spellings of the
// client identifier; webview bindings usually send the latter.
type clientArgs struct {
	ClientID      string `json:"client_id"`
	ClientIDCamel string `json:"clientId"`
}

func (a clientArgs) id() string {
	if a.ClientID != "" {
		return a.ClientID
	}
	return a.ClientIDCamel
}

type pollArgs struct {
	clientArgs
	DeviceCode      string `json:"device_code"`
	DeviceCodeCamel string `json:"deviceCode"`
	Interval        int    `json:"interval"`
}

func (a pollArgs) deviceCode() string {
	if a.DeviceCode != "" {
		return a.DeviceCode
	}
	return a.DeviceCodeCamel
}

type noArgs struct{}

// newFlow builds a device flow for clientID, falling back to the configured one.
func (h *handlers) newFlow(clientID string) *auth.GraphDeviceFlow {
	if clientID == "" {
		clientID = h.deps.Graph.ClientID
	}
	g := h.deps.Graph
	return auth.NewGraphDeviceFlow(clientID, g.BaseURL,
		auth.WithTenant(g.Tenant), auth.WithTimeout(g.Timeout), auth.WithPollUnit(g.PollUnit))
}

// flow is newFlow for the token commands, which need a client identifier.
func (h *handlers) flow(clientID string) (*auth.GraphDeviceFlow, error) {
	if clientID == "" && h.deps.Graph.ClientID == "" {
		return nil, errNoClientID
	}
	return h.newFlow(clientID), nil
}

// deviceCodeStart posts whatever client identifier it has, even an empty
// one; the provider's rejection comes back as the result.
func (h *handlers) deviceCodeStart(ctx context.Context, args clientArgs) (any, error) {
	return h.newFlow(args.id()).Start(ctx)
}

func (h *handlers) deviceCodePoll(ctx context.Context, args pollArgs) (any, error) {
	if h.deps.Tokens == nil {
		return nil, errNoStore
	}
	if args.deviceCode() == "" {
		return nil, fmt.Errorf("device_code is required")
	}
	flow, err := h.flow(args.id())
	if err != nil {
		return nil, err
	}
	interval := args.Interval
	if interval <= 0 {
		interval = auth.DefaultPollInterval
	}
	tokens, err := h.deps.Tokens.Complete(ctx, flow, args.deviceCode(), interval)
	return h.sessionTokens(tokens, err)
}

// sessionTokens keeps tokens that were issued but could not be persisted:
// they are still valid for this session.
func (h *handlers) sessionTokens(tokens auth.GraphTokens, err error) (any, error) {
	if err != nil {
		if tokens.AccessToken == "" {
			return nil, err
		}
		h.logger.Warn("Graph tokens were issued but not saved", zap.Error(err))
	}
	return tokens, nil
}

func (h *handlers) tokenRefresh(ctx context.Context, args clientArgs) (any, error) {
	if h.deps.Tokens == nil {
		return nil, errNoStore
	}
	flow, err := h.flow(args.id())
	if err != nil {
		return nil, err
	}
	return h.sessionTokens(h.deps.Tokens.Refresh(ctx, flow))
}

func (h *handlers) tokensPath(context.Context, noArgs) (any, error) {
	appID := h.deps.AppID
	if appID == "" {
		appID = config.DefaultAppID
	}
	return auth.TokensPath(appID), nil
}

// tokensLoad returns nil when nothing has been stored yet.
func (h *handlers) tokensLoad(context.Context, noArgs) (any, error) {
	if h.deps.Tokens == nil {
		return nil, errNoStore
	}
	tokens, err := h.deps.Tokens.Load()
	if errors.Is(err, auth.ErrNoTokens) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (h *handlers) tokensClear(context.Context, noArgs) (any, error) {
	if h.deps.Tokens == nil {
		return nil, errNoStore
	}
	return nil, h.deps.Tokens.Clear()
}
