package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// GraphScopes is the fixed scope list requested for Microsoft Graph.
const GraphScopes = "offline_access openid profile email https://graph.microsoft.com/Calendars.ReadWrite https://graph.microsoft.com/User.Read"

const (
	graphDefaultBaseURL = "https://login.microsoftonline.com"
	graphDefaultTenant  = "organizations"
	graphDefaultTimeout = 15 * time.Second
)

// DefaultPollInterval is the polling interval in seconds used when the
// provider or the caller does not supply one.
const DefaultPollInterval = 5

// slowDownStep is added to the interval on each slow_down response (RFC 8628 §3.5).
const slowDownStep = 5

// GraphDeviceFlow implements the OAuth 2.0 Device Authorization Flow for the
// Microsoft identity platform.
// See https://learn.microsoft.com/en-us/entra/identity-platform/v2-oauth2-device-code
type GraphDeviceFlow struct {
	clientID string
	baseURL  string
	tenant   string
	client   *http.Client
	pollUnit time.Duration
}

// Option customises a GraphDeviceFlow.
type Option func(*GraphDeviceFlow)

// WithTenant selects the tenant path segment. Empty keeps "organizations".
func WithTenant(tenant string) Option {
	return func(f *GraphDeviceFlow) {
		if tenant != "" {
			f.tenant = tenant
		}
	}
}

// WithTimeout sets the HTTP client timeout. Zero keeps the 15s default.
func WithTimeout(d time.Duration) Option {
	return func(f *GraphDeviceFlow) {
		if d > 0 {
			f.client = &http.Client{Timeout: d}
		}
	}
}

// WithPollUnit sets the duration of one interval step. Zero keeps one second.
func WithPollUnit(d time.Duration) Option {
	return func(f *GraphDeviceFlow) {
		if d > 0 {
			f.pollUnit = d
		}
	}
}

// NewGraphDeviceFlow creates a GraphDeviceFlow.
// Pass an empty baseURL to use login.microsoftonline.com. Pass a test server URL in tests.
func NewGraphDeviceFlow(clientID string, baseURL string, opts ...Option) *GraphDeviceFlow {
	if baseURL == "" {
		baseURL = graphDefaultBaseURL
	}
	f := &GraphDeviceFlow{
		clientID: clientID,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		tenant:   graphDefaultTenant,
		client:   &http.Client{Timeout: graphDefaultTimeout},
		pollUnit: time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Endpoint returns the device, token and authorize URLs for the configured tenant.
func (f *GraphDeviceFlow) Endpoint() oauth2.Endpoint {
	var ep oauth2.Endpoint
	if f.baseURL == graphDefaultBaseURL {
		ep = microsoft.AzureADEndpoint(f.tenant)
	} else {
		prefix := f.baseURL + "/" + f.tenant + "/oauth2/v2.0"
		ep = oauth2.Endpoint{
			AuthURL:       prefix + "/authorize",
			DeviceAuthURL: prefix + "/devicecode",
			TokenURL:      prefix + "/token",
		}
	}
	// Public client: no secret, client_id travels in the form body.
	ep.AuthStyle = oauth2.AuthStyleInParams
	return ep
}

// Start issues the device authorization request and returns the decoded JSON
// body unmodified. Error responses from the provider are returned as values;
// only transport and decode failures are errors.
func (f *GraphDeviceFlow) Start(ctx context.Context) (map[string]any, error) {
	data := url.Values{}
	data.Set("client_id", f.clientID)
	data.Set("scope", GraphScopes)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint().DeviceAuthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting device code: %w", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding device code response: %w", err)
	}
	return body, nil
}

// RequestCode runs Start and interprets the body. Unlike Start, a provider
// error response is reported as an error.
func (f *GraphDeviceFlow) RequestCode(ctx context.Context) (DeviceCodeResponse, error) {
	body, err := f.Start(ctx)
	if err != nil {
		return DeviceCodeResponse{}, err
	}
	if code := stringField(body, "error"); code != "" {
		return DeviceCodeResponse{}, fmt.Errorf("device code request rejected: %s: %s", code, firstLine(stringField(body, "error_description")))
	}
	code := DeviceCodeResponse{
		DeviceCode:      stringField(body, "device_code"),
		UserCode:        stringField(body, "user_code"),
		VerificationURI: stringField(body, "verification_uri"),
		ExpiresIn:       intField(body, "expires_in"),
		Interval:        intField(body, "interval"),
		Message:         stringField(body, "message"),
	}
	if code.DeviceCode == "" || code.UserCode == "" {
		return DeviceCodeResponse{}, fmt.Errorf("device code response is missing device_code or user_code")
	}
	return code, nil
}

// PollToken polls the token endpoint until tokens are granted or an error occurs.
// interval is the polling interval in seconds; 0 polls once without waiting
// and keeps doing so until the provider answers slow_down.
// Handles authorization_pending, slow_down, expired_token and authorization_declined.
func (f *GraphDeviceFlow) PollToken(ctx context.Context, deviceCode string, interval int) (GraphTokens, error) {
	if interval < 0 {
		interval = 0
	}
	tokenEndpoint := f.Endpoint().TokenURL

	for {
		if interval > 0 {
			select {
			case <-time.After(time.Duration(interval) * f.pollUnit):
			case <-ctx.Done():
				return GraphTokens{}, ctx.Err()
			}
		} else {
			select {
			case <-ctx.Done():
				return GraphTokens{}, ctx.Err()
			default:
			}
		}

		data := url.Values{}
		data.Set("client_id", f.clientID)
		data.Set("device_code", deviceCode)
		data.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
		if err != nil {
			return GraphTokens{}, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := f.client.Do(req)
		if err != nil {
			return GraphTokens{}, fmt.Errorf("polling token: %w", err)
		}

		var raw struct {
			GraphTokens
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&raw)
		resp.Body.Close()
		if decodeErr != nil {
			return GraphTokens{}, fmt.Errorf("decoding token response: %w", decodeErr)
		}

		switch raw.Error {
		case "":
			if raw.AccessToken != "" {
				return raw.GraphTokens, nil
			}
			// server returned neither token nor error; check context and retry
			select {
			case <-ctx.Done():
				return GraphTokens{}, ctx.Err()
			default:
			}
		case "authorization_pending":
			// keep polling
		case "slow_down":
			interval += slowDownStep
		case "expired_token", "code_expired":
			return GraphTokens{}, fmt.Errorf("device code expired: start the sign-in again")
		case "authorization_declined", "access_denied":
			return GraphTokens{}, fmt.Errorf("access denied by user")
		case "bad_verification_code":
			return GraphTokens{}, fmt.Errorf("device code was not recognised by the provider")
		default:
			errMsg := raw.Error
			if len(errMsg) > 100 {
				errMsg = errMsg[:100]
			}
			return GraphTokens{}, fmt.Errorf("unexpected error from identity provider: %s", errMsg)
		}
	}
}

// Refresh exchanges refreshToken for a new token set. If the provider does
// not rotate the refresh token, the old one is kept.
func (f *GraphDeviceFlow) Refresh(ctx context.Context, refreshToken string) (GraphTokens, error) {
	conf := &oauth2.Config{
		ClientID: f.clientID,
		Endpoint: f.Endpoint(),
		Scopes:   strings.Fields(GraphScopes),
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return GraphTokens{}, fmt.Errorf("refreshing token: %w", err)
	}
	return tokensFromOAuth(tok), nil
}

func tokensFromOAuth(tok *oauth2.Token) GraphTokens {
	tokens := GraphTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		tokens.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	return tokens
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

// intField reads a JSON number; some providers send numeric fields as strings.
func intField(body map[string]any, key string) int {
	switch v := body[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
