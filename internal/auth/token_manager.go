package auth

import (
	"context"
	"fmt"
	"sync"
)

// TokenManager completes device-code sign-ins and refreshes tokens,
// persisting every new token set to its store.
type TokenManager struct {
	store TokenStore
	mu    sync.Mutex
}

// NewTokenManager creates a TokenManager backed by store.
func NewTokenManager(store TokenStore) *TokenManager {
	return &TokenManager{store: store}
}

// Complete polls flow until the user finishes signing in, then saves the tokens.
func (tm *TokenManager) Complete(ctx context.Context, flow *GraphDeviceFlow, deviceCode string, interval int) (GraphTokens, error) {
	tokens, err := flow.PollToken(ctx, deviceCode, interval)
	if err != nil {
		return GraphTokens{}, err
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if err := tm.store.Save(tokens); err != nil {
		// Signed in for this session but nothing persisted.
		return tokens, fmt.Errorf("signed in but failed to save tokens: %w", err)
	}
	return tokens, nil
}

// Refresh exchanges the stored refresh token for a new token set.
// On success, the new tokens replace the stored ones.
func (tm *TokenManager) Refresh(ctx context.Context, flow *GraphDeviceFlow) (GraphTokens, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	current, err := tm.store.Load()
	if err != nil {
		return GraphTokens{}, err
	}
	if current.RefreshToken == "" {
		return GraphTokens{}, fmt.Errorf("no refresh token available")
	}

	tokens, err := flow.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return GraphTokens{}, err
	}
	if err := tm.store.Save(tokens); err != nil {
		// Token refreshed in memory but save failed -- still return it
		// since the token is usable for this session
		return tokens, fmt.Errorf("token refreshed but failed to save: %w", err)
	}
	return tokens, nil
}

// Load returns the stored tokens or ErrNoTokens.
func (tm *TokenManager) Load() (GraphTokens, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.store.Load()
}

// Clear removes the stored tokens.
func (tm *TokenManager) Clear() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.store.Clear()
}
