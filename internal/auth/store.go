package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"github.com/waabox/deskbridge/internal/config"
)

// TokensFileName is the file holding Graph tokens inside the app config dir.
const TokensFileName = "graph_tokens.json"

// keyringAccount is the account name used for the keyring entry.
const keyringAccount = "graph_tokens"

// Store kinds accepted by NewTokenStore.
const (
	StoreFile    = "file"
	StoreKeyring = "keyring"
)

// ErrNoTokens is returned by TokenStore.Load when nothing has been saved.
var ErrNoTokens = errors.New("no graph tokens stored")

// TokenStore persists GraphTokens between runs.
type TokenStore interface {
	Load() (GraphTokens, error)
	Save(tokens GraphTokens) error
	Clear() error
}

// TokensPath returns the path of the token file for appID. The directory is
// created if possible; creation errors are ignored.
func TokensPath(appID string) string {
	dir := config.AppConfigDir(appID)
	_ = os.MkdirAll(dir, 0700)
	return filepath.Join(dir, TokensFileName)
}

// NewTokenStore returns the store selected by kind.
func NewTokenStore(kind string, appID string) (TokenStore, error) {
	switch kind {
	case "", StoreFile:
		return NewFileStore(TokensPath(appID)), nil
	case StoreKeyring:
		return NewKeyringStore(appID), nil
	default:
		return nil, fmt.Errorf("unknown token store %q (want %q or %q)", kind, StoreFile, StoreKeyring)
	}
}

// FileStore keeps tokens as JSON in a file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (GraphTokens, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return GraphTokens{}, ErrNoTokens
	}
	if err != nil {
		return GraphTokens{}, fmt.Errorf("reading token file: %w", err)
	}
	var tokens GraphTokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return GraphTokens{}, fmt.Errorf("decoding token file: %w", err)
	}
	return tokens, nil
}

func (s *FileStore) Save(tokens GraphTokens) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// KeyringStore keeps tokens in the system keychain under the given service.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a KeyringStore for service.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Load() (GraphTokens, error) {
	encoded, err := keyring.Get(s.service, keyringAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return GraphTokens{}, ErrNoTokens
	}
	if err != nil {
		return GraphTokens{}, fmt.Errorf("keychain get: %w", err)
	}
	var tokens GraphTokens
	if err := json.Unmarshal([]byte(encoded), &tokens); err != nil {
		return GraphTokens{}, fmt.Errorf("decoding keychain entry: %w", err)
	}
	return tokens, nil
}

func (s *KeyringStore) Save(tokens GraphTokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}
	if err := keyring.Set(s.service, keyringAccount, string(data)); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	if err := keyring.Delete(s.service, keyringAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}
