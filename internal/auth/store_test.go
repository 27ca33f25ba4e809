package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/waabox/deskbridge/internal/auth"
)

func TestFileStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app", auth.TokensFileName)
	store := auth.NewFileStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, auth.ErrNoTokens)

	tokens := auth.GraphTokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600, TokenType: "Bearer"}
	require.NoError(t, store.Save(tokens))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, tokens, loaded)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, auth.ErrNoTokens)

	// Clearing twice is fine.
	assert.NoError(t, store.Clear())
}

func TestFileStore_UsesProviderFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), auth.TokensFileName)
	require.NoError(t, auth.NewFileStore(path).Save(auth.GraphTokens{AccessToken: "a"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"a"}`, string(data))
}

func TestFileStore_CorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), auth.TokensFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := auth.NewFileStore(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNoTokens)
}

func TestKeyringStore_SaveLoadClear(t *testing.T) {
	keyring.MockInit()
	store := auth.NewKeyringStore("deskbridge-test")

	_, err := store.Load()
	assert.ErrorIs(t, err, auth.ErrNoTokens)

	tokens := auth.GraphTokens{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Save(tokens))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, tokens, loaded)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, auth.ErrNoTokens)
	assert.NoError(t, store.Clear())
}

func TestTokensPath_CreatesDirectory(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())

	path := auth.TokensPath("deskbridge-test")
	assert.Equal(t, auth.TokensFileName, filepath.Base(path))
	assert.Equal(t, "deskbridge-test", filepath.Base(filepath.Dir(path)))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewTokenStore(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())

	store, err := auth.NewTokenStore("", "deskbridge-test")
	require.NoError(t, err)
	assert.IsType(t, &auth.FileStore{}, store)

	store, err = auth.NewTokenStore(auth.StoreKeyring, "deskbridge-test")
	require.NoError(t, err)
	assert.IsType(t, &auth.KeyringStore{}, store)

	_, err = auth.NewTokenStore("s3", "deskbridge-test")
	assert.Error(t, err)
}
