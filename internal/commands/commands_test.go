package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/deskbridge/internal/auth"
	"github.com/waabox/deskbridge/internal/bridge"
	"github.com/waabox/deskbridge/internal/commands"
)

type launch struct {
	op     string
	target string
}

type fakeLauncher struct {
	calls []launch
	err   error
}

func (f *fakeLauncher) OpenURL(url string) error {
	f.calls = append(f.calls, launch{"url", url})
	return f.err
}

func (f *fakeLauncher) OpenFolder(path string) error {
	f.calls = append(f.calls, launch{"folder", path})
	return f.err
}

func (f *fakeLauncher) Reveal(path string) error {
	f.calls = append(f.calls, launch{"reveal", path})
	return f.err
}

func newRouter(t *testing.T, deps commands.Deps) *bridge.Router {
	t.Helper()
	if deps.Launcher == nil {
		deps.Launcher = &fakeLauncher{}
	}
	r := bridge.NewRouter(nil)
	require.NoError(t, commands.Register(r, deps))
	return r
}

func invoke(t *testing.T, r *bridge.Router, cmd string, args any) bridge.Response {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		require.NoError(t, err)
		raw = data
	}
	return r.Dispatch(context.Background(), bridge.Request{ID: "t", Cmd: cmd, Args: raw})
}

func TestRegister_CommandTable(t *testing.T) {
	r := newRouter(t, commands.Deps{})

	assert.ElementsMatch(t, []string{
		"open_url", "open_folder", "reveal_in_finder", "path_kind",
		"save_text_file", "read_text_file", "graph_device_code_start",
		"graph_tokens_path", "graph_device_code_poll", "graph_tokens_load",
		"graph_tokens_clear", "graph_token_refresh",
	}, r.Commands())

	for _, cmd := range []string{commands.GraphDeviceCodeStart, commands.GraphDeviceCodePoll, commands.GraphTokenRefresh} {
		assert.True(t, r.IsAsync(cmd), cmd)
	}
	assert.False(t, r.IsAsync(commands.ReadTextFile))
}

func TestRegister_RequiresLauncher(t *testing.T) {
	err := commands.Register(bridge.NewRouter(nil), commands.Deps{})
	assert.Error(t, err)
}

func TestLauncherCommands_PassTargetsVerbatim(t *testing.T) {
	fl := &fakeLauncher{}
	r := newRouter(t, commands.Deps{Launcher: fl})

	resp := invoke(t, r, commands.OpenURL, map[string]string{"url": "not even a url"})
	assert.Equal(t, bridge.Response{ID: "t", OK: true}, resp)
	invoke(t, r, commands.OpenFolder, map[string]string{"path": "/tmp/some dir"})
	invoke(t, r, commands.RevealInFinder, map[string]string{"path": "/tmp/some dir/a.txt"})

	assert.Equal(t, []launch{
		{"url", "not even a url"},
		{"folder", "/tmp/some dir"},
		{"reveal", "/tmp/some dir/a.txt"},
	}, fl.calls)
}

func TestLauncherCommands_SpawnFailureIsErrorText(t *testing.T) {
	fl := &fakeLauncher{err: errors.New(`exec: "xdg-open": executable file not found in $PATH`)}
	r := newRouter(t, commands.Deps{Launcher: fl})

	resp := invoke(t, r, commands.OpenURL, map[string]string{"url": "https://example.com"})
	assert.False(t, resp.OK)
	assert.Equal(t, `exec: "xdg-open": executable file not found in $PATH`, resp.Error)
}

func TestPathKind(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	r := newRouter(t, commands.Deps{})

	assert.Equal(t, "folder", invoke(t, r, commands.PathKind, map[string]string{"path": dir}).Result)
	assert.Equal(t, "file", invoke(t, r, commands.PathKind, map[string]string{"path": file}).Result)

	resp := invoke(t, r, commands.PathKind, map[string]string{"path": filepath.Join(dir, "missing")})
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestTextFiles_RoundTripAndOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	r := newRouter(t, commands.Deps{})

	for _, text := range []string{"", "héllo wörld ✓ 日本語", "second"} {
		resp := invoke(t, r, commands.SaveTextFile, map[string]string{"path": path, "contents": text})
		require.True(t, resp.OK, resp.Error)
		assert.Nil(t, resp.Result)

		resp = invoke(t, r, commands.ReadTextFile, map[string]string{"path": path})
		require.True(t, resp.OK, resp.Error)
		assert.Equal(t, text, resp.Result)
	}
}

func TestTextFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	r := newRouter(t, commands.Deps{})

	resp := invoke(t, r, commands.SaveTextFile, map[string]string{"path": filepath.Join(dir, "no", "such", "dir.txt"), "contents": "x"})
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)

	bad := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xfe, 0x00}, 0644))
	resp = invoke(t, r, commands.ReadTextFile, map[string]string{"path": bad})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "stream did not contain valid UTF-8")
}

func graphServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/devicecode"):
			switch r.PostForm.Get("client_id") {
			case "":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
				return
			case "unknown":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			_, _ = w.Write([]byte(`{"device_code":"dev","user_code":"ABCD","client":"` + r.PostForm.Get("client_id") + `"}`))
		case strings.HasSuffix(r.URL.Path, "/token"):
			_, _ = w.Write([]byte(`{"access_token":"acc","refresh_token":"ref","token_type":"Bearer","expires_in":3600}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGraphDeviceCodeStart(t *testing.T) {
	server := graphServer(t)
	r := newRouter(t, commands.Deps{Graph: commands.GraphSettings{BaseURL: server.URL, ClientID: "configured"}})

	resp := invoke(t, r, commands.GraphDeviceCodeStart, map[string]string{"client_id": "abc"})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, map[string]any{"device_code": "dev", "user_code": "ABCD", "client": "abc"}, resp.Result)

	resp = invoke(t, r, commands.GraphDeviceCodeStart, map[string]string{"clientId": "camel"})
	assert.Equal(t, "camel", resp.Result.(map[string]any)["client"])

	resp = invoke(t, r, commands.GraphDeviceCodeStart, nil)
	assert.Equal(t, "configured", resp.Result.(map[string]any)["client"])

	// Provider errors come back as values.
	resp = invoke(t, r, commands.GraphDeviceCodeStart, map[string]string{"client_id": "unknown"})
	assert.True(t, resp.OK)
	assert.Equal(t, "invalid_client", resp.Result.(map[string]any)["error"])
}

func TestGraphDeviceCodeStart_NoClientIDIsPosted(t *testing.T) {
	server := graphServer(t)
	r := newRouter(t, commands.Deps{Graph: commands.GraphSettings{BaseURL: server.URL}})

	resp := invoke(t, r, commands.GraphDeviceCodeStart, map[string]string{})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, map[string]any{"error": "invalid_request"}, resp.Result)
}

func TestGraphTokenCommands_NoClientID(t *testing.T) {
	store := auth.NewFileStore(filepath.Join(t.TempDir(), auth.TokensFileName))
	r := newRouter(t, commands.Deps{Tokens: auth.NewTokenManager(store)})

	resp := invoke(t, r, commands.GraphDeviceCodePoll, map[string]string{"device_code": "dev"})
	assert.False(t, resp.OK)
	assert.Equal(t, "client_id is required", resp.Error)

	resp = invoke(t, r, commands.GraphTokenRefresh, nil)
	assert.False(t, resp.OK)
	assert.Equal(t, "client_id is required", resp.Error)
}

func TestGraphDeviceCodeStart_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	r := newRouter(t, commands.Deps{Graph: commands.GraphSettings{BaseURL: url}})

	resp := invoke(t, r, commands.GraphDeviceCodeStart, map[string]string{"client_id": "abc"})
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestGraphTokenLifecycle(t *testing.T) {
	server := graphServer(t)
	store := auth.NewFileStore(filepath.Join(t.TempDir(), auth.TokensFileName))
	r := newRouter(t, commands.Deps{
		Tokens: auth.NewTokenManager(store),
		Graph:  commands.GraphSettings{BaseURL: server.URL, ClientID: "abc", PollUnit: time.Millisecond},
	})

	resp := invoke(t, r, commands.GraphTokensLoad, nil)
	require.True(t, resp.OK, resp.Error)
	assert.Nil(t, resp.Result)

	resp = invoke(t, r, commands.GraphDeviceCodePoll, map[string]any{"device_code": "dev", "interval": 0})
	require.True(t, resp.OK, resp.Error)
	want := auth.GraphTokens{AccessToken: "acc", RefreshToken: "ref", TokenType: "Bearer", ExpiresIn: 3600}
	assert.Equal(t, want, resp.Result)

	resp = invoke(t, r, commands.GraphTokensLoad, nil)
	assert.Equal(t, want, resp.Result)

	resp = invoke(t, r, commands.GraphTokenRefresh, nil)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "acc", resp.Result.(auth.GraphTokens).AccessToken)

	resp = invoke(t, r, commands.GraphTokensClear, nil)
	require.True(t, resp.OK, resp.Error)
	resp = invoke(t, r, commands.GraphTokensLoad, nil)
	assert.Nil(t, resp.Result)
}

func TestGraphDeviceCodePoll_ThrottlesWithoutInterval(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"slow_down"}`))
	}))
	t.Cleanup(server.Close)
	store := auth.NewFileStore(filepath.Join(t.TempDir(), auth.TokensFileName))
	r := newRouter(t, commands.Deps{
		Tokens: auth.NewTokenManager(store),
		Graph:  commands.GraphSettings{BaseURL: server.URL, PollUnit: 10 * time.Millisecond},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	args, err := json.Marshal(map[string]string{"client_id": "c", "device_code": "d"})
	require.NoError(t, err)
	resp := r.Dispatch(ctx, bridge.Request{ID: "t", Cmd: commands.GraphDeviceCodePoll, Args: args})

	assert.False(t, resp.OK)
	// Waits of 50ms, 100ms, 150ms, 200ms fit in the deadline.
	assert.LessOrEqual(t, calls.Load(), int32(4))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestGraphDeviceCodePoll_RequiresDeviceCode(t *testing.T) {
	store := auth.NewFileStore(filepath.Join(t.TempDir(), auth.TokensFileName))
	r := newRouter(t, commands.Deps{Tokens: auth.NewTokenManager(store), Graph: commands.GraphSettings{ClientID: "abc"}})

	resp := invoke(t, r, commands.GraphDeviceCodePoll, map[string]any{})
	assert.False(t, resp.OK)
	assert.Equal(t, "device_code is required", resp.Error)
}

func TestTokenCommands_WithoutStore(t *testing.T) {
	r := newRouter(t, commands.Deps{})

	for _, cmd := range []string{commands.GraphTokensLoad, commands.GraphTokensClear, commands.GraphTokenRefresh} {
		resp := invoke(t, r, cmd, nil)
		assert.False(t, resp.OK, cmd)
		assert.Equal(t, "token store is not configured", resp.Error, cmd)
	}
}

func TestGraphTokensPath(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("config dir is not environment driven here")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	r := newRouter(t, commands.Deps{AppID: "com.example.shell"})

	resp := invoke(t, r, commands.GraphTokensPath, nil)
	require.True(t, resp.OK, resp.Error)
	path, ok := resp.Result.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(path, home), path)
	assert.Equal(t, filepath.Join("com.example.shell", "graph_tokens.json"), filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the token file itself is not created")
}
