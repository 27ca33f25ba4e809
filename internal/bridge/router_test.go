package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/deskbridge/internal/bridge"
)

type echoArgs struct {
	Text string `json:"text"`
}

func newEchoRouter(t *testing.T) *bridge.Router {
	t.Helper()
	r := bridge.NewRouter(nil)
	require.NoError(t, r.Register("echo", bridge.Typed(func(_ context.Context, a echoArgs) (any, error) {
		return a.Text, nil
	})))
	require.NoError(t, r.Register("fail", bridge.Typed(func(_ context.Context, _ struct{}) (any, error) {
		return nil, errors.New("permission denied")
	})))
	return r
}

func TestRouter_Dispatch_Success(t *testing.T) {
	r := newEchoRouter(t)

	resp := r.Dispatch(context.Background(), bridge.Request{ID: "1", Cmd: "echo", Args: json.RawMessage(`{"text":"hi"}`)})
	assert.Equal(t, bridge.Response{ID: "1", OK: true, Result: "hi"}, resp)
}

func TestRouter_Dispatch_ErrorBecomesText(t *testing.T) {
	r := newEchoRouter(t)

	resp := r.Dispatch(context.Background(), bridge.Request{ID: "2", Cmd: "fail"})
	assert.False(t, resp.OK)
	assert.Equal(t, "permission denied", resp.Error)
	assert.Nil(t, resp.Result)
}

func TestRouter_Dispatch_UnknownCommand(t *testing.T) {
	r := newEchoRouter(t)

	resp := r.Dispatch(context.Background(), bridge.Request{ID: "3", Cmd: "format_disk"})
	assert.False(t, resp.OK)
	assert.Equal(t, "unknown command: format_disk", resp.Error)
}

func TestRouter_Dispatch_InvalidArgs(t *testing.T) {
	r := newEchoRouter(t)

	resp := r.Dispatch(context.Background(), bridge.Request{ID: "4", Cmd: "echo", Args: json.RawMessage(`{"text":42}`)})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "invalid args")
}

func TestRouter_Dispatch_MissingArgsDecodeAsZero(t *testing.T) {
	r := newEchoRouter(t)

	for _, args := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`{}`)} {
		resp := r.Dispatch(context.Background(), bridge.Request{ID: "5", Cmd: "echo", Args: args})
		assert.True(t, resp.OK)
		assert.Equal(t, "", resp.Result)
	}
}

func TestRouter_Dispatch_RecoversPanic(t *testing.T) {
	r := bridge.NewRouter(nil)
	require.NoError(t, r.Register("boom", func(context.Context, json.RawMessage) (any, error) {
		panic("nil map write")
	}))

	resp := r.Dispatch(context.Background(), bridge.Request{ID: "6", Cmd: "boom"})
	assert.False(t, resp.OK)
	assert.Equal(t, "6", resp.ID)
	assert.Contains(t, resp.Error, "nil map write")
}

func TestRouter_Register_RejectsDuplicates(t *testing.T) {
	r := newEchoRouter(t)

	err := r.RegisterAsync("echo", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, bridge.ErrDuplicateCommand)
	assert.Error(t, r.Register("", func(context.Context, json.RawMessage) (any, error) { return nil, nil }))
}

func TestRouter_IsAsyncAndCommands(t *testing.T) {
	r := newEchoRouter(t)
	require.NoError(t, r.RegisterAsync("net", func(context.Context, json.RawMessage) (any, error) { return nil, nil }))

	assert.True(t, r.IsAsync("net"))
	assert.False(t, r.IsAsync("echo"))
	assert.False(t, r.IsAsync("missing"))
	assert.Equal(t, []string{"echo", "fail", "net"}, r.Commands())
}
