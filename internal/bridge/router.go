package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownCommand is returned when no handler is registered for a command.
var ErrUnknownCommand = errors.New("unknown command")

// ErrDuplicateCommand is returned when a command name is registered twice.
var ErrDuplicateCommand = errors.New("command already registered")

// Handler runs one command. args is the raw JSON object sent by the caller,
// or nil when the request had no args.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Typed adapts a function taking a decoded argument struct into a Handler.
// Missing args decode as the zero value of A.
func Typed[A any](fn func(ctx context.Context, args A) (any, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("invalid args: %w", err)
			}
		}
		return fn(ctx, args)
	}
}

type route struct {
	handler Handler
	async   bool
}

// Router maps command names to handlers.
type Router struct {
	mu     sync.RWMutex
	routes map[string]route
	logger *zap.Logger
}

// NewRouter creates an empty Router. A nil logger discards output.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{routes: make(map[string]route), logger: logger}
}

// Register adds a handler that runs to completion on the dispatching goroutine.
func (r *Router) Register(name string, h Handler) error {
	return r.add(name, route{handler: h})
}

// RegisterAsync adds a handler that transports run on its own goroutine,
// for handlers that wait on the network.
func (r *Router) RegisterAsync(name string, h Handler) error {
	return r.add(name, route{handler: h, async: true})
}

func (r *Router) add(name string, rt route) error {
	if name == "" {
		return fmt.Errorf("command name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	r.routes[name] = rt
	return nil
}

// IsAsync reports whether name was registered with RegisterAsync.
func (r *Router) IsAsync(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routes[name].async
}

// Commands lists the registered command names in sorted order.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for req and converts the outcome to a Response.
// Handler errors become their text; a panicking handler is reported as an
// error instead of taking the bridge down.
func (r *Router) Dispatch(ctx context.Context, req Request) (resp Response) {
	resp.ID = req.ID

	r.mu.RLock()
	rt, ok := r.routes[req.Cmd]
	r.mu.RUnlock()
	if !ok {
		resp.Error = fmt.Sprintf("%s: %s", ErrUnknownCommand, req.Cmd)
		r.logger.Warn("Unknown command", zap.String("cmd", req.Cmd), zap.String("id", req.ID))
		return resp
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			resp = Response{ID: req.ID, Error: fmt.Sprintf("command %s panicked: %v", req.Cmd, p)}
			r.logger.Error("Command panicked", zap.String("cmd", req.Cmd), zap.String("id", req.ID), zap.Any("panic", p))
		}
	}()

	result, err := rt.handler(ctx, req.Args)
	fields := []zap.Field{
		zap.String("cmd", req.Cmd),
		zap.String("id", req.ID),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		resp.Error = err.Error()
		r.logger.Warn("Command failed", append(fields, zap.Error(err))...)
		return resp
	}
	resp.OK = true
	resp.Result = result
	r.logger.Debug("Command completed", fields...)
	return resp
}
