// Package bridge carries command invocations between a front-end and the
// registered handlers.
//
// The stdio transport dispatches one request at a time. Synchronous commands
// run to completion before the next request is dispatched; asynchronous commands run
// on their own goroutine so a slow network call does not hold up other
// dispatches. Responses may therefore arrive out of request order and are
// matched by ID.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server runs the stdio transport over a Router.
type Server struct {
	router *Router
	hub    *Hub
	logger *zap.Logger
}

// NewServer creates a Server. hub may be nil when no events are published.
func NewServer(router *Router, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{router: router, hub: hub, logger: logger}
}

type readResult struct {
	frame []byte
	err   error
}

// Serve reads requests from r and writes responses and events to w until r
// reaches EOF, ctx is cancelled, a framing error occurs or a write fails.
// In-flight async commands are awaited before Serve returns.
//
// A read blocked on r is not interrupted by cancellation; the reading
// goroutine is left to end with r.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return WriteFrame(w, v)
	}

	if s.hub != nil {
		unsubscribe := s.hub.Subscribe(func(ev Event) {
			if err := write(ev); err != nil {
				s.logger.Warn("Error writing event", zap.String("event", ev.Event), zap.Error(err))
			}
		})
		defer unsubscribe()
	}

	var inflight sync.WaitGroup
	defer inflight.Wait()

	frames := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			frame, err := ReadFrame(r)
			select {
			case frames <- readResult{frame: frame, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var frame []byte
		var err error
		select {
		case <-ctx.Done():
			s.logger.Info("Bridge cancelled", zap.Error(ctx.Err()))
			return nil
		case res := <-frames:
			frame, err = res.frame, res.err
		}
		if errors.Is(err, io.EOF) {
			s.logger.Info("Bridge input closed")
			return nil
		}
		if err != nil {
			s.logger.Error("Error reading message", zap.Error(err))
			return err
		}

		req, err := DecodeRequest(frame)
		if err != nil {
			// The frame was consumed, so the stream is still aligned.
			if werr := write(Response{Error: err.Error()}); werr != nil {
				return werr
			}
			continue
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		if s.router.IsAsync(req.Cmd) {
			inflight.Add(1)
			go func(req Request) {
				defer inflight.Done()
				if err := write(s.router.Dispatch(ctx, req)); err != nil {
					s.logger.Error("Error writing response", zap.String("id", req.ID), zap.Error(err))
				}
			}(req)
			continue
		}

		if err := write(s.router.Dispatch(ctx, req)); err != nil {
			s.logger.Error("Error writing response", zap.String("id", req.ID), zap.Error(err))
			return err
		}
	}
}
