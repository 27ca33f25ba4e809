package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketServer exposes a Router to webview front-ends. Each text message
// carries one JSON Request; responses and events come back as JSON text
// messages on the same connection.
type WebSocketServer struct {
	addr     string
	router   *Router
	hub      *Hub
	logger   *zap.Logger
	allowed  map[string]bool
	upgrader websocket.Upgrader
}

// NewWebSocketServer creates a WebSocketServer listening on addr. Requests
// from loopback origins, origin-less clients and allowedOrigins are accepted.
func NewWebSocketServer(addr string, allowedOrigins []string, router *Router, hub *Hub, logger *zap.Logger) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WebSocketServer{
		addr:    addr,
		router:  router,
		hub:     hub,
		logger:  logger,
		allowed: make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		s.allowed[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ListenAndServe accepts connections until ctx is cancelled.
func (s *WebSocketServer) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Listen opens the TCP listener so address errors surface before serving.
func (s *WebSocketServer) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("websocket bridge: %w", err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *WebSocketServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	s.logger.Info("WebSocket bridge listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP handler that upgrades connections.
func (s *WebSocketServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("WebSocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		s.serveConn(r.Context(), conn)
	})
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowed[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *WebSocketServer) serveConn(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if s.hub != nil {
		unsubscribe := s.hub.Subscribe(func(ev Event) {
			if err := write(ev); err != nil {
				s.logger.Debug("Error writing event", zap.String("event", ev.Event), zap.Error(err))
			}
		})
		defer unsubscribe()
	}

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("WebSocket read ended", zap.Error(err))
			}
			return
		}

		req, err := DecodeRequest(data)
		if err != nil {
			if werr := write(Response{Error: err.Error()}); werr != nil {
				return
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
					s.logger.Debug("Error writing response", zap.String("id", req.ID), zap.Error(err))
				}
			}(req)
			continue
		}
		if err := write(s.router.Dispatch(ctx, req)); err != nil {
			return
		}
	}
}
