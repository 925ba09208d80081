// Package server is the local HTTP bridge of the daemon. It accepts encoded
// bus messages on POST /api/relay, exposes read-only views of the store and
// pushes storage changes to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/relay"
)

const (
	maxBodySize     = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// SubscribeFunc registers a storage change listener and returns its
// unsubscribe function.
type SubscribeFunc func(fn func(key string)) func()

// Server serves the relay endpoint and the read-only API.
type Server struct {
	mu       sync.Mutex
	addr     string
	sender   bus.Sender
	logger   *logger.Logger
	router   chi.Router
	hub      *Hub
	metrics  http.Handler
	http     *http.Server
	listener net.Listener
	unsub    func()
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithChanges pushes every change reported by subscribe to /ws clients.
func WithChanges(subscribe SubscribeFunc) Option {
	return func(s *Server) {
		s.unsub = subscribe(s.hub.Broadcast)
	}
}

// New creates a server listening on addr that relays messages to sender.
func New(addr string, sender bus.Sender, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		sender: sender,
		logger: log,
		hub:    NewHub(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Post(relay.Path, s.handleRelay)

	r.Route("/api", func(r chi.Router) {
		r.Get("/timers", s.handleTimers)
		r.Get("/prices", s.handlePrices)
		r.Get("/session", s.handleSession)
		r.Get("/hiscores", s.handleHiscores)
	})

	r.Get("/ws", s.hub.ServeHTTP)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", err)
		}
	}(s.http)

	s.logger.Info("http server started", logger.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes websocket clients and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.listener = nil
	s.mu.Unlock()

	if s.unsub != nil {
		s.unsub()
	}
	s.hub.Close()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	msg, err := bus.Decode(data)
	if err != nil {
		s.logger.WarnCtx(r.Context(), "rejected relay message",
			logger.Field{Key: "reason", Value: err.Error()},
			logger.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())})
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.sender.Send(r.Context(), msg)
	if err != nil {
		s.writeSendError(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	state, err := bus.QueryTimers(r.Context(), s.sender)
	if err != nil {
		s.writeSendError(w, r, err)
		return
	}
	writeJSON(w, state)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	histories, err := bus.QueryPrices(r.Context(), s.sender, r.URL.Query().Get("itemId"))
	if err != nil {
		s.writeSendError(w, r, err)
		return
	}
	writeJSON(w, histories)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	stats, err := bus.QuerySessionStats(r.Context(), s.sender)
	if err != nil {
		s.writeSendError(w, r, err)
		return
	}
	if stats == nil {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleHiscores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	player := q.Get("player")
	category := q.Get("category")
	if category == "" {
		category = "total"
	}
	if player == "" {
		http.Error(w, "player is required", http.StatusBadRequest)
		return
	}
	if !game.ValidHiscoreCategory(category) {
		http.Error(w, fmt.Sprintf("unknown category %q", category), http.StatusBadRequest)
		return
	}

	result, err := bus.QueryHiscores(r.Context(), s.sender, player, category)
	if err != nil {
		s.writeSendError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) writeSendError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, bus.ErrQueueFull), errors.Is(err, bus.ErrNotStarted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.logger.ErrorCtx(r.Context(), "relay send failed", err,
		logger.Field{Key: "path", Value: r.URL.Path},
		logger.Field{Key: "status", Value: status})
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request through the application logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugCtx(r.Context(), "http request",
			logger.Field{Key: "method", Value: r.Method},
			logger.Field{Key: "path", Value: r.URL.Path},
			logger.Field{Key: "status", Value: ww.Status()},
			logger.Field{Key: "duration", Value: time.Since(start).String()},
			logger.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())})
	})
}
