// Package server provides the local HTTP surface for the card overlay.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/capture"
	"github.com/ayusman/handcard/internal/server/api"
)

// DefaultPushInterval is how often websocket clients are checked for a new snapshot.
const DefaultPushInterval = 100 * time.Millisecond

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir string

	// Pipeline backs the annotation endpoints and the websocket feed.
	Pipeline api.Pipeline
	Clear    api.Clearer
	History  api.HistoryReader
	Preview  *capture.Preview

	PushInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *zap.Logger
}

// Server represents the HTTP server for the overlay.
type Server struct {
	config Config
	router chi.Router
	hub    *SnapshotHub
	logger *zap.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.PushInterval <= 0 {
		config.PushInterval = DefaultPushInterval
	}

	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: config.Logger.Named("server"),
		start:  time.Now(),
	}
	if config.Pipeline != nil {
		s.hub = NewSnapshotHub(config.Pipeline, config.PushInterval, s.logger)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		if s.config.Pipeline != nil {
			api.NewAnnotationHandler(s.config.Pipeline, s.config.Clear).Routes(r)
			r.Handle("/ws", s.hub)
		}
		if s.config.History != nil {
			api.NewHistoryHandler(s.config.History).Routes(r)
		}
		if s.config.Preview != nil {
			r.Handle("/stream", NewStreamHandler(s.config.Preview))
		}
	})

	if s.config.StaticDir != "" {
		s.router.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the websocket hub, or nil when no pipeline is configured.
func (s *Server) Hub() *SnapshotHub {
	return s.hub
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Pipeline != nil {
		response["stats"] = s.config.Pipeline.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	if s.hub != nil {
		go s.hub.Run(hubCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.CloseAll()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
