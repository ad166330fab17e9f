// Package server provides the HTTP dashboard for thumblight.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/thumblight/internal/config"
	"github.com/ayusman/thumblight/internal/report"
	"github.com/ayusman/thumblight/internal/server/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	// Controller drives the gesture loop. Gesture routes are skipped when nil.
	Controller api.Controller
	// Stream serves the rendered frames as MJPEG.
	Stream http.Handler
	// Snapshot serves the latest rendered frame as a single JPEG.
	Snapshot http.HandlerFunc
	// Events pushes loop events over WebSocket.
	Events http.Handler
	// Profile produces the load profile; nil uses the synthetic sample.
	Profile api.ProfileFunc
	// DefaultURL pre-fills the camera URL input.
	DefaultURL string
	Log        logrus.FieldLogger
}

// Server represents the HTTP server for the dashboard.
type Server struct {
	config Config
	mux    *http.ServeMux
	pages  *pages
	start  time.Time
	log    logrus.FieldLogger
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	if cfg.DefaultURL == "" {
		cfg.DefaultURL = config.DefaultCameraURL
	}
	if cfg.Profile == nil {
		cfg.Profile = func() []report.Point { return report.SampleProfile(nil) }
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		pages:  loadPages(),
		start:  time.Now(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/energy/profile", api.NewEnergyHandler(s.config.Profile))

	if s.config.Controller != nil {
		s.mux.Handle("/api/gesture/", api.NewGestureHandler(s.config.Controller))
	}
	if s.config.Stream != nil {
		s.mux.Handle("/api/stream", s.config.Stream)
	}
	if s.config.Snapshot != nil {
		s.mux.HandleFunc("/api/snapshot", s.config.Snapshot)
	}
	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/gesture", s.handleGesture)
	s.mux.HandleFunc("/graphs", s.handleGraphs)
	s.mux.HandleFunc("/graphs/chart", s.handleChart)
	s.mux.HandleFunc("/suggestions", s.handleSuggestions)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("url", "http://"+addr).Info("dashboard listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Streaming clients keep connections busy past the deadline.
		s.log.WithError(err).Warn("forcing dashboard close")
		srv.Close()
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
