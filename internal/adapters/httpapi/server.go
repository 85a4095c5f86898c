package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mikey/content-review/internal/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the HTTP API server
type Options struct {
	ListenAddress string
	MaxImageBytes int64
	MaxTextBytes  int64
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Server exposes the review operations over HTTP
type Server struct {
	reviewer ports.Reviewer
	rules    ports.RuleEditor
	logger   *zap.Logger
	opts     Options
	router   chi.Router
	server   *http.Server
}

// NewServer creates the HTTP API server and its routes
func NewServer(reviewer ports.Reviewer, rules ports.RuleEditor, logger *zap.Logger, opts Options) *Server {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 10 << 20
	}

	s := &Server{
		reviewer: reviewer,
		rules:    rules,
		logger:   logger,
		opts:     opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/text-review", TextReviewHandler(s.reviewer, s.opts.MaxTextBytes, s.logger))
		r.Post("/image-review", ImageReviewHandler(s.reviewer, s.opts.MaxImageBytes, s.logger))
		r.Post("/save-rules", SaveRulesHandler(s.rules, s.logger))
		r.Get("/rules", RulesHandler(s.rules, s.logger))
	})

	return r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Name identifies the frontend
func (s *Server) Name() string {
	return "http"
}

// Start starts listening and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.ListenAddress, err)
	}

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	s.logger.Info("HTTP API starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
