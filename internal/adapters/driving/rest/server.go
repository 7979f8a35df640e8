// Package rest exposes the pipeline over HTTP: document submission, run
// history and health probes.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driving"
)

// Default configuration values.
const (
	DefaultAddr            = ":8080"
	DefaultMaxUploadBytes  = 20 << 20
	DefaultRateLimitRPS    = 5
	DefaultRateLimitBurst  = 10
	DefaultReadTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds configuration for the HTTP server.
type Config struct {
	// Addr is the listen address (default: :8080).
	Addr string

	// APIKey guards document submission and run history when set. Health
	// probes are always open.
	APIKey string

	// MaxUploadBytes caps the request body on submissions (default: 20 MiB).
	MaxUploadBytes int64

	// RateLimitRPS and RateLimitBurst bound per-client submission rates.
	// RPS <= 0 disables rate limiting. Health probes are never limited.
	RateLimitRPS   float64
	RateLimitBurst int
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = DefaultRateLimitBurst
	}
	return c
}

// EngineLister enumerates registered engine ids.
type EngineLister interface {
	IDs() []string
}

// Server is the HTTP driving adapter.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *zap.Logger
}

// NewServer wires the handlers and middleware chain.
func NewServer(
	cfg Config,
	runner driving.PipelineRunner,
	health driving.HealthChecker,
	journal driven.RunJournal,
	engines EngineLister,
	logger *zap.Logger,
) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &handler{
		runner:  runner,
		health:  health,
		journal: journal,
		engines: engines,
		maxBody: cfg.MaxUploadBytes,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ocr", h.handleOCR)
	mux.HandleFunc("GET /engines", h.handleEngines)
	mux.HandleFunc("GET /runs", h.handleRuns)
	mux.HandleFunc("GET /runs/{id}", h.handleRun)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)

	var root http.Handler = mux
	if cfg.APIKey != "" {
		root = requireAPIKey(cfg.APIKey, root)
	}
	if cfg.RateLimitRPS > 0 {
		root = rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, root)
	}
	root = logRequests(logger, root)
	root = withRequestID(root)

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           root,
			ReadHeaderTimeout: DefaultReadTimeout,
		},
		logger: logger,
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the wired handler chain, used by tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
