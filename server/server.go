package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/netutil"

	"github.com/joeychilson/sitemapgen/cache"
	"github.com/joeychilson/sitemapgen/config"
	"github.com/joeychilson/sitemapgen/logger"
	"github.com/joeychilson/sitemapgen/server/middleware"
)

const (
	defaultMaxEntries      = 1_000_000
	defaultMaxRequestBytes = 64 << 20

	httpReadTimeout     = 30 * time.Second
	httpWriteTimeout    = 120 * time.Second
	httpIdleTimeout     = 60 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// RedisClient backs rate limiting (optional, uses in-memory if nil)
	RedisClient *redis.Client
	// RateLimit limits requests per client (default: no limiting)
	RateLimit config.RateLimitConfig
	// CacheTTL is how long generated files stay available (default: cache default)
	CacheTTL time.Duration
	// MaxEntries caps the entries accepted per request (default: 1,000,000)
	MaxEntries int
	// MaxRequestBytes caps the request body size (default: 64 MiB)
	MaxRequestBytes int64
	// MaxConnections caps concurrent connections in StartWithShutdown (default: unlimited)
	MaxConnections int
	// Retry retries failed cache writes (default: no retries)
	Retry config.RetryConfig
}

// Server is the HTTP server for the API.
type Server struct {
	cache  cache.Cache
	logger logger.Logger
	config ServerConfig
	router *chi.Mux
}

// New creates a new API server with chi router and middleware stack.
func New(c cache.Cache, log logger.Logger, cfg *ServerConfig) (*Server, error) {
	if c == nil {
		return nil, errors.New("cache is required")
	}
	if log == nil {
		log = logger.Noop()
	}
	if cfg == nil {
		cfg = &ServerConfig{}
	}

	conf := *cfg
	if conf.MaxEntries == 0 {
		conf.MaxEntries = defaultMaxEntries
	}
	if conf.MaxRequestBytes == 0 {
		conf.MaxRequestBytes = defaultMaxRequestBytes
	}
	if conf.MaxEntries < 0 || conf.MaxRequestBytes < 0 || conf.MaxConnections < 0 {
		return nil, fmt.Errorf("server limits must be non-negative")
	}

	s := &Server{
		cache:  c,
		logger: log,
		config: conf,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	if conf.RateLimit.IsEnabled() {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestLimit:   conf.RateLimit.Requests,
			WindowDuration: conf.RateLimit.Window,
			RedisClient:    conf.RedisClient,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/v1/sitemaps", func(r chi.Router) {
		r.Post("/", s.handleGenerate)
		r.Get("/{id}/{filename}", s.handleFile)
		r.Head("/{id}/{filename}", s.handleFile)
	})

	s.router = r
	return s, nil
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StartWithShutdown serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) StartWithShutdown(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. The listener is
// capped at MaxConnections when set.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}

	server := &http.Server{
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", ln.Addr().String(), "max_connections", s.config.MaxConnections)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
