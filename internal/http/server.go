// Package http serves the read-only dashboard feed: the latest artifact
// snapshots and the run history.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bms/internal/cache"
	"bms/internal/log"
	"bms/internal/middleware/ratelimit"
	"bms/internal/middleware/security"
	"bms/internal/middleware/trace"
	"bms/internal/storage"
)

// FeedStore is the journal the feed reads from.
// *storage.SQLiteRepository implements it.
type FeedStore interface {
	LatestSnapshot(ctx context.Context, kind string) (storage.Snapshot, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
}

// Config holds configuration for the feed server
type Config struct {
	Addr           string
	AllowedOrigins []string
	// CacheTTL is how long a snapshot is served from memory (default: 30s)
	CacheTTL time.Duration
	// RequestsPerMinute per client; zero disables rate limiting
	RequestsPerMinute int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		AllowedOrigins:    []string{"*"},
		CacheTTL:          30 * time.Second,
		RequestsPerMinute: ratelimit.DefaultConfig().RequestsPerMinute,
	}
}

type Server struct {
	http.Server
	store     FeedStore
	logger    *log.Logger
	snapshots *cache.LRUCache[storage.Snapshot]
	caches    *cache.Manager
	limiter   *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(config Config, store FeedStore, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		store:     store,
		logger:    logger,
		snapshots: cache.NewLRUCache[storage.Snapshot](8, config.CacheTTL),
		caches:    cache.NewManager(logger),
	}
	s.caches.Register(s.snapshots)
	s.caches.StartCleanup(config.CacheTTL * 10)

	if config.RequestsPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: config.RequestsPerMinute})
	}

	s.Server = http.Server{
		Addr:              config.Addr,
		Handler:           s.routes(config),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(config Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(trace.RequestID))
	r.Use(trace.NewMiddleware(s.logger, security.ClientIP).Handler)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware(security.ClientIP, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			}))
		}
		r.Get("/budget", s.handleSnapshot(storage.SnapshotItems))
		r.Get("/summary", s.handleSnapshot(storage.SnapshotSummary))
		r.Get("/runs", s.handleRuns)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	return r
}

// Invalidate drops cached snapshots so the next request reads the journal.
func (s *Server) Invalidate() {
	s.snapshots.Purge()
}

// Shutdown stops background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
