package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/seboll13/TextGenerator/pkg/markov"
	"github.com/seboll13/TextGenerator/pkg/store"
)

// modelCache keeps built models in memory so generation requests don't reload
// counts from the database. Entries are dropped whenever the stored counts of
// a model change.
type modelCache struct {
	mu       sync.RWMutex
	models   map[string]*markov.Model
	versions map[string]uint64
	store    *store.Store
}

func newModelCache(s *store.Store) *modelCache {
	return &modelCache{
		models:   make(map[string]*markov.Model),
		versions: make(map[string]uint64),
		store:    s,
	}
}

func (c *modelCache) get(ctx context.Context, name string) (*markov.Model, error) {
	c.mu.RLock()
	m, ok := c.models[name]
	version := c.versions[name]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	info, err := c.store.GetModelInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	m, err = c.store.LoadModel(ctx, info)
	if err != nil {
		return nil, err
	}

	// Skip caching if the model changed while it was loading.
	c.mu.Lock()
	if c.versions[name] == version {
		c.models[name] = m
	}
	c.mu.Unlock()
	return m, nil
}

func (c *modelCache) invalidate(name string) {
	c.mu.Lock()
	delete(c.models, name)
	c.versions[name]++
	c.mu.Unlock()
}

// Server wires the store and the model cache to the HTTP API.
type Server struct {
	config *Config
	logger *slog.Logger
	store  *store.Store
	cache  *modelCache
	api    *GeneratorAPI
	mux    *http.ServeMux
}

func NewServer(config *Config, logger *slog.Logger, s *store.Store) *Server {
	cache := newModelCache(s)
	server := &Server{
		config: config,
		logger: logger,
		store:  s,
		cache:  cache,
		api:    NewGeneratorAPI(s, cache, config, logger),
		mux:    http.NewServeMux(),
	}
	server.api.RegisterRoutes(server.mux)
	return server
}

// Handler returns the API wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags every request with an id, echoes it back in the
// X-Request-Id header and logs the request once it is served.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.InfoContext(r.Context(), "Request served",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// runServer hosts the API until ctx is cancelled or the process receives
// SIGINT or SIGTERM, then shuts it down gracefully.
func runServer(ctx context.Context, config *Config, logger *slog.Logger, s *store.Store) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(config, logger, s)
	apiHttpServer := &http.Server{
		Addr:              config.Server.ApiAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Stopping api server...")
	timeout := time.Duration(config.Server.ShutdownTimeoutSec) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := apiHttpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
		return err
	}
	logger.Info("Api server stopped.")
	return nil
}
