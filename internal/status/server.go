// Package status serves the ops endpoints: health, a JSON status snapshot,
// and the Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/storage"
)

// Server is the ops HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	store   storage.Interface
	broker  broker.Broker
	logger  *logrus.Logger
	started time.Time
}

// NewServer wires the router. gatherer serves /metrics.
func NewServer(addr string, store storage.Interface, b broker.Broker, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		router:  chi.NewRouter(),
		store:   store,
		broker:  b,
		logger:  logger,
		started: time.Now(),
	}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.WithField("addr", s.server.Addr).Info("status server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type statusBody struct {
		UptimeSeconds int64  `json:"uptime_seconds"`
		OpenPositions int    `json:"open_positions"`
		PendingOrders int    `json:"pending_orders"`
		CacheHits     uint64 `json:"cache_hits"`
		CacheMisses   uint64 `json:"cache_misses"`
		BrokerOK      bool   `json:"broker_ok"`
	}

	body := statusBody{UptimeSeconds: int64(time.Since(s.started).Seconds())}
	if positions, err := s.broker.Positions(); err == nil {
		body.BrokerOK = true
		body.OpenPositions = len(positions)
	}
	if pendings, err := s.broker.PendingOrders(); err == nil {
		body.PendingOrders = len(pendings)
	}
	body.CacheHits, body.CacheMisses = s.store.CacheStats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("encoding status response")
	}
}
