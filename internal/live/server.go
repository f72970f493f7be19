package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/derekmborges/algorithmic-trading/internal/logger"
)

// StatusServer serves the trader's positions and Prometheus metrics over
// HTTP.
type StatusServer struct {
	trader *Trader
	logger *logger.Logger
	server *http.Server
}

// NewStatusServer builds the server and registers the trader's collectors.
func NewStatusServer(addr string, trader *Trader, log *logger.Logger) (*StatusServer, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	registry := prometheus.NewRegistry()
	if err := trader.Metrics().Register(registry); err != nil {
		return nil, err
	}

	s := &StatusServer{
		trader: trader,
		logger: log,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *StatusServer) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *StatusServer) handlePositions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.trader.Ledger().OpenPositions()); err != nil {
		s.logger.Error("failed to encode positions", zap.Error(err))
	}
}
