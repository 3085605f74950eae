// Package httpapi exposes the read-only HTTP surface: health,
// prediction stats, active signals, and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/domain"
)

// StatsSource supplies prediction accuracy, normally the pipeline.
type StatsSource interface {
	Stats(ctx context.Context, symbol string) (*domain.PredictionStats, error)
	ActiveSignals(symbol string) []*domain.Signal
}

// Server wraps the router and its dependencies.
type Server struct {
	source   StatsSource
	gatherer prometheus.Gatherer
	router   *mux.Router
}

// NewServer builds the API router. gatherer may be nil to expose the
// default Prometheus registry.
func NewServer(source StatsSource, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	server := &Server{source: source, gatherer: gatherer, router: mux.NewRouter()}

	server.router.HandleFunc("/health", server.handleHealth).Methods(http.MethodGet)
	server.router.HandleFunc("/stats/{symbol}", server.handleStats).Methods(http.MethodGet)
	server.router.HandleFunc("/signals/{symbol}", server.handleSignals).Methods(http.MethodGet)
	server.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return server
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe blocks serving the API until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http api listening")
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errs:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	stats, err := s.source.Stats(r.Context(), symbol)
	if err != nil {
		log.Error().Str("symbol", symbol).Err(err).Msg("stats lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	writeJSON(w, http.StatusOK, s.source.ActiveSignals(symbol))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}
