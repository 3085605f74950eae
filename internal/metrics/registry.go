// Package metrics exposes Prometheus instrumentation for the scoring
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeforge/signalrun/internal/domain"
)

// Registry holds all Prometheus metrics for the pipeline.
type Registry struct {
	SetupsScored    *prometheus.CounterVec
	EdgeScores      *prometheus.HistogramVec
	SignalsEmitted  *prometheus.CounterVec
	SetupsRejected  *prometheus.CounterVec
	Outcomes        *prometheus.CounterVec
	StrategyWeight  *prometheus.GaugeVec
	StageDuration   *prometheus.HistogramVec
	PendingForecast prometheus.Gauge
}

// NewRegistry creates and registers the pipeline metrics. A nil
// registerer falls back to the default global registry.
func NewRegistry(registerer prometheus.Registerer) *Registry {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	registry := &Registry{
		SetupsScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_setups_scored_total",
				Help: "Total setups run through the edge scorer",
			},
			[]string{"strategy", "timeframe"},
		),

		EdgeScores: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalrun_edge_score",
				Help:    "Distribution of computed edge scores (0-10)",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 7.5, 8, 8.5, 9, 9.5, 10},
			},
			[]string{"strategy"},
		),

		SignalsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_signals_emitted_total",
				Help: "Total confluence signals emitted by direction",
			},
			[]string{"symbol", "direction"},
		),

		SetupsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_setups_rejected_total",
				Help: "Total setups rejected before publication by reason",
			},
			[]string{"reason"},
		),

		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_prediction_outcomes_total",
				Help: "Total resolved prediction outcomes",
			},
			[]string{"symbol", "outcome"},
		),

		StrategyWeight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalrun_strategy_weight",
				Help: "Current adaptive weight multiplier per strategy (0.5-1.5)",
			},
			[]string{"strategy"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalrun_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"stage"},
		),

		PendingForecast: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalrun_pending_predictions",
				Help: "Unresolved predictions currently on the books",
			},
		),
	}

	registerer.MustRegister(
		registry.SetupsScored,
		registry.EdgeScores,
		registry.SignalsEmitted,
		registry.SetupsRejected,
		registry.Outcomes,
		registry.StrategyWeight,
		registry.StageDuration,
		registry.PendingForecast,
	)
	return registry
}

// RecordScore records one scored setup.
func (r *Registry) RecordScore(strategy, timeframe string, score float64) {
	r.SetupsScored.WithLabelValues(strategy, timeframe).Inc()
	r.EdgeScores.WithLabelValues(strategy).Observe(score)
}

// RecordSignal records one emitted confluence signal.
func (r *Registry) RecordSignal(symbol string, direction domain.Direction) {
	r.SignalsEmitted.WithLabelValues(symbol, direction.String()).Inc()
}

// RecordRejection records a setup rejected before publication.
func (r *Registry) RecordRejection(reason string) {
	r.SetupsRejected.WithLabelValues(reason).Inc()
}

// RecordOutcome records one resolved prediction outcome.
func (r *Registry) RecordOutcome(symbol string, outcome domain.Outcome) {
	r.Outcomes.WithLabelValues(symbol, string(outcome)).Inc()
}

// SetStrategyWeight publishes the current adaptive multiplier.
func (r *Registry) SetStrategyWeight(strategy string, weight float64) {
	r.StrategyWeight.WithLabelValues(strategy).Set(weight)
}

// StageTimer times one pipeline stage.
type StageTimer struct {
	registry *Registry
	stage    string
	start    time.Time
}

// StartStage begins timing a pipeline stage.
func (r *Registry) StartStage(stage string) *StageTimer {
	return &StageTimer{registry: r, stage: stage, start: time.Now()}
}

// Stop records the elapsed stage duration.
func (t *StageTimer) Stop() {
	t.registry.StageDuration.WithLabelValues(t.stage).Observe(time.Since(t.start).Seconds())
}
