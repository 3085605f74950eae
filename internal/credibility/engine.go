// Package credibility blends a strategy's historical prior with a
// regime-conditioned likelihood into a posterior credibility score.
package credibility

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/domain"
)

// StatsProvider supplies historical prediction accuracy, normally the
// prediction tracker's aggregates.
type StatsProvider interface {
	Stats(ctx context.Context, symbol string) (*domain.PredictionStats, error)
}

// Confidence labels a posterior credibility tier.
type Confidence string

const (
	ConfidencePremium Confidence = "PREMIUM"
	ConfidenceStrong  Confidence = "STRONG"
	ConfidenceNeutral Confidence = "NEUTRAL"
)

// Assessment is the posterior credibility verdict for one
// symbol/strategy/regime triple.
type Assessment struct {
	Probability  float64    `json:"probability"`
	Confidence   Confidence `json:"confidence"`
	IsSuppressed bool       `json:"is_suppressed"`
	SampleSize   int        `json:"sample_size"`
}

const (
	defaultPrior       = 0.55
	likelihoodWeight   = 0.6
	priorWeight        = 0.4
	suppressionFloor   = 0.6
	minSamples         = 10
	minStrategySamples = 3
	neutralLikelihood  = 0.5 // regime unknown: no regime information
)

// Regime-conditioned likelihood table. Trend-following strategies score
// high in trends; reversal strategies invert the trend/range cells.
var likelihoodTable = map[bool]map[domain.Regime]float64{
	false: { // trend-following
		domain.Trending: 0.80,
		domain.Ranging:  0.40,
		domain.Volatile: 0.40,
	},
	true: { // reversal
		domain.Trending: 0.40,
		domain.Ranging:  0.80,
		domain.Volatile: 0.40,
	},
}

// reversalMarkers classify a strategy as mean-reverting by identifier.
var reversalMarkers = []string{"reversal", "fade", "sweep", "divergence", "exhaustion", "trap"}

type overrideRecord struct {
	wins   int
	losses int
}

// Engine computes posterior credibility. Production priors come from
// the stats provider; UpdatePerformance feeds a local override cache
// used when the provider has too little history.
type Engine struct {
	stats StatsProvider

	mu        sync.Mutex
	overrides map[string]*overrideRecord

	// reversalOverrides forces classification per strategy id.
	reversalOverrides map[string]bool
}

// NewEngine creates a credibility engine over the given stats source.
func NewEngine(stats StatsProvider) *Engine {
	return &Engine{
		stats:             stats,
		overrides:         make(map[string]*overrideRecord),
		reversalOverrides: make(map[string]bool),
	}
}

// SetStrategyClass forces the trend-following/reversal classification
// for a strategy id, overriding the identifier heuristic.
func (e *Engine) SetStrategyClass(strategyID string, reversal bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reversalOverrides[strategyID] = reversal
}

func (e *Engine) isReversal(strategyID string) bool {
	e.mu.Lock()
	forced, ok := e.reversalOverrides[strategyID]
	e.mu.Unlock()
	if ok {
		return forced
	}

	lower := strings.ToLower(strategyID)
	for _, marker := range reversalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func overrideKey(symbol, strategyID string) string {
	return symbol + "|" + strategyID
}

// UpdatePerformance increments the local override counters for a
// symbol/strategy pair. It backs credibility before the prediction
// tracker has accumulated history; it does not replace tracker data.
func (e *Engine) UpdatePerformance(symbol, strategyID string, isWin bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := overrideKey(symbol, strategyID)
	record, ok := e.overrides[key]
	if !ok {
		record = &overrideRecord{}
		e.overrides[key] = record
	}
	if isWin {
		record.wins++
	} else {
		record.losses++
	}
}

func (e *Engine) overrideAccuracy(symbol, strategyID string) (float64, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	record, ok := e.overrides[overrideKey(symbol, strategyID)]
	if !ok {
		return 0, 0
	}
	total := record.wins + record.losses
	if total == 0 {
		return 0, 0
	}
	return float64(record.wins) / float64(total), total
}

// PosteriorCredibility blends the historical prior with the
// regime-conditioned likelihood: posterior = 0.6*likelihood + 0.4*prior.
// Fewer than 10 historical samples yields the conservative default
// prior without suppression.
func (e *Engine) PosteriorCredibility(ctx context.Context, symbol, strategyID string, regime domain.Regime) Assessment {
	stats := e.loadStats(ctx, symbol)

	sampleSize := 0
	globalAccuracy := 0.0
	strategyBucket := domain.AccuracyBucket{}
	if stats != nil {
		sampleSize = stats.SampleSize
		globalAccuracy = stats.Accuracy
		strategyBucket = stats.ByStrategy[strategyID]
	}

	// The override cache substitutes when tracker history is thin.
	if sampleSize < minSamples {
		if acc, n := e.overrideAccuracy(symbol, strategyID); n >= minSamples {
			sampleSize = n
			globalAccuracy = acc
			strategyBucket = domain.AccuracyBucket{Accuracy: acc, Samples: n}
		}
	}

	if sampleSize < minSamples {
		return Assessment{
			Probability:  defaultPrior,
			Confidence:   ConfidenceNeutral,
			IsSuppressed: false,
			SampleSize:   sampleSize,
		}
	}

	prior := defaultPrior
	if strategyBucket.Samples >= minStrategySamples {
		prior = strategyBucket.Accuracy
	} else if sampleSize >= minSamples {
		prior = globalAccuracy
	}

	likelihood := neutralLikelihood
	if cell, ok := likelihoodTable[e.isReversal(strategyID)][regime]; ok {
		likelihood = cell
	}

	posterior := likelihoodWeight*likelihood + priorWeight*prior

	return Assessment{
		Probability:  posterior,
		Confidence:   confidenceFor(posterior),
		IsSuppressed: posterior < suppressionFloor,
		SampleSize:   sampleSize,
	}
}

func (e *Engine) loadStats(ctx context.Context, symbol string) *domain.PredictionStats {
	if e.stats == nil {
		return nil
	}
	stats, err := e.stats.Stats(ctx, symbol)
	if err != nil {
		// Collaborator unavailable: degrade to the default prior.
		log.Warn().Str("symbol", symbol).Err(err).Msg("prediction stats unavailable, using default prior")
		return nil
	}
	return stats
}

func confidenceFor(posterior float64) Confidence {
	switch {
	case posterior >= 0.8:
		return ConfidencePremium
	case posterior >= 0.7:
		return ConfidenceStrong
	default:
		return ConfidenceNeutral
	}
}

// EdgeLabelFor buckets a posterior probability into the display tier
// persisted on predictions.
func EdgeLabelFor(probability float64) domain.EdgeLabel {
	switch {
	case probability >= 0.8:
		return domain.EdgePremium
	case probability >= 0.7:
		return domain.EdgeStrong
	default:
		return domain.EdgeTradable
	}
}
