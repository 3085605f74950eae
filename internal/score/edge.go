// Package score implements the multi-factor edge scorer: an ordered
// list of pure factor functions summed into a clamped 0-10 score with
// a human-readable positive/risk breakdown.
package score

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/credibility"
	"github.com/edgeforge/signalrun/internal/domain"
)

// WeightProvider supplies the adaptive per-strategy multiplier,
// normally the performance tracker.
type WeightProvider interface {
	DynamicWeight(strategyID string) float64
}

// Scorer converts one setup plus market context into an edge score.
type Scorer struct {
	weights WeightProvider
}

// NewScorer creates a scorer. weights may be nil, in which case every
// strategy scores at the neutral 1.0 multiplier.
func NewScorer(weights WeightProvider) *Scorer {
	return &Scorer{weights: weights}
}

// CalculateScore applies every factor in priority order, sums the
// points, and clamps the result into [0,10] (one decimal). Missing
// inputs yield a zero score with an explanatory risk line; they are
// never an error.
func (s *Scorer) CalculateScore(setup *domain.Setup, state *domain.MarketStateSnapshot, cred credibility.Assessment) domain.ScoreBreakdown {
	if setup == nil {
		return domain.ScoreBreakdown{Score: 0, Risks: []string{"No active setup"}}
	}
	if state == nil {
		return domain.ScoreBreakdown{Score: 0, Risks: []string{"Missing market context"}}
	}

	weight := 1.0
	if s.weights != nil {
		weight = s.weights.DynamicWeight(setup.Strategy)
	}

	fc := &factorContext{
		setup:   setup,
		state:   state,
		cred:    cred,
		weight:  weight,
		profile: profileFor(setup.Timeframe),
		regime:  regimeFor(state.Regime),
	}

	totalPoints := 0.0
	vetoed := false
	breakdown := domain.ScoreBreakdown{}

	for _, factor := range orderedFactors {
		for _, c := range factor(fc) {
			totalPoints += c.points
			if c.veto {
				vetoed = true
			}
			if c.risk {
				breakdown.Risks = append(breakdown.Risks, c.label)
			} else {
				breakdown.Positives = append(breakdown.Positives, c.label)
			}
		}
	}

	score := round1(totalPoints / 100 * 10)
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	// An entry-adjacent trap veto dominates: accumulated positives
	// cannot rescue the setup past the floor.
	if vetoed && score > 1.0 {
		score = 1.0
	}
	breakdown.Score = score

	log.Debug().
		Str("symbol", setup.Symbol).
		Str("timeframe", setup.Timeframe).
		Str("strategy", setup.Strategy).
		Float64("points", totalPoints).
		Float64("score", score).
		Bool("vetoed", vetoed).
		Msg("edge score computed")

	return breakdown
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
