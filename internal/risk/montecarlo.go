// Package risk estimates ruin/success probabilities for a setup via a
// stochastic random-walk Monte Carlo simulation.
package risk

import (
	"math"
	"math/rand"
	"sort"

	"github.com/edgeforge/signalrun/internal/domain"
)

const (
	// DefaultIterations balances stability of the aggregate
	// probabilities against CPU cost.
	DefaultIterations = 1000

	maxSteps = 48
)

// Result contains aggregate path statistics. Probabilities are
// percentages rounded to two decimals.
type Result struct {
	RuinProbability    float64 `json:"ruin_probability"`
	SuccessProbability float64 `json:"success_probability"`
	NeutralProbability float64 `json:"neutral_probability"`
	SafetyScore        float64 `json:"safety_score"` // 0-100
	MedianPnL          float64 `json:"median_pnl"`   // % move at path end
	Iterations         int     `json:"iterations"`
}

// Simulator runs Monte Carlo walks with an injectable random source so
// tests can pin a seed. A nil source falls back to a time-seeded one.
type Simulator struct {
	newRand func() *rand.Rand
}

// NewSimulator creates a simulator with the given source factory.
func NewSimulator(newRand func() *rand.Rand) *Simulator {
	if newRand == nil {
		newRand = func() *rand.Rand {
			return rand.New(rand.NewSource(rand.Int63()))
		}
	}
	return &Simulator{newRand: newRand}
}

// RunMonteCarlo walks iterations independent price paths from the
// setup's entry and classifies each as TP, SL, or NEUTRAL. Each step
// is atr/4 scaled by an approximate standard normal draw (sum of six
// uniforms, recentered and scaled). Degenerate setups short-circuit to
// a safe default.
func (s *Simulator) RunMonteCarlo(setup *domain.Setup, atr float64, iterations int) Result {
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	if setup == nil || setup.Entry.Optimal <= 0 || setup.Stop <= 0 || len(setup.Targets) == 0 || atr <= 0 {
		return Result{
			RuinProbability: 0,
			SafetyScore:     100,
			MedianPnL:       0,
			Iterations:      iterations,
		}
	}

	entry := setup.Entry.Optimal
	stop := setup.Stop
	target := setup.Targets[0]
	bullish := setup.Direction == domain.Bullish

	rng := s.newRand()
	stepScale := atr / 4.0

	var tpCount, slCount, neutralCount int
	finalPnLs := make([]float64, 0, iterations)

	for i := 0; i < iterations; i++ {
		price := entry
		outcome := "NEUTRAL"

		for step := 0; step < maxSteps; step++ {
			price += stepScale * approxNormal(rng)

			if bullish {
				if price >= target {
					outcome = "TP"
					break
				}
				if price <= stop {
					outcome = "SL"
					break
				}
			} else {
				if price <= target {
					outcome = "TP"
					break
				}
				if price >= stop {
					outcome = "SL"
					break
				}
			}
		}

		switch outcome {
		case "TP":
			tpCount++
		case "SL":
			slCount++
		default:
			neutralCount++
		}

		pnl := (price - entry) / entry * 100
		if !bullish {
			pnl = -pnl
		}
		finalPnLs = append(finalPnLs, pnl)
	}

	ruin := round2(float64(slCount) / float64(iterations) * 100)
	success := round2(float64(tpCount) / float64(iterations) * 100)
	neutral := round2(float64(neutralCount) / float64(iterations) * 100)

	safety := success*1.5 - ruin*0.5
	if safety < 0 {
		safety = 0
	}
	if safety > 100 {
		safety = 100
	}

	return Result{
		RuinProbability:    ruin,
		SuccessProbability: success,
		NeutralProbability: neutral,
		SafetyScore:        round2(safety),
		MedianPnL:          round2(median(finalPnLs)),
		Iterations:         iterations,
	}
}

// approxNormal draws an approximate standard normal: six uniform(0,1)
// draws summed, recentered by 3, scaled by 1/1.5.
func approxNormal(rng *rand.Rand) float64 {
	sum := 0.0
	for i := 0; i < 6; i++ {
		sum += rng.Float64()
	}
	return (sum - 3.0) / 1.5
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
