package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/edgeforge/signalrun/internal/domain"
)

func seeded(seed int64) func() *rand.Rand {
	return func() *rand.Rand {
		return rand.New(rand.NewSource(seed))
	}
}

func bullishSetup() *domain.Setup {
	return &domain.Setup{
		Symbol:    "BTCUSD",
		Direction: domain.Bullish,
		Entry:     domain.EntryZone{Optimal: 50000, Tolerance: 100},
		Stop:      49000,
		Targets:   []float64{52000},
	}
}

func TestRunMonteCarlo_ProbabilitiesSumToHundred(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1337} {
		sim := NewSimulator(seeded(seed))
		result := sim.RunMonteCarlo(bullishSetup(), 400, 1000)

		total := result.RuinProbability + result.SuccessProbability + result.NeutralProbability
		if math.Abs(total-100) > 0.1 {
			t.Errorf("seed %d: probabilities sum to %.2f, expected ~100", seed, total)
		}
		if result.Iterations != 1000 {
			t.Errorf("seed %d: expected 1000 iterations, got %d", seed, result.Iterations)
		}
	}
}

func TestRunMonteCarlo_FixedSeedIsReproducible(t *testing.T) {
	first := NewSimulator(seeded(42)).RunMonteCarlo(bullishSetup(), 400, 1000)
	second := NewSimulator(seeded(42)).RunMonteCarlo(bullishSetup(), 400, 1000)

	if first != second {
		t.Errorf("Expected identical results for identical seed: %+v vs %+v", first, second)
	}
}

func TestRunMonteCarlo_DegenerateSetupShortCircuits(t *testing.T) {
	sim := NewSimulator(seeded(1))

	degenerates := []*domain.Setup{
		nil,
		{Direction: domain.Bullish, Stop: 49000, Targets: []float64{52000}},                                  // no entry
		{Direction: domain.Bullish, Entry: domain.EntryZone{Optimal: 50000}, Targets: []float64{52000}},      // no stop
		{Direction: domain.Bullish, Entry: domain.EntryZone{Optimal: 50000}, Stop: 49000},                    // no targets
	}

	for i, setup := range degenerates {
		result := sim.RunMonteCarlo(setup, 400, 1000)
		if result.RuinProbability != 0 || result.SafetyScore != 100 || result.MedianPnL != 0 {
			t.Errorf("degenerate %d: expected safe default, got %+v", i, result)
		}
	}

	// Zero ATR is equally degenerate.
	result := sim.RunMonteCarlo(bullishSetup(), 0, 1000)
	if result.SafetyScore != 100 {
		t.Errorf("Expected safe default for zero ATR, got %+v", result)
	}
}

func TestRunMonteCarlo_TightStopRaisesRuin(t *testing.T) {
	wide := bullishSetup() // 1000 points of stop room
	tight := bullishSetup()
	tight.Stop = 49900 // 100 points of stop room, same target

	sim := NewSimulator(seeded(7))
	wideResult := sim.RunMonteCarlo(wide, 400, 2000)
	tightResult := NewSimulator(seeded(7)).RunMonteCarlo(tight, 400, 2000)

	if tightResult.RuinProbability <= wideResult.RuinProbability {
		t.Errorf("Tighter stop should ruin more often: tight=%.2f wide=%.2f",
			tightResult.RuinProbability, wideResult.RuinProbability)
	}
}

func TestRunMonteCarlo_BearishMirrorsBullish(t *testing.T) {
	bearish := &domain.Setup{
		Symbol:    "BTCUSD",
		Direction: domain.Bearish,
		Entry:     domain.EntryZone{Optimal: 50000},
		Stop:      51000,
		Targets:   []float64{48000},
	}

	result := NewSimulator(seeded(99)).RunMonteCarlo(bearish, 400, 1000)

	total := result.RuinProbability + result.SuccessProbability + result.NeutralProbability
	if math.Abs(total-100) > 0.1 {
		t.Errorf("Bearish probabilities sum to %.2f, expected ~100", total)
	}
	if result.SuccessProbability == 0 && result.RuinProbability == 0 {
		t.Error("Expected some terminal paths for a bearish setup")
	}
}

func TestRunMonteCarlo_SafetyScoreWithinBounds(t *testing.T) {
	for _, seed := range []int64{3, 11, 23} {
		result := NewSimulator(seeded(seed)).RunMonteCarlo(bullishSetup(), 800, 1000)
		if result.SafetyScore < 0 || result.SafetyScore > 100 {
			t.Errorf("seed %d: safety score %.2f outside [0,100]", seed, result.SafetyScore)
		}
	}
}
