package predictions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeforge/signalrun/internal/credibility"
	"github.com/edgeforge/signalrun/internal/domain"
	"github.com/edgeforge/signalrun/internal/store"
)

func bullishSetup() *domain.Setup {
	return &domain.Setup{
		Symbol:    "BTCUSD",
		Timeframe: "1h",
		Direction: domain.Bullish,
		Strategy:  "breakout",
		Entry:     domain.EntryZone{Optimal: 50000, Tolerance: 100},
		Stop:      49000,
		Targets:   []float64{52000, 53000},
	}
}

func premiumAssessment() credibility.Assessment {
	return credibility.Assessment{Probability: 0.85, Confidence: credibility.ConfidencePremium}
}

func TestTrack_PersistsPrediction(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)

	prediction, err := tracker.Track(context.Background(), bullishSetup(), premiumAssessment(), 50000)

	require.NoError(t, err)
	require.NotNil(t, prediction)
	assert.NotEmpty(t, prediction.ID)
	assert.Equal(t, domain.Bullish, prediction.Bias)
	assert.Equal(t, 52000.0, prediction.Target)
	assert.Equal(t, 49000.0, prediction.Invalidation)
	assert.Equal(t, domain.EdgePremium, prediction.EdgeLabel)
	assert.Equal(t, domain.OutcomePending, prediction.Outcome)
	assert.True(t, prediction.ExpiresAt.After(prediction.CreatedAt))

	pending, err := tracker.Pending(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestTrack_SkipsNonDirectionalSetups(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)

	for _, direction := range []domain.Direction{domain.NoEdge, domain.Neutral} {
		setup := bullishSetup()
		setup.Direction = direction
		prediction, err := tracker.Track(context.Background(), setup, premiumAssessment(), 50000)
		require.NoError(t, err)
		assert.Nil(t, prediction)
	}
}

func TestEvaluatePending_HitAndFail(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)
	ctx := context.Background()

	_, err := tracker.Track(ctx, bullishSetup(), premiumAssessment(), 50000)
	require.NoError(t, err)

	// Price between invalidation and target: nothing resolves.
	resolved, err := tracker.EvaluatePending(ctx, "BTCUSD", 50500)
	require.NoError(t, err)
	assert.Empty(t, resolved)

	resolved, err = tracker.EvaluatePending(ctx, "BTCUSD", 52100)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.OutcomeHit, resolved[0].Outcome)

	stats, err := tracker.Stats(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SampleSize)
	assert.Equal(t, 1.0, stats.Accuracy)

	// A fresh bullish prediction failed by an invalidation cross.
	_, err = tracker.Track(ctx, bullishSetup(), premiumAssessment(), 50000)
	require.NoError(t, err)
	resolved, err = tracker.EvaluatePending(ctx, "BTCUSD", 48500)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.OutcomeFail, resolved[0].Outcome)
	assert.Contains(t, resolved[0].Reason, "invalidation")
}

func TestEvaluatePending_BearishMirror(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)
	ctx := context.Background()

	setup := bullishSetup()
	setup.Direction = domain.Bearish
	setup.Stop = 51000
	setup.Targets = []float64{48000}
	_, err := tracker.Track(ctx, setup, premiumAssessment(), 50000)
	require.NoError(t, err)

	resolved, err := tracker.EvaluatePending(ctx, "BTCUSD", 47900)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.OutcomeHit, resolved[0].Outcome)

	stats, err := tracker.Stats(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats.Accuracy)
}

func TestEvaluatePending_ExpiryBeatsPriceLevels(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), time.Hour)
	ctx := context.Background()

	_, err := tracker.Track(ctx, bullishSetup(), premiumAssessment(), 50000)
	require.NoError(t, err)

	tracker.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	// Price is past the target, but the prediction expired first.
	resolved, err := tracker.EvaluatePending(ctx, "BTCUSD", 52500)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.OutcomeExpired, resolved[0].Outcome)

	pending, err := tracker.Pending(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err := tracker.Stats(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SampleSize)
	assert.Zero(t, stats.Accuracy)
	require.Len(t, stats.LastOutcomes, 1)
	assert.Equal(t, domain.OutcomeExpired, stats.LastOutcomes[0])
}

func TestEvaluatePending_TerminalWritesAreIdempotent(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)
	ctx := context.Background()

	_, err := tracker.Track(ctx, bullishSetup(), premiumAssessment(), 50000)
	require.NoError(t, err)

	resolved, err := tracker.EvaluatePending(ctx, "BTCUSD", 52100)
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	// Re-evaluating at a price that would now mean FAIL must not flip
	// the already-terminal record, nor count it again.
	for _, price := range []float64{48000, 52100, 50000} {
		resolved, err = tracker.EvaluatePending(ctx, "BTCUSD", price)
		require.NoError(t, err)
		assert.Empty(t, resolved)
	}

	stats, err := tracker.Stats(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SampleSize)
	assert.Equal(t, 1.0, stats.Accuracy)
}

func TestStats_BucketsByLabelAndStrategy(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)
	ctx := context.Background()

	// Two premium breakout wins.
	for i := 0; i < 2; i++ {
		_, err := tracker.Track(ctx, bullishSetup(), premiumAssessment(), 50000)
		require.NoError(t, err)
	}
	_, err := tracker.EvaluatePending(ctx, "BTCUSD", 52100)
	require.NoError(t, err)

	// One tradable sweep-reversal loss.
	setup := bullishSetup()
	setup.Strategy = "sweep-reversal"
	_, err = tracker.Track(ctx, setup, credibility.Assessment{Probability: 0.55}, 50000)
	require.NoError(t, err)
	_, err = tracker.EvaluatePending(ctx, "BTCUSD", 48500)
	require.NoError(t, err)

	stats, err := tracker.Stats(ctx, "BTCUSD")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.SampleSize)
	assert.InDelta(t, 2.0/3.0, stats.Accuracy, 0.001)

	premium := stats.ByEdgeLabel[domain.EdgePremium]
	assert.Equal(t, 2, premium.Samples)
	assert.Equal(t, 1.0, premium.Accuracy)

	tradable := stats.ByEdgeLabel[domain.EdgeTradable]
	assert.Equal(t, 1, tradable.Samples)
	assert.Zero(t, tradable.Accuracy)

	breakout := stats.ByStrategy["breakout"]
	assert.Equal(t, 2, breakout.Samples)
	assert.Equal(t, 1.0, breakout.Accuracy)

	reversal := stats.ByStrategy["sweep-reversal"]
	assert.Equal(t, 1, reversal.Samples)
	assert.Zero(t, reversal.Accuracy)
}

func TestStats_CacheInvalidatedByWrites(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)
	ctx := context.Background()

	_, err := tracker.Track(ctx, bullishSetup(), premiumAssessment(), 50000)
	require.NoError(t, err)

	before, err := tracker.Stats(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Zero(t, before.SampleSize)
	assert.Equal(t, 1, before.Pending)

	_, err = tracker.EvaluatePending(ctx, "BTCUSD", 52100)
	require.NoError(t, err)

	after, err := tracker.Stats(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, after.SampleSize)
	assert.Zero(t, after.Pending)
}

func TestStats_SymbolsAreIsolated(t *testing.T) {
	tracker := NewTracker(store.NewMemoryKV(), 0)
	ctx := context.Background()

	_, err := tracker.Track(ctx, bullishSetup(), premiumAssessment(), 50000)
	require.NoError(t, err)

	eth := bullishSetup()
	eth.Symbol = "ETHUSD"
	_, err = tracker.Track(ctx, eth, premiumAssessment(), 3000)
	require.NoError(t, err)

	resolved, err := tracker.EvaluatePending(ctx, "BTCUSD", 52100)
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	ethStats, err := tracker.Stats(ctx, "ETHUSD")
	require.NoError(t, err)
	assert.Zero(t, ethStats.SampleSize)
	assert.Equal(t, 1, ethStats.Pending)
}
