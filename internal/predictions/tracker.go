// Package predictions records every non-suppressed scored setup as a
// falsifiable prediction, resolves them against later price action, and
// aggregates accuracy stats that feed the credibility prior.
package predictions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/credibility"
	"github.com/edgeforge/signalrun/internal/domain"
	"github.com/edgeforge/signalrun/internal/store"
)

const (
	keyPrefix = "pred:"

	// Stats aggregate over the most recent resolved window only, so old
	// regimes age out of the prior.
	statsWindow   = 100
	lastOutcomes  = 10
	statsCacheTTL = 5 * time.Minute

	defaultTTL = 24 * time.Hour
)

func predictionKey(symbol, id string) string {
	return keyPrefix + symbol + ":" + id
}

type cachedStats struct {
	stats   *domain.PredictionStats
	expires time.Time
}

// Tracker persists and resolves predictions. Terminal outcomes are
// write-once: evaluation re-checks state under the lock before writing,
// so concurrent or repeated evaluations never flip a resolved record.
type Tracker struct {
	kv  store.KV
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]cachedStats
	now   func() time.Time
}

// NewTracker creates a tracker over the given store. ttl bounds how
// long a prediction stays evaluable; zero selects the 24h default.
func NewTracker(kv store.KV, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Tracker{
		kv:    kv,
		ttl:   ttl,
		cache: make(map[string]cachedStats),
		now:   time.Now,
	}
}

// Track records a prediction for a scored setup. Setups without a
// directional bias are not falsifiable and are skipped (nil, nil).
func (t *Tracker) Track(ctx context.Context, setup *domain.Setup, assessment credibility.Assessment, snapshotPrice float64) (*domain.Prediction, error) {
	if setup == nil {
		return nil, nil
	}
	if setup.Direction != domain.Bullish && setup.Direction != domain.Bearish {
		return nil, nil
	}

	now := t.now()
	prediction := &domain.Prediction{
		ID:            uuid.NewString(),
		Symbol:        setup.Symbol,
		Bias:          setup.Direction,
		Target:        setup.FirstTarget(),
		Invalidation:  setup.Stop,
		CreatedAt:     now,
		ExpiresAt:     now.Add(t.ttl),
		Strategy:      setup.Strategy,
		EdgeLabel:     credibility.EdgeLabelFor(assessment.Probability),
		SnapshotPrice: snapshotPrice,
		Outcome:       domain.OutcomePending,
	}

	if err := t.persist(ctx, prediction); err != nil {
		return nil, fmt.Errorf("track prediction: %w", err)
	}
	t.invalidateStats(setup.Symbol)

	log.Debug().
		Str("symbol", prediction.Symbol).
		Str("prediction", prediction.ID).
		Stringer("bias", prediction.Bias).
		Str("edge_label", string(prediction.EdgeLabel)).
		Msg("prediction tracked")
	return prediction, nil
}

// EvaluatePending resolves every pending prediction for the symbol
// against the current price. Expiry is checked before price levels, and
// invalidation before the target, so an ambiguous bar fails rather than
// wins. Returns the predictions resolved this pass.
func (t *Tracker) EvaluatePending(ctx context.Context, symbol string, currentPrice float64) ([]domain.Prediction, error) {
	entries, err := t.kv.Query(ctx, keyPrefix+symbol+":")
	if err != nil {
		return nil, fmt.Errorf("evaluate pending: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var resolved []domain.Prediction
	now := t.now()
	for key, raw := range entries {
		var prediction domain.Prediction
		if err := json.Unmarshal(raw, &prediction); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("skipping unreadable prediction record")
			continue
		}
		if prediction.Outcome.Terminal() {
			continue
		}

		outcome, reason := resolve(&prediction, currentPrice, now)
		if outcome == domain.OutcomePending {
			continue
		}

		prediction.Outcome = outcome
		prediction.Reason = reason
		evaluatedAt := now
		prediction.EvaluatedAt = &evaluatedAt

		if err := t.persist(ctx, &prediction); err != nil {
			return resolved, fmt.Errorf("evaluate pending: %w", err)
		}
		resolved = append(resolved, prediction)
	}

	if len(resolved) > 0 {
		delete(t.cache, symbol)
		log.Info().Str("symbol", symbol).Int("resolved", len(resolved)).Msg("predictions resolved")
	}
	return resolved, nil
}

// resolve maps a pending prediction plus the current price onto its
// outcome, or PENDING when nothing has triggered yet.
func resolve(prediction *domain.Prediction, currentPrice float64, now time.Time) (domain.Outcome, string) {
	if now.After(prediction.ExpiresAt) {
		return domain.OutcomeExpired, "expired without reaching target or invalidation"
	}

	if prediction.Bias == domain.Bullish {
		if currentPrice <= prediction.Invalidation {
			return domain.OutcomeFail, fmt.Sprintf("price %.2f crossed invalidation %.2f", currentPrice, prediction.Invalidation)
		}
		if currentPrice >= prediction.Target {
			return domain.OutcomeHit, fmt.Sprintf("price %.2f reached target %.2f", currentPrice, prediction.Target)
		}
		return domain.OutcomePending, ""
	}

	if currentPrice >= prediction.Invalidation {
		return domain.OutcomeFail, fmt.Sprintf("price %.2f crossed invalidation %.2f", currentPrice, prediction.Invalidation)
	}
	if currentPrice <= prediction.Target {
		return domain.OutcomeHit, fmt.Sprintf("price %.2f reached target %.2f", currentPrice, prediction.Target)
	}
	return domain.OutcomePending, ""
}

// Stats aggregates accuracy over the symbol's most recent predictions.
// Results are cached briefly since the credibility engine asks on every
// scoring pass. Implements credibility.StatsProvider.
func (t *Tracker) Stats(ctx context.Context, symbol string) (*domain.PredictionStats, error) {
	t.mu.Lock()
	if cached, ok := t.cache[symbol]; ok && t.now().Before(cached.expires) {
		t.mu.Unlock()
		return cached.stats, nil
	}
	t.mu.Unlock()

	entries, err := t.kv.Query(ctx, keyPrefix+symbol+":")
	if err != nil {
		return nil, fmt.Errorf("prediction stats: %w", err)
	}

	records := make([]domain.Prediction, 0, len(entries))
	for key, raw := range entries {
		var prediction domain.Prediction
		if err := json.Unmarshal(raw, &prediction); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("skipping unreadable prediction record")
			continue
		}
		records = append(records, prediction)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > statsWindow {
		records = records[:statsWindow]
	}

	stats := aggregate(symbol, records, t.now())

	t.mu.Lock()
	t.cache[symbol] = cachedStats{stats: stats, expires: t.now().Add(statsCacheTTL)}
	t.mu.Unlock()
	return stats, nil
}

// aggregate computes the accuracy buckets over records, newest first.
func aggregate(symbol string, records []domain.Prediction, now time.Time) *domain.PredictionStats {
	stats := &domain.PredictionStats{
		Symbol:      symbol,
		ByEdgeLabel: make(map[domain.EdgeLabel]domain.AccuracyBucket),
		ByStrategy:  make(map[string]domain.AccuracyBucket),
		GeneratedAt: now,
	}

	labelHits := make(map[domain.EdgeLabel]int)
	labelTotals := make(map[domain.EdgeLabel]int)
	strategyHits := make(map[string]int)
	strategyTotals := make(map[string]int)
	hits := 0

	for _, record := range records {
		if !record.Outcome.Terminal() {
			stats.Pending++
			continue
		}
		stats.SampleSize++
		labelTotals[record.EdgeLabel]++
		strategyTotals[record.Strategy]++
		if record.Outcome == domain.OutcomeHit {
			hits++
			labelHits[record.EdgeLabel]++
			strategyHits[record.Strategy]++
		}
		if len(stats.LastOutcomes) < lastOutcomes {
			stats.LastOutcomes = append(stats.LastOutcomes, record.Outcome)
		}
	}

	if stats.SampleSize > 0 {
		stats.Accuracy = float64(hits) / float64(stats.SampleSize)
	}
	for label, total := range labelTotals {
		stats.ByEdgeLabel[label] = domain.AccuracyBucket{
			Accuracy: float64(labelHits[label]) / float64(total),
			Samples:  total,
		}
	}
	for strategy, total := range strategyTotals {
		stats.ByStrategy[strategy] = domain.AccuracyBucket{
			Accuracy: float64(strategyHits[strategy]) / float64(total),
			Samples:  total,
		}
	}
	return stats
}

// Pending returns the symbol's unresolved predictions, newest first.
func (t *Tracker) Pending(ctx context.Context, symbol string) ([]domain.Prediction, error) {
	entries, err := t.kv.Query(ctx, keyPrefix+symbol+":")
	if err != nil {
		return nil, fmt.Errorf("pending predictions: %w", err)
	}

	pending := make([]domain.Prediction, 0)
	for key, raw := range entries {
		var prediction domain.Prediction
		if err := json.Unmarshal(raw, &prediction); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("skipping unreadable prediction record")
			continue
		}
		if !prediction.Outcome.Terminal() {
			pending = append(pending, prediction)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return pending, nil
}

func (t *Tracker) persist(ctx context.Context, prediction *domain.Prediction) error {
	raw, err := json.Marshal(prediction)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, predictionKey(prediction.Symbol, prediction.ID), raw)
}

func (t *Tracker) invalidateStats(symbol string) {
	t.mu.Lock()
	delete(t.cache, symbol)
	t.mu.Unlock()
}
