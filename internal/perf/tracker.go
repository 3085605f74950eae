// Package perf maintains per-strategy win/loss track records and
// exposes the bounded dynamic weight multiplier the scorer consumes.
package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/domain"
	"github.com/edgeforge/signalrun/internal/store"
)

const keyPrefix = "perf:"

// Weight multiplier bands. The final multiplier is always clamped to
// [MinWeight, MaxWeight].
const (
	MinWeight = 0.5
	MaxWeight = 1.5

	streakBonusThreshold  = 3
	winRateBonusThreshold = 0.6
	winRateCutThreshold   = 0.4
	winRateMinSamples     = 10
)

// Tracker holds per-strategy records in memory and persists each
// mutation to the KV store. Reads have no side effects.
type Tracker struct {
	mu      sync.Mutex
	kv      store.KV
	records map[string]*domain.PerformanceRecord
	now     func() time.Time
}

// NewTracker creates a tracker backed by kv.
func NewTracker(kv store.KV) *Tracker {
	return &Tracker{
		kv:      kv,
		records: make(map[string]*domain.PerformanceRecord),
		now:     time.Now,
	}
}

// Load hydrates all persisted records. Call once at process start;
// a load failure leaves the tracker empty and is not fatal.
func (t *Tracker) Load(ctx context.Context) error {
	entries, err := t.kv.Query(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("load performance records: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, raw := range entries {
		var record domain.PerformanceRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("skipping unreadable performance record")
			continue
		}
		t.records[record.StrategyID] = &record
	}
	return nil
}

// record returns the record for strategyID, lazily initializing a
// fresh one (streak 0, neutral win rate) on first access.
// Caller must hold t.mu.
func (t *Tracker) record(strategyID string) *domain.PerformanceRecord {
	if existing, ok := t.records[strategyID]; ok {
		return existing
	}
	fresh := &domain.PerformanceRecord{
		StrategyID:    strategyID,
		RecentWinRate: 0.5,
	}
	t.records[strategyID] = fresh
	return fresh
}

// RecordOutcome updates the streak and recent-result window for the
// strategy and persists the record. rMultiple is recorded for
// reporting only; it does not affect the weight.
func (t *Tracker) RecordOutcome(ctx context.Context, strategyID string, isWin bool, rMultiple float64) error {
	t.mu.Lock()
	record := t.record(strategyID)

	if isWin {
		record.Wins++
		if record.Streak > 0 {
			record.Streak++
		} else {
			record.Streak = 1
		}
	} else {
		record.Losses++
		if record.Streak < 0 {
			record.Streak--
		} else {
			record.Streak = -1
		}
	}

	record.Recent = append(record.Recent, isWin)
	if len(record.Recent) > domain.RecentWindowSize {
		record.Recent = record.Recent[len(record.Recent)-domain.RecentWindowSize:]
	}

	wins := 0
	for _, won := range record.Recent {
		if won {
			wins++
		}
	}
	record.RecentWinRate = float64(wins) / float64(len(record.Recent))
	record.UpdatedAt = t.now()

	snapshot := *record
	t.mu.Unlock()

	raw, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("encode performance record %s: %w", strategyID, err)
	}
	if err := t.kv.Set(ctx, keyPrefix+strategyID, raw); err != nil {
		// Persistence failure degrades durability, not scoring.
		log.Warn().Str("strategy", strategyID).Err(err).Msg("performance record persist failed")
		return nil
	}

	log.Debug().
		Str("strategy", strategyID).
		Bool("win", isWin).
		Float64("r_multiple", rMultiple).
		Int("streak", snapshot.Streak).
		Float64("recent_win_rate", snapshot.RecentWinRate).
		Msg("performance outcome recorded")
	return nil
}

// DynamicWeight returns the strategy's weight multiplier: 1.0 base,
// +0.2 on a 3+ win streak, -0.2 on a 3+ loss streak, +0.2 when the
// recent window win rate exceeds 0.6 (with at least 10 samples), -0.2
// below 0.4, clamped to [0.5, 1.5].
func (t *Tracker) DynamicWeight(strategyID string) float64 {
	t.mu.Lock()
	record := t.record(strategyID)
	streak := record.Streak
	winRate := record.RecentWinRate
	samples := len(record.Recent)
	t.mu.Unlock()

	weight := 1.0
	if streak >= streakBonusThreshold {
		weight += 0.2
	} else if streak <= -streakBonusThreshold {
		weight -= 0.2
	}

	if samples >= winRateMinSamples {
		if winRate > winRateBonusThreshold {
			weight += 0.2
		} else if winRate < winRateCutThreshold {
			weight -= 0.2
		}
	}

	if weight < MinWeight {
		weight = MinWeight
	}
	if weight > MaxWeight {
		weight = MaxWeight
	}
	return weight
}

// Record returns a copy of the strategy's record for reporting.
func (t *Tracker) Record(strategyID string) domain.PerformanceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	record := t.record(strategyID)
	copied := *record
	copied.Recent = append([]bool(nil), record.Recent...)
	return copied
}
