package domain

import (
	"time"
)

// RecentWindowSize bounds the per-strategy recent-result ring buffer.
const RecentWindowSize = 20

// PerformanceRecord is the cumulative per-strategy track record. It is
// mutated only by the performance tracker and persisted after every
// mutation.
type PerformanceRecord struct {
	StrategyID string    `json:"strategy_id"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	// Streak is signed: positive for consecutive wins, negative for
	// consecutive losses. The sign resets on reversal.
	Streak        int       `json:"streak"`
	Recent        []bool    `json:"recent"` // newest last, max RecentWindowSize
	RecentWinRate float64   `json:"recent_win_rate"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Outcome is a prediction's lifecycle state. Terminal outcomes are
// write-once.
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeHit     Outcome = "HIT"
	OutcomeFail    Outcome = "FAIL"
	OutcomeExpired Outcome = "EXPIRED"
)

// Terminal reports whether the outcome can no longer change.
func (o Outcome) Terminal() bool {
	return o == OutcomeHit || o == OutcomeFail || o == OutcomeExpired
}

// Prediction is a persisted record of one scored, non-suppressed setup
// at publish time, evaluated later against price action.
type Prediction struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Bias          Direction  `json:"bias"`
	Target        float64    `json:"target"`
	Invalidation  float64    `json:"invalidation"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Strategy      string     `json:"strategy"`
	EdgeLabel     EdgeLabel  `json:"edge_label"`
	SnapshotPrice float64    `json:"snapshot_price"`
	Outcome       Outcome    `json:"outcome"`
	EvaluatedAt   *time.Time `json:"evaluated_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// SignalStatus is a published signal's lifecycle state.
type SignalStatus string

const (
	SignalActive     SignalStatus = "ACTIVE"
	SignalHitTP1     SignalStatus = "HIT_TP1"
	SignalHitTP2     SignalStatus = "HIT_TP2"
	SignalHitTP3     SignalStatus = "HIT_TP3"
	SignalStoppedOut SignalStatus = "STOPPED_OUT"
	SignalExpired    SignalStatus = "EXPIRED"
)

// Terminal reports whether the signal can no longer change state.
func (s SignalStatus) Terminal() bool {
	return s == SignalStoppedOut || s == SignalExpired
}

// HitStatus returns the status for the given zero-based target index.
// Indexes past the third target saturate at HIT_TP3.
func HitStatus(targetIndex int) SignalStatus {
	switch targetIndex {
	case 0:
		return SignalHitTP1
	case 1:
		return SignalHitTP2
	default:
		return SignalHitTP3
	}
}

// Signal is a cross-timeframe institutional-grade publication emitted
// only when the confluence gate passes.
type Signal struct {
	ID         string       `json:"id"`
	Symbol     string       `json:"symbol"`
	Direction  Direction    `json:"direction"`
	Entry      EntryZone    `json:"entry"`
	Targets    []float64    `json:"targets"`
	Stop       float64      `json:"stop"`
	Score      float64      `json:"score"`
	Breakdown  []string     `json:"breakdown"`
	Timeframes []string     `json:"timeframes"`
	Status     SignalStatus `json:"status"`
	// TrailingStop only ever moves in the profit-locking direction.
	TrailingStop      *float64  `json:"trailing_stop,omitempty"`
	ManagementUpdates []string  `json:"management_updates,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}
