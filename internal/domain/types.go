package domain

import (
	"time"
)

// Direction represents the directional bias of a setup, trend, or signal.
type Direction int

const (
	NoEdge Direction = iota
	Bullish
	Bearish
	Neutral
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "BULLISH"
	case Bearish:
		return "BEARISH"
	case Neutral:
		return "NEUTRAL"
	default:
		return "NO_EDGE"
	}
}

// Opposite returns the inverse directional bias. Neutral and NoEdge
// have no inverse and map to themselves.
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return d
	}
}

// Regime classifies current price behavior for factor re-weighting.
type Regime int

const (
	RegimeUnknown Regime = iota
	Trending
	Ranging
	Volatile
)

func (r Regime) String() string {
	switch r {
	case Trending:
		return "TRENDING"
	case Ranging:
		return "RANGING"
	case Volatile:
		return "VOLATILE"
	default:
		return "UNKNOWN"
	}
}

// ParseRegime maps a regime tag produced by the feature engines onto
// the internal classification. Unrecognized tags are treated as unknown.
func ParseRegime(tag string) Regime {
	switch tag {
	case "TRENDING", "trending":
		return Trending
	case "RANGING", "ranging":
		return Ranging
	case "VOLATILE", "volatile":
		return Volatile
	default:
		return RegimeUnknown
	}
}

// EntryZone defines the optimal entry price and its tolerance band.
type EntryZone struct {
	Optimal   float64 `json:"optimal"`
	Tolerance float64 `json:"tolerance"`
}

// Setup is a candidate trade produced by the strategy-detection
// engines. The scoring core reads it and attaches EdgeScore/Breakdown;
// no other field is mutated here.
type Setup struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Direction  Direction `json:"direction"`
	Strategy   string    `json:"strategy"`
	Entry      EntryZone `json:"entry"`
	Stop       float64   `json:"stop"`
	Targets    []float64 `json:"targets"`
	RiskReward float64   `json:"risk_reward"`

	// Confidence is the detector's directional-confidence estimate in
	// [0,1]. Nil means the detector did not emit one.
	Confidence *float64 `json:"confidence,omitempty"`

	// Attached by the scorer.
	EdgeScore float64         `json:"edge_score,omitempty"`
	Breakdown *ScoreBreakdown `json:"breakdown,omitempty"`
}

// FirstTarget returns the nearest target, or 0 when the list is empty.
func (s *Setup) FirstTarget() float64 {
	if len(s.Targets) == 0 {
		return 0
	}
	return s.Targets[0]
}

// ScoreBreakdown is the scorer's audit trail: the clamped 0-10 score
// plus ordered human-readable factor lists. Ephemeral per call.
type ScoreBreakdown struct {
	Score     float64  `json:"score"`
	Positives []string `json:"positives"`
	Risks     []string `json:"risks"`
}

// EdgeLabel buckets a posterior credibility into display tiers.
type EdgeLabel string

const (
	EdgePremium  EdgeLabel = "PREMIUM"
	EdgeStrong   EdgeLabel = "STRONG"
	EdgeTradable EdgeLabel = "TRADABLE"
)

// Candle is one OHLCV bar from the market-data collaborator.
type Candle struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Body returns the absolute open-close distance.
func (c Candle) Body() float64 {
	body := c.Close - c.Open
	if body < 0 {
		return -body
	}
	return body
}

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	return c.High - top
}

// LowerWick returns the distance from the body bottom to the low.
func (c Candle) LowerWick() float64 {
	bottom := c.Open
	if c.Close < bottom {
		bottom = c.Close
	}
	return bottom - c.Low
}
