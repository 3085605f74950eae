package domain

// MarketStateSnapshot is the named-analytics bag for one
// symbol/timeframe at one instant, produced entirely by the external
// feature engines. Every field is optional: a nil pointer means the
// engine did not report, and the corresponding scoring factor is
// skipped with no bonus and no penalty.
type MarketStateSnapshot struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Price     float64 `json:"price"`
	ATR       float64 `json:"atr,omitempty"`
	Regime    Regime  `json:"regime,omitempty"`

	Trend          *TrendState       `json:"trend,omitempty"`
	MTF            *MTFBias          `json:"mtf,omitempty"`
	Sentiment      *SentimentState   `json:"sentiment,omitempty"`
	VolumeAnalysis *VolumeAnalysis   `json:"volume_analysis,omitempty"`
	SMT            *SMTDivergence    `json:"smt,omitempty"`
	Session        *SessionState     `json:"session,omitempty"`
	Magnets        []LiquidityMagnet `json:"magnets,omitempty"`
	OrderFlow      *OrderFlowState   `json:"order_flow,omitempty"`
	VolumeProfile  *VolumeProfile    `json:"volume_profile,omitempty"`
	Macro          *MacroBias        `json:"macro,omitempty"`
	Correlation    *CorrelationRisk  `json:"correlation,omitempty"`
	OrderBook      *OrderBookState   `json:"order_book,omitempty"`
	NewsShock      *NewsShock        `json:"news_shock,omitempty"`
	TrapZones      *TrapZones        `json:"trap_zones,omitempty"`
	Cycle          *CyclePhase       `json:"cycle,omitempty"`
	LiquiditySweep *LiquiditySweep   `json:"liquidity_sweep,omitempty"`
	Alpha          *AlphaStatus      `json:"alpha,omitempty"`
	Momentum       *MomentumState    `json:"momentum,omitempty"`
	Fractal        *FractalMatch     `json:"fractal,omitempty"`
}

// TrendState is the local trend read for the snapshot's timeframe.
type TrendState struct {
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0-1
}

// MTFBias carries the higher-timeframe global bias verdict.
type MTFBias struct {
	GlobalBias Direction `json:"global_bias"`
	Strong     bool      `json:"strong"` // strong vs weak conviction
}

// SentimentState is the crowd-sentiment read.
type SentimentState struct {
	Label      Direction `json:"label"`
	Confidence float64   `json:"confidence"` // 0-1
}

// VolumeAnalysis flags institutional participation on the timeframe.
type VolumeAnalysis struct {
	IsInstitutional bool    `json:"is_institutional"`
	RelativeVolume  float64 `json:"relative_volume"`
}

// SMTDivergence is the smart-money / inter-market divergence read.
type SMTDivergence struct {
	Direction   Direction `json:"direction"`
	Confluence  float64   `json:"confluence"` // 0-100
	InterMarket bool      `json:"inter_market"`
}

// SessionState flags killzone sessions. Hour is the current UTC hour.
type SessionState struct {
	InKillzone bool `json:"in_killzone"`
	Hour       int  `json:"hour"`
}

// LiquidityMagnet is an unmitigated liquidity pool acting as a price
// magnet. Urgency is 0-100; Direction is the pull it implies.
type LiquidityMagnet struct {
	Price      float64   `json:"price"`
	Urgency    float64   `json:"urgency"`
	Direction  Direction `json:"direction"`
	Obligation bool      `json:"obligation"` // must-fill target
}

// IcebergWall is a hidden-size order wall detected in the flow.
type IcebergWall struct {
	Price     float64   `json:"price"`
	Direction Direction `json:"direction"` // side it supports
}

// Absorption describes passive absorption of aggressive flow.
type Absorption struct {
	Direction Direction `json:"direction"`
}

// OrderFlowState aggregates whale/flow detections.
type OrderFlowState struct {
	Icebergs   []IcebergWall `json:"icebergs,omitempty"`
	Absorption *Absorption   `json:"absorption,omitempty"`
	// CVDDirection is the cumulative-volume-delta slope direction.
	CVDDirection Direction `json:"cvd_direction"`
}

// VolumeProfile carries point-of-control context around the entry.
type VolumeProfile struct {
	POC      float64  `json:"poc"`
	NakedPOC *float64 `json:"naked_poc,omitempty"`
	DOMWall  *float64 `json:"dom_wall,omitempty"`
}

// MacroAction is the cross-asset macro engine's verdict strength.
type MacroAction string

const (
	MacroVeto  MacroAction = "VETO"
	MacroBoost MacroAction = "BOOST"
	MacroNone  MacroAction = "NONE"
)

// MacroBias is the cross-asset macro verdict for the symbol.
type MacroBias struct {
	Direction Direction   `json:"direction"`
	Action    MacroAction `json:"action"`
}

// CorrelationRisk flags correlation-cluster crowding.
type CorrelationRisk struct {
	Level string `json:"level"` // EXTREME | HIGH | MODERATE | LOW
}

// OrderBookState summarizes resting depth around the mid.
type OrderBookState struct {
	BidDepth float64 `json:"bid_depth"`
	AskDepth float64 `json:"ask_depth"`
}

// NewsShock is an active news/economic shock for the symbol.
type NewsShock struct {
	Severity string `json:"severity"` // HIGH | MEDIUM | LOW
	Message  string `json:"message"`
}

// TrapZone marks a detected stop-hunt trap level.
type TrapZone struct {
	Price float64 `json:"price"`
}

// TrapZones lists detected bull/bear trap levels.
type TrapZones struct {
	BullTraps []TrapZone `json:"bull_traps,omitempty"`
	BearTraps []TrapZone `json:"bear_traps,omitempty"`
}

// CyclePhaseName is the accumulation/manipulation/distribution tag.
type CyclePhaseName string

const (
	PhaseAccumulation CyclePhaseName = "ACCUMULATION"
	PhaseManipulation CyclePhaseName = "MANIPULATION"
	PhaseDistribution CyclePhaseName = "DISTRIBUTION"
	PhaseExpansion    CyclePhaseName = "EXPANSION"
)

// CyclePhase is the Wyckoff-style cycle classification.
type CyclePhase struct {
	Phase      CyclePhaseName `json:"phase"`
	Direction  Direction      `json:"direction"`
	JudasSwing bool           `json:"judas_swing"`
}

// LiquiditySweep records a completed sweep of resting liquidity.
type LiquiditySweep struct {
	Direction Direction `json:"direction"` // direction it favors next
}

// EngineStatus is one contributing sub-engine's health verdict.
type EngineStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"` // INSTITUTIONAL | HIGH_ALPHA | DEGRADING
}

// AlphaLeak is an active edge-decay warning from the alpha monitor.
type AlphaLeak struct {
	Severity string `json:"severity"` // HIGH | MEDIUM | LOW
}

// AlphaStatus aggregates the alpha-engine health lookup.
type AlphaStatus struct {
	Engines []EngineStatus `json:"engines,omitempty"`
	Leaks   []AlphaLeak    `json:"leaks,omitempty"`
}

// MomentumState is the oscillator cluster read.
type MomentumState struct {
	StochCross      *Direction `json:"stoch_cross,omitempty"`
	StochOversold   bool       `json:"stoch_oversold"`
	StochOverbought bool       `json:"stoch_overbought"`
	RSI             *float64   `json:"rsi,omitempty"`
	MACDHistSlope   *float64   `json:"macd_hist_slope,omitempty"`
}

// FractalMatch is a historical fractal-pattern match.
type FractalMatch struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // 0-1
}
