package score

import (
	"github.com/edgeforge/signalrun/internal/domain"
)

// TraderProfile classifies a setup's timeframe into a trading style,
// which sets the minimum acceptable risk:reward and the relative
// weighting of session and higher-timeframe factors.
type TraderProfile string

const (
	ProfileScalper   TraderProfile = "SCALPER"
	ProfileDayTrader TraderProfile = "DAY_TRADER"
	ProfileSwing     TraderProfile = "SWING"
)

// profileParams carries the per-profile factor weighting.
type profileParams struct {
	Profile        TraderProfile
	MinRR          float64
	KillzoneWeight float64
	HTFWeight      float64
}

// profileFor maps a timeframe string onto its trader profile.
// Unrecognized timeframes default to the day-trader profile.
func profileFor(timeframe string) profileParams {
	switch timeframe {
	case "1m", "3m", "5m":
		return profileParams{Profile: ProfileScalper, MinRR: 1.0, KillzoneWeight: 1.5, HTFWeight: 0.6}
	case "4h", "6h", "12h", "1d", "1w":
		return profileParams{Profile: ProfileSwing, MinRR: 2.0, KillzoneWeight: 0.5, HTFWeight: 1.3}
	default: // 15m, 30m, 1h and anything else
		return profileParams{Profile: ProfileDayTrader, MinRR: 1.5, KillzoneWeight: 1.0, HTFWeight: 1.0}
	}
}

// regimeParams shifts trend-factor weight up and oscillator-factor
// weight down in trends, and the reverse in ranges.
type regimeParams struct {
	TrendWeight      float64
	OscillatorWeight float64
}

func regimeFor(regime domain.Regime) regimeParams {
	switch regime {
	case domain.Trending:
		return regimeParams{TrendWeight: 1.3, OscillatorWeight: 0.7}
	case domain.Ranging:
		return regimeParams{TrendWeight: 0.7, OscillatorWeight: 1.3}
	default: // volatile or unknown: no tilt
		return regimeParams{TrendWeight: 1.0, OscillatorWeight: 1.0}
	}
}
