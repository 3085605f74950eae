// Package lifecycle advances published signals through status
// transitions as new price bars arrive: stop-outs, target hits,
// expiry, trailing-stop tightening, and partial take-profit advisories.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/domain"
)

// Config holds the signal-management thresholds.
type Config struct {
	ATRPeriod          int     `yaml:"atr_period"`
	ATRTrailMultiple   float64 `yaml:"atr_trail_multiple"`
	SwingLookback      int     `yaml:"swing_lookback"`
	MinCandlesForTrail int     `yaml:"min_candles_for_trail"`
	// Partial take-profit triggers.
	VolumeClimaxMultiple float64 `yaml:"volume_climax_multiple"`
	RejectionWickRatio   float64 `yaml:"rejection_wick_ratio"`
	PartialTPMinATR      float64 `yaml:"partial_tp_min_atr"`
}

// DefaultConfig returns production signal-management thresholds.
func DefaultConfig() *Config {
	return &Config{
		ATRPeriod:            14,
		ATRTrailMultiple:     2.5,
		SwingLookback:        10,
		MinCandlesForTrail:   20,
		VolumeClimaxMultiple: 2.5,
		RejectionWickRatio:   1.5,
		PartialTPMinATR:      2.0,
	}
}

const partialTPMarker = "Partial take-profit"

// Manager mutates signals in place as bars arrive. It is the only
// component allowed to change a published signal.
type Manager struct {
	config *Config
	now    func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{config: config, now: time.Now}
}

// UpdateSignalStatus applies hard invalidation first (stop-out,
// expiry), then target hits, then trailing-stop and partial-TP
// management. Terminal signals are never touched again.
func (m *Manager) UpdateSignalStatus(signal *domain.Signal, currentPrice float64, candles []domain.Candle) {
	if signal == nil || signal.Status.Terminal() {
		return
	}

	long := signal.Direction == domain.Bullish

	// The effective stop is the trailing stop once one exists; it is
	// always tighter than the original by construction.
	effectiveStop := signal.Stop
	if signal.TrailingStop != nil {
		effectiveStop = *signal.TrailingStop
	}

	if (long && currentPrice <= effectiveStop) || (!long && currentPrice >= effectiveStop) {
		signal.Status = domain.SignalStoppedOut
		signal.ManagementUpdates = append(signal.ManagementUpdates,
			fmt.Sprintf("Stopped out at %.2f (stop %.2f)", currentPrice, effectiveStop))
		log.Info().Str("signal", signal.ID).Str("symbol", signal.Symbol).Msg("signal stopped out")
		return
	}

	if m.now().After(signal.ExpiresAt) {
		signal.Status = domain.SignalExpired
		signal.ManagementUpdates = append(signal.ManagementUpdates,
			fmt.Sprintf("Expired at %s without resolution", signal.ExpiresAt.UTC().Format(time.RFC3339)))
		log.Info().Str("signal", signal.ID).Str("symbol", signal.Symbol).Msg("signal expired")
		return
	}

	// Highest target reached so far. Status only ever advances.
	for i := len(signal.Targets) - 1; i >= 0; i-- {
		reached := (long && currentPrice >= signal.Targets[i]) || (!long && currentPrice <= signal.Targets[i])
		if reached {
			if status := domain.HitStatus(i); rank(status) > rank(signal.Status) {
				signal.Status = status
				signal.ManagementUpdates = append(signal.ManagementUpdates,
					fmt.Sprintf("Target %d hit at %.2f", i+1, signal.Targets[i]))
			}
			break
		}
	}

	if len(candles) < m.config.MinCandlesForTrail {
		return
	}

	atr := averageTrueRange(candles, m.config.ATRPeriod)
	if atr > 0 {
		m.updateTrailingStop(signal, currentPrice, candles, atr, long)
		m.evaluatePartialTP(signal, currentPrice, candles, atr, long)
	}
}

// updateTrailingStop accepts the tighter of the ATR-multiple stop and
// the structural swing stop, and only when it strictly improves on the
// current trailing stop. A trailing stop never loosens.
func (m *Manager) updateTrailingStop(signal *domain.Signal, currentPrice float64, candles []domain.Candle, atr float64, long bool) {
	atrStop := currentPrice - m.config.ATRTrailMultiple*atr
	swingStop := swingLow(candles, m.config.SwingLookback)
	candidate := maxOf(atrStop, swingStop)
	if !long {
		atrStop = currentPrice + m.config.ATRTrailMultiple*atr
		swingStop = swingHigh(candles, m.config.SwingLookback)
		candidate = minOf(atrStop, swingStop)
	}

	current := signal.Stop
	if signal.TrailingStop != nil {
		current = *signal.TrailingStop
	}

	improves := (long && candidate > current) || (!long && candidate < current)
	if !improves {
		return
	}

	signal.TrailingStop = &candidate
	signal.ManagementUpdates = append(signal.ManagementUpdates,
		fmt.Sprintf("Trailing stop raised to %.2f (was %.2f)", candidate, current))
	if !long {
		signal.ManagementUpdates[len(signal.ManagementUpdates)-1] =
			fmt.Sprintf("Trailing stop lowered to %.2f (was %.2f)", candidate, current)
	}
}

// evaluatePartialTP appends a one-time advisory when a volume climax
// or a rejection wick appears with enough open profit to protect.
func (m *Manager) evaluatePartialTP(signal *domain.Signal, currentPrice float64, candles []domain.Candle, atr float64, long bool) {
	for _, update := range signal.ManagementUpdates {
		if len(update) >= len(partialTPMarker) && update[:len(partialTPMarker)] == partialTPMarker {
			return // already advised
		}
	}

	profit := currentPrice - signal.Entry.Optimal
	if !long {
		profit = signal.Entry.Optimal - currentPrice
	}
	if profit < m.config.PartialTPMinATR*atr {
		return
	}

	last := candles[len(candles)-1]

	climax := false
	window := candles[len(candles)-1-minInt(20, len(candles)-1) : len(candles)-1]
	if len(window) > 0 {
		sum := 0.0
		for _, candle := range window {
			sum += candle.Volume
		}
		avg := sum / float64(len(window))
		climax = avg > 0 && last.Volume > m.config.VolumeClimaxMultiple*avg
	}

	rejection := false
	body := last.Body()
	if body > 0 {
		if long && last.UpperWick() > m.config.RejectionWickRatio*body {
			rejection = true
		}
		if !long && last.LowerWick() > m.config.RejectionWickRatio*body {
			rejection = true
		}
	}

	if !climax && !rejection {
		return
	}

	trigger := "volume climax"
	if rejection && !climax {
		trigger = "rejection wick"
	}
	signal.ManagementUpdates = append(signal.ManagementUpdates,
		fmt.Sprintf("%s advised at %.2f (%s, %.1fx ATR in profit)", partialTPMarker, currentPrice, trigger, profit/atr))
}

// rank orders statuses so target hits only ever advance.
func rank(status domain.SignalStatus) int {
	switch status {
	case domain.SignalActive:
		return 0
	case domain.SignalHitTP1:
		return 1
	case domain.SignalHitTP2:
		return 2
	case domain.SignalHitTP3:
		return 3
	default:
		return 4
	}
}

// averageTrueRange computes the simple ATR over the last period bars.
func averageTrueRange(candles []domain.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := high - low
		if d := absF(high - prevClose); d > tr {
			tr = d
		}
		if d := absF(low - prevClose); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period)
}

func swingLow(candles []domain.Candle, lookback int) float64 {
	start := len(candles) - lookback
	if start < 0 {
		start = 0
	}
	low := candles[start].Low
	for _, candle := range candles[start:] {
		if candle.Low < low {
			low = candle.Low
		}
	}
	return low
}

func swingHigh(candles []domain.Candle, lookback int) float64 {
	start := len(candles) - lookback
	if start < 0 {
		start = 0
	}
	high := candles[start].High
	for _, candle := range candles[start:] {
		if candle.High > high {
			high = candle.High
		}
	}
	return high
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absF(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}
