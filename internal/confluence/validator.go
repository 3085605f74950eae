// Package confluence merges per-timeframe scored setups into one
// gated, cross-timeframe signal.
package confluence

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/domain"
)

// ShockProvider is the news-shock lookup collaborator. A nil shock
// means no active shock. Lookup failures degrade to "no shock".
type ShockProvider interface {
	ActiveShock(ctx context.Context, symbol string) (*domain.NewsShock, error)
}

// TimeframeResult is one timeframe's scored analysis for a symbol.
type TimeframeResult struct {
	Timeframe string
	Setups    []*domain.Setup
	State     *domain.MarketStateSnapshot
}

// Config holds the confluence gate thresholds.
type Config struct {
	MinTimeframes       int           `yaml:"min_timeframes"`
	MinScore            float64       `yaml:"min_score"`
	ClusterTolerancePct float64       `yaml:"cluster_tolerance_pct"`
	SignalTTL           time.Duration `yaml:"signal_ttl"`
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() *Config {
	return &Config{
		MinTimeframes:       4,
		MinScore:            75,
		ClusterTolerancePct: 0.5,
		SignalTTL:           48 * time.Hour,
	}
}

// Validator performs directional-consensus gating and confluence
// scoring across timeframes.
type Validator struct {
	config *Config
	shocks ShockProvider
	now    func() time.Time
}

// NewValidator creates a validator. shocks may be nil when no news
// collaborator is wired.
func NewValidator(config *Config, shocks ShockProvider) *Validator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Validator{config: config, shocks: shocks, now: time.Now}
}

// timeframeWeight ranks chart granularities for alignment scoring.
func timeframeWeight(timeframe string) float64 {
	switch timeframe {
	case "1w":
		return 5
	case "1d":
		return 4
	case "4h", "6h", "12h":
		return 3
	case "1h", "2h":
		return 2
	default: // 30m, 15m and finer
		return 1
	}
}

func isHigherTimeframe(timeframe string) bool {
	return timeframeWeight(timeframe) >= 3
}

// htfPriority orders candidates for the global-bias read, highest
// granularity first.
var htfPriority = []string{"1w", "1d", "4h"}

// Validate merges the per-timeframe results into one gated signal, or
// nil when consensus or the score gate fails.
func (v *Validator) Validate(ctx context.Context, symbol string, results []TimeframeResult) *domain.Signal {
	bearing := make([]TimeframeResult, 0, len(results))
	for _, result := range results {
		if len(result.Setups) > 0 {
			bearing = append(bearing, result)
		}
	}
	if len(bearing) < v.config.MinTimeframes {
		return nil
	}

	globalBias := v.globalBias(results)

	// Partition setups into directional groups and find the dominant
	// one by distinct confirming timeframes.
	groups := map[domain.Direction]map[string][]*domain.Setup{
		domain.Bullish: {},
		domain.Bearish: {},
	}
	for _, result := range bearing {
		for _, setup := range result.Setups {
			if setup.Direction != domain.Bullish && setup.Direction != domain.Bearish {
				continue
			}
			groups[setup.Direction][result.Timeframe] = append(groups[setup.Direction][result.Timeframe], setup)
		}
	}

	direction := domain.Bullish
	if len(groups[domain.Bearish]) > len(groups[domain.Bullish]) {
		direction = domain.Bearish
	}
	group := groups[direction]

	if len(group) < v.config.MinTimeframes {
		return nil
	}
	if globalBias != domain.Neutral && globalBias != direction {
		log.Debug().
			Str("symbol", symbol).
			Stringer("direction", direction).
			Stringer("global_bias", globalBias).
			Msg("confluence rejected: group fights global bias")
		return nil
	}

	// Flatten the confirming setups, best-per-timeframe first.
	confirming := make([]*domain.Setup, 0, len(group))
	timeframes := make([]string, 0, len(group))
	for timeframe, setups := range group {
		best := setups[0]
		for _, setup := range setups[1:] {
			if setup.EdgeScore > best.EdgeScore {
				best = setup
			}
		}
		confirming = append(confirming, best)
		timeframes = append(timeframes, timeframe)
	}
	sort.Strings(timeframes)

	total := 0.0
	var breakdown []string
	add := func(points float64, format string, args ...interface{}) {
		total += points
		breakdown = append(breakdown, fmt.Sprintf(format, args...))
	}

	// Timeframe-density band.
	switch count := len(group); {
	case count >= 7:
		add(25, "%d confirming timeframes (+25)", count)
	case count == 6:
		add(20, "%d confirming timeframes (+20)", count)
	case count == 5:
		add(15, "%d confirming timeframes (+15)", count)
	default:
		add(10, "%d confirming timeframes (+10)", count)
	}

	// Timeframe-weighted alignment, scaled to 25 points max.
	confirmingWeight := 0.0
	totalWeight := 0.0
	for _, result := range bearing {
		weight := timeframeWeight(result.Timeframe)
		totalWeight += weight
		if _, ok := group[result.Timeframe]; ok {
			confirmingWeight += weight
		}
	}
	if totalWeight > 0 {
		pts := round1(confirmingWeight / totalWeight * 25)
		add(pts, "Weighted timeframe alignment %.0f/%.0f (%+.1f)", confirmingWeight, totalWeight, pts)
	}

	// HTF vs LTF consensus divergence.
	htfDir := consensusDirection(bearing, true)
	ltfDir := consensusDirection(bearing, false)
	if htfDir != domain.Neutral && ltfDir != domain.Neutral {
		if htfDir != ltfDir {
			add(-30, "HTF consensus %s diverges from LTF consensus %s (-30)", htfDir, ltfDir)
		} else if htfDir == direction {
			add(10, "HTF and LTF consensus both %s (+10)", direction)
		}
	}

	// Price-level clustering of entry zones.
	ratio := v.clusterRatio(confirming)
	switch {
	case ratio >= 0.8:
		add(30, "Entry zones tightly clustered, %.0f%% within %.1f%% (+30)", ratio*100, v.config.ClusterTolerancePct)
	case ratio >= 0.5:
		add(20, "Entry zones clustered, %.0f%% within %.1f%% (+20)", ratio*100, v.config.ClusterTolerancePct)
	case ratio >= 0.3:
		add(10, "Entry zones loosely clustered, %.0f%% within %.1f%% (+10)", ratio*100, v.config.ClusterTolerancePct)
	default:
		add(-10, "Entry zones scattered, %.0f%% within %.1f%% (-10)", ratio*100, v.config.ClusterTolerancePct)
	}

	// Average per-timeframe edge score.
	sum := 0.0
	for _, setup := range confirming {
		sum += setup.EdgeScore
	}
	avgEdge := sum / float64(len(confirming))
	if avgEdge >= 8.0 {
		add(15, "Average edge score %.1f (+15)", avgEdge)
	} else if avgEdge >= 6.5 {
		add(8, "Average edge score %.1f (+8)", avgEdge)
	}

	// Institutional footprint across confirming timeframes.
	footprint := 0
	for _, result := range bearing {
		if _, ok := group[result.Timeframe]; !ok {
			continue
		}
		if result.State == nil {
			continue
		}
		institutional := result.State.VolumeAnalysis != nil && result.State.VolumeAnalysis.IsInstitutional
		smt := result.State.SMT != nil && result.State.SMT.Confluence > 70
		if institutional || smt {
			footprint++
		}
	}
	footprintRatio := float64(footprint) / float64(len(group))
	if footprintRatio >= 0.6 {
		add(10, "Institutional footprint on %d/%d timeframes (+10)", footprint, len(group))
	} else if footprintRatio >= 0.3 {
		add(5, "Institutional footprint on %d/%d timeframes (+5)", footprint, len(group))
	}

	// Active news shock penalty. Lookup failure is treated as no shock.
	if shock := v.activeShock(ctx, symbol); shock != nil {
		switch shock.Severity {
		case "HIGH":
			add(-40, "High-severity news shock: %s (-40)", shock.Message)
		case "MEDIUM":
			add(-20, "Medium-severity news shock: %s (-20)", shock.Message)
		}
	}

	if total < v.config.MinScore {
		log.Debug().
			Str("symbol", symbol).
			Float64("score", total).
			Float64("min", v.config.MinScore).
			Msg("confluence rejected: below score gate")
		return nil
	}

	// The signal copies levels from the highest-edge confirming setup.
	best := confirming[0]
	for _, setup := range confirming[1:] {
		if setup.EdgeScore > best.EdgeScore {
			best = setup
		}
	}

	now := v.now()
	signal := &domain.Signal{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Direction:  direction,
		Entry:      best.Entry,
		Targets:    append([]float64(nil), best.Targets...),
		Stop:       best.Stop,
		Score:      round1(total),
		Breakdown:  breakdown,
		Timeframes: timeframes,
		Status:     domain.SignalActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(v.config.SignalTTL),
	}

	log.Info().
		Str("symbol", symbol).
		Stringer("direction", direction).
		Float64("score", signal.Score).
		Strs("timeframes", timeframes).
		Msg("confluence signal emitted")
	return signal
}

// globalBias reads the highest available higher-timeframe analysis.
func (v *Validator) globalBias(results []TimeframeResult) domain.Direction {
	byTimeframe := make(map[string]*domain.MarketStateSnapshot, len(results))
	for _, result := range results {
		byTimeframe[result.Timeframe] = result.State
	}
	for _, timeframe := range htfPriority {
		state, ok := byTimeframe[timeframe]
		if !ok || state == nil {
			continue
		}
		if state.MTF != nil {
			return state.MTF.GlobalBias
		}
		if state.Trend != nil {
			return state.Trend.Direction
		}
	}
	return domain.Neutral
}

// consensusDirection computes the majority setup direction across the
// higher (or lower) timeframe results. Ties are neutral.
func consensusDirection(results []TimeframeResult, higher bool) domain.Direction {
	bulls, bears := 0, 0
	for _, result := range results {
		if isHigherTimeframe(result.Timeframe) != higher {
			continue
		}
		for _, setup := range result.Setups {
			switch setup.Direction {
			case domain.Bullish:
				bulls++
			case domain.Bearish:
				bears++
			}
		}
	}
	if bulls > bears {
		return domain.Bullish
	}
	if bears > bulls {
		return domain.Bearish
	}
	return domain.Neutral
}

// clusterRatio is the fraction of confirming entries within the
// cluster tolerance of the group's median entry.
func (v *Validator) clusterRatio(confirming []*domain.Setup) float64 {
	if len(confirming) == 0 {
		return 0
	}
	entries := make([]float64, 0, len(confirming))
	for _, setup := range confirming {
		entries = append(entries, setup.Entry.Optimal)
	}
	sort.Float64s(entries)
	median := entries[len(entries)/2]
	if median == 0 {
		return 0
	}

	within := 0
	for _, entry := range entries {
		if math.Abs(entry-median)/median*100 <= v.config.ClusterTolerancePct {
			within++
		}
	}
	return float64(within) / float64(len(entries))
}

func (v *Validator) activeShock(ctx context.Context, symbol string) *domain.NewsShock {
	if v.shocks == nil {
		return nil
	}
	shock, err := v.shocks.ActiveShock(ctx, symbol)
	if err != nil {
		log.Warn().Str("symbol", symbol).Err(err).Msg("news-shock lookup failed, scoring without it")
		return nil
	}
	return shock
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
