// Package pipeline orchestrates the scoring core end to end: per-
// timeframe edge scoring, cross-timeframe confluence, risk annotation,
// prediction tracking, and signal lifecycle updates. All writes for a
// symbol are serialized through a per-symbol lock.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edgeforge/signalrun/internal/confluence"
	"github.com/edgeforge/signalrun/internal/credibility"
	"github.com/edgeforge/signalrun/internal/domain"
	"github.com/edgeforge/signalrun/internal/lifecycle"
	"github.com/edgeforge/signalrun/internal/metrics"
	"github.com/edgeforge/signalrun/internal/perf"
	"github.com/edgeforge/signalrun/internal/predictions"
	"github.com/edgeforge/signalrun/internal/risk"
	"github.com/edgeforge/signalrun/internal/score"
)

// TimeframeInput is the raw analysis for one timeframe of a symbol:
// the candidate setups from the detection engines plus the market
// state snapshot they were detected in.
type TimeframeInput struct {
	Timeframe string
	Setups    []*domain.Setup
	State     *domain.MarketStateSnapshot
	ATR       float64
}

// ScanResult is the outcome of processing one symbol scan.
type ScanResult struct {
	Symbol string
	// Scored carries every setup with EdgeScore/Breakdown attached,
	// including suppressed ones (marked by zero score and a risk line).
	Scored []*domain.Setup
	// Risk maps strategy ids to their Monte Carlo results.
	Risk map[string]risk.Result
	// Signal is non-nil only when the confluence gate passed.
	Signal *domain.Signal
	// Predictions records the tracked prediction ids.
	Predictions []string
}

// Pipeline wires the scoring core together.
type Pipeline struct {
	perf        *perf.Tracker
	credibility *credibility.Engine
	scorer      *score.Scorer
	risk        *risk.Simulator
	validator   *confluence.Validator
	predictions *predictions.Tracker
	lifecycle   *lifecycle.Manager
	metrics     *metrics.Registry
	iterations  int

	mu      sync.Mutex
	symbols map[string]*sync.Mutex

	signalMu sync.Mutex
	active   map[string][]*domain.Signal
}

// Options parameterizes pipeline construction. Metrics may be nil.
type Options struct {
	Perf           *perf.Tracker
	Credibility    *credibility.Engine
	Scorer         *score.Scorer
	Risk           *risk.Simulator
	Validator      *confluence.Validator
	Predictions    *predictions.Tracker
	Lifecycle      *lifecycle.Manager
	Metrics        *metrics.Registry
	RiskIterations int
}

// New assembles a pipeline from its components.
func New(opts Options) *Pipeline {
	iterations := opts.RiskIterations
	if iterations <= 0 {
		iterations = risk.DefaultIterations
	}
	return &Pipeline{
		perf:        opts.Perf,
		credibility: opts.Credibility,
		scorer:      opts.Scorer,
		risk:        opts.Risk,
		validator:   opts.Validator,
		predictions: opts.Predictions,
		lifecycle:   opts.Lifecycle,
		metrics:     opts.Metrics,
		iterations:  iterations,
		symbols:     make(map[string]*sync.Mutex),
		active:      make(map[string][]*domain.Signal),
	}
}

func (p *Pipeline) symbolLock(symbol string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.symbols[symbol]
	if !ok {
		lock = &sync.Mutex{}
		p.symbols[symbol] = lock
	}
	return lock
}

// ProcessScan scores every timeframe's setups for the symbol, runs the
// confluence gate, annotates risk, and tracks predictions for the
// publishable setups. One scan per symbol runs at a time.
func (p *Pipeline) ProcessScan(ctx context.Context, symbol string, inputs []TimeframeInput) (*ScanResult, error) {
	lock := p.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	result := &ScanResult{
		Symbol: symbol,
		Risk:   make(map[string]risk.Result),
	}
	timeframeResults := make([]confluence.TimeframeResult, 0, len(inputs))

	for _, input := range inputs {
		regime := domain.RegimeUnknown
		if input.State != nil {
			regime = input.State.Regime
		}

		kept := make([]*domain.Setup, 0, len(input.Setups))
		for _, setup := range input.Setups {
			assessment := p.credibility.PosteriorCredibility(ctx, symbol, setup.Strategy, regime)
			if assessment.IsSuppressed {
				setup.EdgeScore = 0
				setup.Breakdown = &domain.ScoreBreakdown{
					Risks: []string{fmt.Sprintf("Suppressed: posterior credibility %.2f below 0.60", assessment.Probability)},
				}
				result.Scored = append(result.Scored, setup)
				if p.metrics != nil {
					p.metrics.RecordRejection("credibility_suppressed")
				}
				continue
			}

			breakdown := p.scorer.CalculateScore(setup, input.State, assessment)
			setup.EdgeScore = breakdown.Score
			setup.Breakdown = &breakdown
			result.Scored = append(result.Scored, setup)
			kept = append(kept, setup)

			if p.metrics != nil {
				p.metrics.RecordScore(setup.Strategy, setup.Timeframe, breakdown.Score)
				if p.perf != nil {
					p.metrics.SetStrategyWeight(setup.Strategy, p.perf.DynamicWeight(setup.Strategy))
				}
			}

			if p.risk != nil {
				if _, done := result.Risk[setup.Strategy]; !done {
					result.Risk[setup.Strategy] = p.risk.RunMonteCarlo(setup, input.ATR, p.iterations)
				}
			}

			snapshotPrice := 0.0
			if input.State != nil {
				snapshotPrice = input.State.Price
			}
			prediction, err := p.predictions.Track(ctx, setup, assessment, snapshotPrice)
			if err != nil {
				return nil, fmt.Errorf("process scan %s: %w", symbol, err)
			}
			if prediction != nil {
				result.Predictions = append(result.Predictions, prediction.ID)
			}
		}

		timeframeResults = append(timeframeResults, confluence.TimeframeResult{
			Timeframe: input.Timeframe,
			Setups:    kept,
			State:     input.State,
		})
	}

	if signal := p.validator.Validate(ctx, symbol, timeframeResults); signal != nil {
		result.Signal = signal
		p.signalMu.Lock()
		p.active[symbol] = append(p.active[symbol], signal)
		p.signalMu.Unlock()
		if p.metrics != nil {
			p.metrics.RecordSignal(symbol, signal.Direction)
		}
	}

	log.Info().
		Str("symbol", symbol).
		Int("scored", len(result.Scored)).
		Int("predictions", len(result.Predictions)).
		Bool("signal", result.Signal != nil).
		Msg("scan processed")
	return result, nil
}

// OnCandle drives the evaluation side on a new bar: pending
// predictions resolve against the close, active signals get lifecycle
// updates, and resolved outcomes feed the performance tracker and the
// credibility override cache.
func (p *Pipeline) OnCandle(ctx context.Context, symbol string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	lock := p.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	currentPrice := candles[len(candles)-1].Close

	resolved, err := p.predictions.EvaluatePending(ctx, symbol, currentPrice)
	if err != nil {
		return fmt.Errorf("on candle %s: %w", symbol, err)
	}
	if err := p.feedOutcomes(ctx, symbol, resolved); err != nil {
		return err
	}

	p.signalMu.Lock()
	signals := p.active[symbol]
	p.signalMu.Unlock()

	remaining := make([]*domain.Signal, 0, len(signals))
	for _, signal := range signals {
		p.lifecycle.UpdateSignalStatus(signal, currentPrice, candles)
		if !signal.Status.Terminal() {
			remaining = append(remaining, signal)
		}
	}
	p.signalMu.Lock()
	p.active[symbol] = remaining
	p.signalMu.Unlock()

	return nil
}

// feedOutcomes pushes newly resolved outcomes into the performance
// tracker, the credibility override cache, and the metrics registry.
// Expiry counts as a loss: the prediction consumed capital-at-risk time
// without paying off.
func (p *Pipeline) feedOutcomes(ctx context.Context, symbol string, resolved []domain.Prediction) error {
	for _, prediction := range resolved {
		isWin := prediction.Outcome == domain.OutcomeHit
		if p.perf != nil {
			if err := p.perf.RecordOutcome(ctx, prediction.Strategy, isWin, 0); err != nil {
				return fmt.Errorf("feed outcomes %s: %w", symbol, err)
			}
		}
		p.credibility.UpdatePerformance(symbol, prediction.Strategy, isWin)
		if p.metrics != nil {
			p.metrics.RecordOutcome(symbol, prediction.Outcome)
		}
	}
	return nil
}

// ActiveSignals returns the symbol's non-terminal signals.
func (p *Pipeline) ActiveSignals(symbol string) []*domain.Signal {
	p.signalMu.Lock()
	defer p.signalMu.Unlock()
	return append([]*domain.Signal(nil), p.active[symbol]...)
}

// Stats proxies prediction accuracy for the HTTP surface.
func (p *Pipeline) Stats(ctx context.Context, symbol string) (*domain.PredictionStats, error) {
	return p.predictions.Stats(ctx, symbol)
}
