package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edgeforge/signalrun/internal/config"
	"github.com/edgeforge/signalrun/internal/confluence"
	"github.com/edgeforge/signalrun/internal/credibility"
	"github.com/edgeforge/signalrun/internal/domain"
	"github.com/edgeforge/signalrun/internal/httpapi"
	"github.com/edgeforge/signalrun/internal/lifecycle"
	"github.com/edgeforge/signalrun/internal/metrics"
	"github.com/edgeforge/signalrun/internal/newsshock"
	"github.com/edgeforge/signalrun/internal/perf"
	"github.com/edgeforge/signalrun/internal/pipeline"
	"github.com/edgeforge/signalrun/internal/predictions"
	"github.com/edgeforge/signalrun/internal/risk"
	"github.com/edgeforge/signalrun/internal/score"
	"github.com/edgeforge/signalrun/internal/store"
)

const (
	appName = "signalrun"
	version = "v1.0.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Adaptive signal confluence and risk pipeline",
		Version: version,
		Long: `signalrun scores candidate trade setups across timeframes, gates them
through cross-timeframe confluence, tracks every published call as a
falsifiable prediction, and adapts strategy weights to realized
accuracy.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to pipeline YAML config")

	scanCmd := &cobra.Command{
		Use:   "scan <scan-file.json>",
		Short: "Score a symbol scan and run the confluence gate",
		Long:  "Reads per-timeframe setups and market state from a JSON file, scores every setup, and reports the confluence verdict.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Monte Carlo a single setup",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().Float64("entry", 0, "Entry price")
	simulateCmd.Flags().Float64("stop", 0, "Stop price")
	simulateCmd.Flags().Float64("target", 0, "Target price")
	simulateCmd.Flags().Float64("atr", 0, "Average true range")
	simulateCmd.Flags().String("direction", "bullish", "Setup direction (bullish|bearish)")
	simulateCmd.Flags().Int("iterations", risk.DefaultIterations, "Simulation iterations")
	simulateCmd.Flags().Int64("seed", 0, "Random seed (0 = time-based)")

	statsCmd := &cobra.Command{
		Use:   "stats <symbol>",
		Short: "Show prediction accuracy for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP stats and metrics API",
		RunE:  runServe,
	}

	rootCmd.AddCommand(scanCmd, simulateCmd, statsCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

type components struct {
	pipeline *pipeline.Pipeline
	registry *prometheus.Registry
}

func build(cfg *config.Config) (*components, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	kv, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(promRegistry)

	perfTracker := perf.NewTracker(kv)
	if err := perfTracker.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load performance records: %w", err)
	}
	predictionTracker := predictions.NewTracker(kv, time.Duration(cfg.PredictionTTL))
	credEngine := credibility.NewEngine(predictionTracker)

	var shocks confluence.ShockProvider
	if cfg.News.BaseURL != "" {
		shocks = newsshock.NewClient(cfg.NewsSettings())
	}

	pipe := pipeline.New(pipeline.Options{
		Perf:        perfTracker,
		Credibility: credEngine,
		Scorer:      score.NewScorer(perfTracker),
		Risk: risk.NewSimulator(func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}),
		Validator:      confluence.NewValidator(cfg.ConfluenceSettings(), shocks),
		Predictions:    predictionTracker,
		Lifecycle:      lifecycle.NewManager(cfg.LifecycleSettings()),
		Metrics:        metricsRegistry,
		RiskIterations: cfg.RiskIterations,
	})
	return &components{pipeline: pipe, registry: promRegistry}, nil
}

func buildStore(cfg *config.Config) (store.KV, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryKV(), nil
	case "file":
		return store.NewFileKV(cfg.Store.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		return store.NewRedisKV(client, cfg.Store.Namespace), nil
	case "postgres":
		return store.NewPostgresKV(cfg.Store.PostgresDSN, 10*time.Second)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// scanFile is the on-disk input for the scan command.
type scanFile struct {
	Symbol     string `json:"symbol"`
	Timeframes []struct {
		Timeframe string                      `json:"timeframe"`
		ATR       float64                     `json:"atr"`
		Setups    []*domain.Setup             `json:"setups"`
		State     *domain.MarketStateSnapshot `json:"state"`
	} `json:"timeframes"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	comps, err := build(cfg)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read scan file: %w", err)
	}
	var scan scanFile
	if err := json.Unmarshal(raw, &scan); err != nil {
		return fmt.Errorf("parse scan file: %w", err)
	}

	inputs := make([]pipeline.TimeframeInput, 0, len(scan.Timeframes))
	for _, timeframe := range scan.Timeframes {
		inputs = append(inputs, pipeline.TimeframeInput{
			Timeframe: timeframe.Timeframe,
			Setups:    timeframe.Setups,
			State:     timeframe.State,
			ATR:       timeframe.ATR,
		})
	}

	result, err := comps.pipeline.ProcessScan(cmd.Context(), scan.Symbol, inputs)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	entry, _ := cmd.Flags().GetFloat64("entry")
	stop, _ := cmd.Flags().GetFloat64("stop")
	target, _ := cmd.Flags().GetFloat64("target")
	atr, _ := cmd.Flags().GetFloat64("atr")
	direction, _ := cmd.Flags().GetString("direction")
	iterations, _ := cmd.Flags().GetInt("iterations")
	seed, _ := cmd.Flags().GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	bias := domain.Bullish
	if direction == "bearish" {
		bias = domain.Bearish
	}

	setup := &domain.Setup{
		Direction: bias,
		Entry:     domain.EntryZone{Optimal: entry},
		Stop:      stop,
		Targets:   []float64{target},
	}
	simulator := risk.NewSimulator(func() *rand.Rand {
		return rand.New(rand.NewSource(seed))
	})
	return printJSON(simulator.RunMonteCarlo(setup, atr, iterations))
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	comps, err := build(cfg)
	if err != nil {
		return err
	}

	stats, err := comps.pipeline.Stats(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	comps, err := build(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := httpapi.NewServer(comps.pipeline, comps.registry)
	return server.ListenAndServe(ctx, cfg.HTTP.Addr)
}

func printJSON(payload interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
