// Command backtest replays historical bars through the engine core: one
// event bus, a run recorder, a simulated matching engine, and whatever
// strategies this file registers — wired together by internal/orchestrator
// and torn down in the order spec.md §4.7 step 10 requires.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nilskujath/onesecondtrader/internal/config"
	"github.com/nilskujath/onesecondtrader/internal/events"
	"github.com/nilskujath/onesecondtrader/internal/matching"
	"github.com/nilskujath/onesecondtrader/internal/orchestrator"
	"github.com/nilskujath/onesecondtrader/internal/strategy"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("source_data_path", cfg.SourceDataPath).
		Str("run_results_path", cfg.RunResultsPath).
		Msg("onesecondtrader backtest starting")

	orch, err := orchestrator.New(orchestrator.Config{
		RunName:           "crypto-momentum",
		RunIDTime:         cfg.RunNameTimeFormat,
		RunMeta:           map[string]any{"commit": "dev"},
		RecorderStorePath: cfg.RunResultsPath,
		RecorderBatchSize: cfg.RecorderBatchSize,
		SourceDataPath:    cfg.SourceDataPath,
		Symbols:           []string{"BTC-USD"},
		BarPeriod:         events.BarPeriodMinute,
		Start:             0,
		End:               1 << 62,
		Matching: matching.Config{
			CommissionPerUnit:     cfg.CommissionPerUnit,
			MinCommissionPerOrder: cfg.MinCommissionPerOrder,
			Exchange:              cfg.Exchange,
		},
		Strategies: []strategy.Config{
			strategy.NewCryptoMomentumConfig("crypto-momentum", "BTC-USD", events.BarPeriodMinute, cfg.IndicatorHistoryCapacity, nil),
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble run")
	}

	log.Info().Str("run_id", orch.RunID()).Msg("run assembled, starting replay")

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("stop signal received, finishing in-flight bar group")
		close(stop)
	}()

	if err := orch.Run(stop); err != nil {
		log.Fatal().Err(err).Str("run_id", orch.RunID()).Msg("run failed")
	}

	log.Info().Str("run_id", orch.RunID()).Msg("run complete")
}
