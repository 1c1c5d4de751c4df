// Package config loads the engine's run parameters from the process
// environment: storage locations, the matching engine's commission
// schedule, the recorder's batch size, and the indicator history
// capacity. CLI flags and a run-parameter UI are explicitly out of
// scope (spec.md §1); this is the engine's only configuration surface.
package config

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds every engine run parameter resolvable from the
// environment.
type Config struct {
	Debug bool

	// Storage
	SourceDataPath string
	RunResultsPath string

	// Matching engine (spec.md §4.5 "configured constants")
	CommissionPerUnit     decimal.Decimal
	MinCommissionPerOrder decimal.Decimal
	Exchange              string

	// Recorder (spec.md §4.6 "Write strategy")
	RecorderBatchSize int

	// Indicator framework (spec.md §3 "Indicator history")
	IndicatorHistoryCapacity int

	// Orchestrator (spec.md §4.7 step 1 "run_id")
	RunNameTimeFormat string
}

// Load resolves a Config from the environment, falling back to the
// defaults a local backtest run needs out of the box.
func Load() (*Config, error) {
	cfg := &Config{
		Debug:                    getEnvBool("DEBUG", false),
		SourceDataPath:           getEnv("SOURCE_DATA_PATH", "data/source.db"),
		RunResultsPath:           getEnv("RUN_RESULTS_PATH", "data/runs.db"),
		CommissionPerUnit:        getEnvDecimal("COMMISSION_PER_UNIT", decimal.NewFromFloat(0.005)),
		MinCommissionPerOrder:    getEnvDecimal("MIN_COMMISSION_PER_ORDER", decimal.NewFromFloat(1.0)),
		Exchange:                 getEnv("EXCHANGE", "SIM"),
		RecorderBatchSize:        getEnvInt("RECORDER_BATCH_SIZE", 1000),
		IndicatorHistoryCapacity: getEnvInt("INDICATOR_HISTORY_CAPACITY", 2048),
		RunNameTimeFormat:        getEnv("RUN_NAME_TIME_FORMAT", "20060102T150405Z"),
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
