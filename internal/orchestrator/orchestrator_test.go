package orchestrator

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nilskujath/onesecondtrader/internal/datasource"
	"github.com/nilskujath/onesecondtrader/internal/events"
	"github.com/nilskujath/onesecondtrader/internal/matching"
	"github.com/nilskujath/onesecondtrader/internal/recorder"
	"github.com/nilskujath/onesecondtrader/internal/strategy"
)

func seedSource(t *testing.T, path string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&datasource.OHLCVRow{}, &datasource.SymbologyRow{}))

	require.NoError(t, db.Create(&datasource.SymbologyRow{InstrumentID: 1, Ticker: "AAA", StartDate: 0}).Error)

	bars := []datasource.OHLCVRow{
		{InstrumentID: 1, Rtype: 33, TsEvent: 1, Open: 100e9, High: 101e9, Low: 99e9, Close: 100_500_000_000, Volume: 10},
		{InstrumentID: 1, Rtype: 33, TsEvent: 2, Open: 102e9, High: 103e9, Low: 101e9, Close: 102_500_000_000, Volume: 10},
	}
	for _, b := range bars {
		require.NoError(t, db.Create(&b).Error)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

// TestOrchestratorMarketBuyFillsNextBar reproduces spec.md §8 Scenario A:
// a MARKET BUY submitted while processing bar ts=1 fills on bar ts=2 at
// that bar's open, and the recorder durably captures the fill.
func TestOrchestratorMarketBuyFillsNextBar(t *testing.T) {
	sourcePath := filepath.Join(t.TempDir(), "source.db")
	seedSource(t, sourcePath)
	resultsPath := filepath.Join(t.TempDir(), "runs.db")

	submitted := false
	cfg := Config{
		RunName:           "test-run",
		RecorderStorePath: resultsPath,
		RecorderBatchSize: 10,
		SourceDataPath:    sourcePath,
		Symbols:           []string{"AAA"},
		BarPeriod:         events.BarPeriodMinute,
		Start:             0,
		End:               1000,
		Matching: matching.Config{
			CommissionPerUnit:     decimal.NewFromFloat(0),
			MinCommissionPerOrder: decimal.NewFromFloat(0),
			Exchange:              "SIM",
		},
		Strategies: []strategy.Config{
			{
				Name:      "scenario-a",
				Symbols:   []string{"AAA"},
				BarPeriod: events.BarPeriodMinute,
				Hooks: strategy.Hooks{
					OnBar: func(s *strategy.Strategy, bar events.BarProcessed) {
						if submitted {
							return
						}
						submitted = true
						s.SubmitOrder(events.OrderTypeMarket, events.SideBuy, 1, nil, nil, "open", "scenario-a", bar.Symbol)
					},
				},
			},
		},
	}

	orch, err := New(cfg)
	require.NoError(t, err)

	err = orch.Run(make(chan struct{}))
	require.NoError(t, err)

	store, err := recorder.Open(resultsPath)
	require.NoError(t, err)
	defer store.Close()

	var fills []recorder.FillEventRow
	require.NoError(t, store.ReadOnly().Find(&fills).Error)
	require.Len(t, fills, 1)
	assert.InDelta(t, 102.0, fills[0].FillPrice, 1e-9)
	assert.Equal(t, int64(2), fills[0].TsEvent)

	var run recorder.RunRow
	require.NoError(t, store.ReadOnly().Where("run_id = ?", orch.RunID()).First(&run).Error)
	assert.Equal(t, "completed", run.Status)
}
