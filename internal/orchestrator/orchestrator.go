// Package orchestrator assembles one run, executes it to completion,
// and tears it down (spec.md §4.7). Construction order and shutdown
// order are both fixed so the recorder observes every event the run
// ever emits: the recorder is built first and shut down last.
package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nilskujath/onesecondtrader/internal/bus"
	"github.com/nilskujath/onesecondtrader/internal/datasource"
	"github.com/nilskujath/onesecondtrader/internal/events"
	"github.com/nilskujath/onesecondtrader/internal/matching"
	"github.com/nilskujath/onesecondtrader/internal/recorder"
	"github.com/nilskujath/onesecondtrader/internal/strategy"
)

// Config describes one run's configuration: where events are recorded,
// where historical bars are read from, the matching engine's
// commission schedule, and the strategies to run.
type Config struct {
	RunName   string
	RunIDTime string // time.Now().UTC().Format layout for the run_id prefix; defaults to a compact UTC timestamp
	RunMeta   any

	RecorderStorePath string
	RecorderBatchSize int

	SourceDataPath string
	Symbols        []string
	BarPeriod      events.BarPeriod
	Start          int64
	End            int64

	Matching   matching.Config
	Strategies []strategy.Config
}

// Orchestrator owns the assembled bus and components for one run.
type Orchestrator struct {
	bus        *bus.Bus
	runID      string
	recorder   *recorder.Recorder
	engine     *matching.Engine
	strategies []*strategy.Strategy
	dataSource *datasource.DataSource
}

// New assembles a run in the strict construction order spec.md §4.7
// requires: bus, recorder (subscribed to everything), matching engine,
// strategies, data source, then the data source's symbol/date-range
// subscription.
func New(cfg Config) (*Orchestrator, error) {
	runID := buildRunID(cfg.RunName, cfg.RunIDTime, cfg.Strategies)

	b := bus.New()

	rec, err := recorder.New(b, cfg.RecorderStorePath, runID, cfg.RunName, cfg.RecorderBatchSize, cfg, cfg.RunMeta)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: construct recorder: %w", err)
	}

	engine := matching.New(b, cfg.Matching)

	strategies := make([]*strategy.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		s, err := strategy.New(b, sc)
		if err != nil {
			rec.Worker().Shutdown()
			return nil, fmt.Errorf("orchestrator: construct strategy %s: %w", sc.Name, err)
		}
		strategies = append(strategies, s)
	}

	ds, err := datasource.New(datasource.Config{
		StorePath: cfg.SourceDataPath,
		Symbols:   cfg.Symbols,
		BarPeriod: cfg.BarPeriod,
		Start:     cfg.Start,
		End:       cfg.End,
	})
	if err != nil {
		engine.Worker().Shutdown()
		for _, s := range strategies {
			s.Worker().Shutdown()
		}
		rec.Worker().Shutdown()
		return nil, fmt.Errorf("orchestrator: construct data source: %w", err)
	}
	if err := ds.Subscribe(); err != nil {
		ds.Close()
		engine.Worker().Shutdown()
		for _, s := range strategies {
			s.Worker().Shutdown()
		}
		rec.Worker().Shutdown()
		return nil, fmt.Errorf("orchestrator: subscribe data source: %w", err)
	}

	return &Orchestrator{
		bus:        b,
		runID:      runID,
		recorder:   rec,
		engine:     engine,
		strategies: strategies,
		dataSource: ds,
	}, nil
}

// RunID returns the generated run identifier.
func (o *Orchestrator) RunID() string { return o.runID }

// Run replays the data source to completion (or until stop is closed),
// marks the run's terminal status, and shuts every component down in
// reverse dependency order (spec.md §4.7 step 10).
func (o *Orchestrator) Run(stop <-chan struct{}) error {
	completed, err := o.dataSource.Replay(o.bus, stop)
	o.bus.WaitUntilSystemIdle()

	if err != nil {
		log.Error().Err(err).Str("run_id", o.runID).Msg("orchestrator: run failed")
		if markErr := o.recorder.MarkFailed(); markErr != nil {
			log.Error().Err(markErr).Msg("orchestrator: failed to mark run failed")
		}
	} else if !completed {
		if markErr := o.recorder.MarkCancelled(); markErr != nil {
			log.Error().Err(markErr).Msg("orchestrator: failed to mark run cancelled")
		}
	} else {
		if markErr := o.recorder.MarkCompleted(); markErr != nil {
			log.Error().Err(markErr).Msg("orchestrator: failed to mark run completed")
		}
	}

	o.shutdown()
	return err
}

// shutdown tears components down in reverse construction order: data
// source, then matching engine, then strategies, then recorder last,
// so the recorder observes every tail event.
func (o *Orchestrator) shutdown() {
	if err := o.dataSource.Close(); err != nil {
		log.Warn().Err(err).Msg("orchestrator: closing data source store")
	}
	o.engine.Worker().Shutdown()
	for _, s := range o.strategies {
		s.Worker().Shutdown()
	}
	o.recorder.Worker().Shutdown()
}

func buildRunID(name, timeLayout string, strategies []strategy.Config) string {
	if timeLayout == "" {
		timeLayout = "20060102T150405Z"
	}
	names := make([]string, 0, len(strategies))
	for _, sc := range strategies {
		names = append(names, sc.Name)
	}
	label := name
	if len(names) > 0 {
		label = strings.Join(names, "+")
	}
	return fmt.Sprintf("%s_%s", time.Now().UTC().Format(timeLayout), label)
}
