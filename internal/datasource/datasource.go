// Package datasource implements the historical replay source (spec.md
// §6, §4.7 step 9): it reads the ohlcv/symbology tables, groups rows
// sharing a ts_event, publishes all bars in a group, then invokes the
// bus idle barrier before moving to the next group. This is the
// synchronization point that makes backtest replay deterministic.
package datasource

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nilskujath/onesecondtrader/internal/bus"
	"github.com/nilskujath/onesecondtrader/internal/events"
)

// Config configures one replay: the symbols and bar period to read,
// over a half-open nanosecond-epoch date range.
type Config struct {
	StorePath string
	Symbols   []string
	BarPeriod events.BarPeriod
	Start     int64 // inclusive, ns since epoch
	End       int64 // exclusive, ns since epoch
}

type tickerWindow struct {
	ticker       string
	instrumentID int64
	start        int64
	end          *int64
}

// DataSource is the concrete historical replay source. A live data
// source would satisfy the same "publish BarReceived in timestamp
// order" contract (spec.md §6) without reusing this type.
type DataSource struct {
	db      *gorm.DB
	cfg     Config
	windows []tickerWindow
}

// New opens the source-data store.
func New(cfg Config) (*DataSource, error) {
	db, err := openStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("datasource: %w", err)
	}
	return &DataSource{db: db, cfg: cfg}, nil
}

// Subscribe resolves cfg.Symbols to instrument_id windows covering
// cfg.Start/cfg.End via the symbology table (spec.md §4.7 step 7:
// "Subscribe the data source to the configured symbols and date
// range"). It must be called once, before Replay.
func (d *DataSource) Subscribe() error {
	var rows []SymbologyRow
	err := d.db.Where("ticker IN ? AND start_date < ? AND (end_date IS NULL OR end_date > ?)",
		d.cfg.Symbols, d.cfg.End, d.cfg.Start).Find(&rows).Error
	if err != nil {
		return fmt.Errorf("datasource: resolve symbology: %w", err)
	}

	windows := make([]tickerWindow, 0, len(rows))
	for _, row := range rows {
		windows = append(windows, tickerWindow{
			ticker: row.Ticker, instrumentID: row.InstrumentID,
			start: row.StartDate, end: row.EndDate,
		})
	}
	d.windows = windows
	return nil
}

// Replay reads matching rows ordered by (ts_event ASC, symbol ASC),
// groups rows sharing a ts_event, and for each group publishes every
// bar then blocks on b.WaitUntilSystemIdle() before advancing (spec.md
// §4.7 step 9). stop, if closed, ends replay after the in-flight group
// completes; no new group is started. The returned bool is true when
// every row was replayed (the source was exhausted) and false when
// stop ended replay early.
func (d *DataSource) Replay(b *bus.Bus, stop <-chan struct{}) (bool, error) {
	rtype, ok := barPeriodToRtype(d.cfg.BarPeriod)
	if !ok {
		return false, fmt.Errorf("datasource: unsupported bar period %q", d.cfg.BarPeriod)
	}

	ids := d.instrumentIDs()
	query := d.db.Where("rtype = ? AND ts_event >= ? AND ts_event < ?", rtype, d.cfg.Start, d.cfg.End)
	if len(ids) > 0 {
		query = query.Where("instrument_id IN ?", ids)
	}

	var rows []OHLCVRow
	if err := query.Order("ts_event ASC, instrument_id ASC").Find(&rows).Error; err != nil {
		return false, fmt.Errorf("datasource: query ohlcv: %w", err)
	}

	i := 0
	for i < len(rows) {
		select {
		case <-stop:
			return false, nil
		default:
		}

		tsEvent := rows[i].TsEvent
		j := i
		var bars []events.BarReceived
		for j < len(rows) && rows[j].TsEvent == tsEvent {
			ticker, ok := d.labelFor(rows[j].InstrumentID, rows[j].TsEvent)
			if !ok {
				log.Warn().Int64("instrument_id", rows[j].InstrumentID).Int64("ts_event", tsEvent).
					Msg("datasource: no symbology mapping for instrument at this timestamp, skipping")
				j++
				continue
			}
			bars = append(bars, events.BarReceived{
				Timestamps: events.Timestamps{AtEvent: tsEvent, AtCreated: time.Now().UnixNano()},
				Symbol:     ticker,
				BarPeriod:  d.cfg.BarPeriod,
				Open:       scaledToFloat(rows[j].Open),
				High:       scaledToFloat(rows[j].High),
				Low:        scaledToFloat(rows[j].Low),
				Close:      scaledToFloat(rows[j].Close),
				Volume:     float64(rows[j].Volume),
			})
			j++
		}
		sort.Slice(bars, func(a, c int) bool { return bars[a].Symbol < bars[c].Symbol })
		for _, bar := range bars {
			b.Publish(bar)
		}
		b.WaitUntilSystemIdle()

		i = j
	}
	return true, nil
}

// Close closes the store connection.
func (d *DataSource) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *DataSource) instrumentIDs() []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, w := range d.windows {
		if _, ok := seen[w.instrumentID]; ok {
			continue
		}
		seen[w.instrumentID] = struct{}{}
		ids = append(ids, w.instrumentID)
	}
	return ids
}

func (d *DataSource) labelFor(instrumentID, tsEvent int64) (string, bool) {
	for _, w := range d.windows {
		if w.instrumentID != instrumentID {
			continue
		}
		if tsEvent < w.start {
			continue
		}
		if w.end != nil && tsEvent >= *w.end {
			continue
		}
		return w.ticker, true
	}
	return "", false
}

func barPeriodToRtype(p events.BarPeriod) (int, bool) {
	switch p {
	case events.BarPeriodSecond:
		return 32, true
	case events.BarPeriodMinute:
		return 33, true
	case events.BarPeriodHour:
		return 34, true
	case events.BarPeriodDay:
		return 35, true
	case events.BarPeriodWeek:
		return 36, true
	default:
		return 0, false
	}
}
