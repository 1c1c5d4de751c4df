// Package recorder implements the run recorder (spec.md §4.6): a
// subscriber to every event variant that persists each one into a
// per-variant table of a relational store, grouped by run_id, using
// in-memory buffers flushed in batches. It is the first component
// constructed and the last shut down, so it observes every event the
// run ever emits (spec.md §4.7).
package recorder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nilskujath/onesecondtrader/internal/bus"
	"github.com/nilskujath/onesecondtrader/internal/events"
	"github.com/nilskujath/onesecondtrader/internal/subscriber"
)

// Recorder buffers rows per event table and flushes each table with a
// single batched insert once it reaches batchSize rows (spec.md §4.6
// "Write strategy"). Buffers are mutated only by the recorder's own
// worker goroutine, so no lock guards them (spec.md §5).
type Recorder struct {
	bus       *bus.Bus
	worker    *subscriber.Worker
	store     *Store
	runID     string
	batchSize int

	barReceived          []BarReceivedRow
	barProcessed         []BarProcessedRow
	orderSubmission      []OrderSubmissionRequestRow
	orderCancellation    []OrderCancellationRequestRow
	orderModification    []OrderModificationRequestRow
	orderAccepted        []OrderAcceptedRow
	orderRejected        []OrderRejectedRow
	cancellationAccepted []CancellationAcceptedRow
	cancellationRejected []CancellationRejectedRow
	modificationAccepted []ModificationAcceptedRow
	modificationRejected []ModificationRejectedRow
	fillEvent            []FillEventRow
	orderExpired         []OrderExpiredRow
}

// New opens the run-results store, inserts the `runs` row with status
// "running", and subscribes the recorder's worker to all 13 event
// kinds. The caller MUST do this before constructing any other
// component (spec.md §4.7 step 3), so the recorder observes every
// event emitted by later construction steps.
func New(b *bus.Bus, storePath, runID, name string, batchSize int, config, metadata any) (*Recorder, error) {
	store, err := Open(storePath)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("recorder: marshal config: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("recorder: marshal metadata: %w", err)
	}

	run := RunRow{
		RunID:    runID,
		Name:     name,
		TsStart:  time.Now().UnixNano(),
		Status:   "running",
		Config:   string(cfgJSON),
		Metadata: string(metaJSON),
	}
	if err := store.write.Create(&run).Error; err != nil {
		store.Close()
		return nil, fmt.Errorf("recorder: insert run row: %w", err)
	}

	r := &Recorder{
		bus:       b,
		store:     store,
		runID:     runID,
		batchSize: batchSize,
	}
	r.worker = subscriber.New("recorder", r)
	for kind := events.Kind(0); kind < events.NumKinds; kind++ {
		b.Subscribe(kind, r.worker)
	}
	return r, nil
}

// Worker exposes the underlying subscriber.Worker for orchestrator wiring.
func (r *Recorder) Worker() *subscriber.Worker { return r.worker }

// ReadOnly exposes the store's second connection, kept for readers. It
// is not restricted to reads (see Store).
func (r *Recorder) ReadOnly() *gorm.DB { return r.store.ReadOnly() }

// MarkCompleted updates the `runs` row to status "completed" with
// ts_end set to now. Called by the orchestrator after the final
// wait_until_system_idle returns (spec.md §4.7 step 10).
func (r *Recorder) MarkCompleted() error {
	return r.updateRunStatus("completed")
}

// MarkFailed updates the `runs` row to status "failed" (spec.md §7
// "Fatal run error").
func (r *Recorder) MarkFailed() error {
	return r.updateRunStatus("failed")
}

// MarkCancelled updates the `runs` row to status "cancelled" (an
// external stop signal raised during replay, spec.md §4.7 step 10).
func (r *Recorder) MarkCancelled() error {
	return r.updateRunStatus("cancelled")
}

func (r *Recorder) updateRunStatus(status string) error {
	tsEnd := time.Now().UnixNano()
	return r.store.write.Model(&RunRow{}).
		Where("run_id = ?", r.runID).
		Updates(map[string]any{"status": status, "ts_end": tsEnd}).Error
}

// --- subscriber.Handler ---

func (r *Recorder) OnEvent(ev events.Event) error {
	switch e := ev.(type) {
	case events.BarReceived:
		r.barReceived = append(r.barReceived, BarReceivedRow{
			common: r.common(e), Symbol: e.Symbol, BarPeriod: string(e.BarPeriod),
			Open: e.Open, High: e.High, Low: e.Low, Close: e.Close, Volume: e.Volume,
		})
		if len(r.barReceived) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.barReceived).Error
		r.barReceived = r.barReceived[:0]
		return wrapFlushErr(err)

	case events.BarProcessed:
		indicatorsJSON, err := json.Marshal(e.Indicators)
		if err != nil {
			return fmt.Errorf("recorder: marshal indicators: %w", err)
		}
		r.barProcessed = append(r.barProcessed, BarProcessedRow{
			common: r.common(e), Symbol: e.Symbol, BarPeriod: string(e.BarPeriod),
			Open: e.Open, High: e.High, Low: e.Low, Close: e.Close, Volume: e.Volume,
			Indicators: string(indicatorsJSON),
		})
		if len(r.barProcessed) < r.batchSize {
			return nil
		}
		err = r.store.write.Create(r.barProcessed).Error
		r.barProcessed = r.barProcessed[:0]
		return wrapFlushErr(err)

	case events.OrderSubmissionRequest:
		r.orderSubmission = append(r.orderSubmission, OrderSubmissionRequestRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, Symbol: e.Symbol,
			OrderType: string(e.OrderType), Side: string(e.Side), Quantity: e.Quantity,
			LimitPrice: e.LimitPrice, StopPrice: e.StopPrice, Action: e.Action, Signal: e.Signal,
		})
		if len(r.orderSubmission) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.orderSubmission).Error
		r.orderSubmission = r.orderSubmission[:0]
		return wrapFlushErr(err)

	case events.OrderCancellationRequest:
		r.orderCancellation = append(r.orderCancellation, OrderCancellationRequestRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, Symbol: e.Symbol,
		})
		if len(r.orderCancellation) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.orderCancellation).Error
		r.orderCancellation = r.orderCancellation[:0]
		return wrapFlushErr(err)

	case events.OrderModificationRequest:
		r.orderModification = append(r.orderModification, OrderModificationRequestRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, Symbol: e.Symbol,
			Quantity: e.Quantity, LimitPrice: e.LimitPrice, StopPrice: e.StopPrice,
		})
		if len(r.orderModification) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.orderModification).Error
		r.orderModification = r.orderModification[:0]
		return wrapFlushErr(err)

	case events.OrderAccepted:
		r.orderAccepted = append(r.orderAccepted, OrderAcceptedRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, TsBroker: e.TsBroker, BrokerOrderID: e.BrokerOrderID,
		})
		if len(r.orderAccepted) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.orderAccepted).Error
		r.orderAccepted = r.orderAccepted[:0]
		return wrapFlushErr(err)

	case events.OrderRejected:
		r.orderRejected = append(r.orderRejected, OrderRejectedRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, TsBroker: e.TsBroker,
			RejectionReason: e.RejectionReason, RejectionMessage: e.RejectionMessage,
		})
		if len(r.orderRejected) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.orderRejected).Error
		r.orderRejected = r.orderRejected[:0]
		return wrapFlushErr(err)

	case events.CancellationAccepted:
		r.cancellationAccepted = append(r.cancellationAccepted, CancellationAcceptedRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, TsBroker: e.TsBroker,
		})
		if len(r.cancellationAccepted) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.cancellationAccepted).Error
		r.cancellationAccepted = r.cancellationAccepted[:0]
		return wrapFlushErr(err)

	case events.CancellationRejected:
		r.cancellationRejected = append(r.cancellationRejected, CancellationRejectedRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, TsBroker: e.TsBroker,
			RejectionReason: e.RejectionReason, RejectionMessage: e.RejectionMessage,
		})
		if len(r.cancellationRejected) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.cancellationRejected).Error
		r.cancellationRejected = r.cancellationRejected[:0]
		return wrapFlushErr(err)

	case events.ModificationAccepted:
		r.modificationAccepted = append(r.modificationAccepted, ModificationAcceptedRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, TsBroker: e.TsBroker,
		})
		if len(r.modificationAccepted) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.modificationAccepted).Error
		r.modificationAccepted = r.modificationAccepted[:0]
		return wrapFlushErr(err)

	case events.ModificationRejected:
		r.modificationRejected = append(r.modificationRejected, ModificationRejectedRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, TsBroker: e.TsBroker,
			RejectionReason: e.RejectionReason, RejectionMessage: e.RejectionMessage,
		})
		if len(r.modificationRejected) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.modificationRejected).Error
		r.modificationRejected = r.modificationRejected[:0]
		return wrapFlushErr(err)

	case events.FillEvent:
		r.fillEvent = append(r.fillEvent, FillEventRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, FillID: e.FillID, Symbol: e.Symbol,
			Side: string(e.Side), QuantityFilled: e.QuantityFilled, FillPrice: e.FillPrice,
			Commission: e.Commission, Exchange: e.Exchange, TsBroker: e.TsBroker,
		})
		if len(r.fillEvent) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.fillEvent).Error
		r.fillEvent = r.fillEvent[:0]
		return wrapFlushErr(err)

	case events.OrderExpired:
		r.orderExpired = append(r.orderExpired, OrderExpiredRow{
			common: r.common(e), SystemOrderID: e.SystemOrderID, Symbol: e.Symbol, TsBroker: e.TsBroker,
		})
		if len(r.orderExpired) < r.batchSize {
			return nil
		}
		err := r.store.write.Create(r.orderExpired).Error
		r.orderExpired = r.orderExpired[:0]
		return wrapFlushErr(err)

	default:
		return fmt.Errorf("recorder: unexpected event type %T", ev)
	}
}

func (r *Recorder) common(ev events.Event) common {
	return common{RunID: r.runID, TsEvent: ev.TsEvent(), TsCreated: ev.TsCreated()}
}

func wrapFlushErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("recorder: batch insert: %w", err)
}

func (r *Recorder) OnException(err error, ev events.Event) {
	log.Error().Err(err).Str("event_kind", ev.Kind().String()).Msg("recorder handler error")
}

// Cleanup flushes every remaining buffer unconditionally, then closes
// the write connection (spec.md §4.6 "On cleanup() all remaining
// buffers are flushed and the storage connection closed").
func (r *Recorder) Cleanup() {
	if len(r.barReceived) > 0 {
		r.flushFinal("bars", r.store.write.Create(r.barReceived).Error)
		r.barReceived = nil
	}
	if len(r.barProcessed) > 0 {
		r.flushFinal("bars_processed", r.store.write.Create(r.barProcessed).Error)
		r.barProcessed = nil
	}
	if len(r.orderSubmission) > 0 {
		r.flushFinal("order_submission_requests", r.store.write.Create(r.orderSubmission).Error)
		r.orderSubmission = nil
	}
	if len(r.orderCancellation) > 0 {
		r.flushFinal("order_cancellation_requests", r.store.write.Create(r.orderCancellation).Error)
		r.orderCancellation = nil
	}
	if len(r.orderModification) > 0 {
		r.flushFinal("order_modification_requests", r.store.write.Create(r.orderModification).Error)
		r.orderModification = nil
	}
	if len(r.orderAccepted) > 0 {
		r.flushFinal("order_accepted", r.store.write.Create(r.orderAccepted).Error)
		r.orderAccepted = nil
	}
	if len(r.orderRejected) > 0 {
		r.flushFinal("order_rejected", r.store.write.Create(r.orderRejected).Error)
		r.orderRejected = nil
	}
	if len(r.cancellationAccepted) > 0 {
		r.flushFinal("cancellation_accepted", r.store.write.Create(r.cancellationAccepted).Error)
		r.cancellationAccepted = nil
	}
	if len(r.cancellationRejected) > 0 {
		r.flushFinal("cancellation_rejected", r.store.write.Create(r.cancellationRejected).Error)
		r.cancellationRejected = nil
	}
	if len(r.modificationAccepted) > 0 {
		r.flushFinal("modification_accepted", r.store.write.Create(r.modificationAccepted).Error)
		r.modificationAccepted = nil
	}
	if len(r.modificationRejected) > 0 {
		r.flushFinal("modification_rejected", r.store.write.Create(r.modificationRejected).Error)
		r.modificationRejected = nil
	}
	if len(r.fillEvent) > 0 {
		r.flushFinal("fills", r.store.write.Create(r.fillEvent).Error)
		r.fillEvent = nil
	}
	if len(r.orderExpired) > 0 {
		r.flushFinal("order_expired", r.store.write.Create(r.orderExpired).Error)
		r.orderExpired = nil
	}

	if err := r.store.Close(); err != nil {
		log.Error().Err(err).Msg("recorder: close store failed")
	}
	log.Debug().Str("run_id", r.runID).Msg("recorder shut down")
}

func (r *Recorder) flushFinal(table string, err error) {
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("recorder: final flush failed")
	}
}
