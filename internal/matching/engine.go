// Package matching implements the simulated matching engine (spec.md
// §4.5): a subscriber that accepts, modifies, cancels, and fills orders
// against incoming bars using fixed, deterministic rules. Pending-order
// state is mutated only by the engine's own worker goroutine (spec.md
// §5), so it carries no internal lock.
package matching

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nilskujath/onesecondtrader/internal/bus"
	"github.com/nilskujath/onesecondtrader/internal/events"
	"github.com/nilskujath/onesecondtrader/internal/subscriber"
)

// Config holds the engine's commission schedule and exchange identifier
// (spec.md §4.5 "configured constants").
type Config struct {
	CommissionPerUnit      decimal.Decimal
	MinCommissionPerOrder  decimal.Decimal
	Exchange               string
}

type pendingOrder struct {
	SystemOrderID string
	Symbol        string
	OrderType     events.OrderType
	Side          events.Side
	Quantity      float64
	LimitPrice    *float64
	StopPrice     *float64
}

// Engine is the sole concrete matcher; a live adapter would satisfy the
// same bus.Subscriber contract without reusing this type (spec.md §6).
type Engine struct {
	bus    *bus.Bus
	worker *subscriber.Worker
	cfg    Config

	pending map[string]*pendingOrder
	order   []string // insertion order, for deterministic per-bar scans
}

// New constructs the matching engine and subscribes it to all three
// request kinds plus BarReceived (spec.md §4.5 "Subscriptions").
func New(b *bus.Bus, cfg Config) *Engine {
	e := &Engine{
		bus:     b,
		cfg:     cfg,
		pending: make(map[string]*pendingOrder),
	}
	e.worker = subscriber.New("matching-engine", e)
	for _, kind := range []events.Kind{
		events.KindOrderSubmissionRequest,
		events.KindOrderCancellationRequest,
		events.KindOrderModificationRequest,
		events.KindBarReceived,
	} {
		b.Subscribe(kind, e.worker)
	}
	return e
}

// Worker exposes the underlying subscriber.Worker for orchestrator wiring.
func (e *Engine) Worker() *subscriber.Worker { return e.worker }

// --- subscriber.Handler ---

func (e *Engine) OnEvent(ev events.Event) error {
	switch req := ev.(type) {
	case events.OrderSubmissionRequest:
		return e.handleSubmission(req)
	case events.OrderCancellationRequest:
		return e.handleCancellation(req)
	case events.OrderModificationRequest:
		return e.handleModification(req)
	case events.BarReceived:
		return e.handleBar(req)
	default:
		return fmt.Errorf("matching: unexpected event type %T", ev)
	}
}

func (e *Engine) OnException(err error, ev events.Event) {
	log.Error().Err(err).Str("event_kind", ev.Kind().String()).Msg("matching engine handler error")
}

func (e *Engine) Cleanup() {
	log.Debug().Msg("matching engine shut down")
}

// --- request handling (spec.md §4.5 "Request acceptance") ---

func (e *Engine) handleSubmission(req events.OrderSubmissionRequest) error {
	now := time.Now().UnixNano()

	if reason, message, ok := validateSubmission(req); !ok {
		e.bus.Publish(events.OrderRejected{
			Timestamps:       events.Timestamps{AtEvent: req.TsEvent(), AtCreated: now},
			SystemOrderID:    req.SystemOrderID,
			TsBroker:         req.TsEvent(),
			RejectionReason:  reason,
			RejectionMessage: message,
		})
		return nil
	}

	e.pending[req.SystemOrderID] = &pendingOrder{
		SystemOrderID: req.SystemOrderID,
		Symbol:        req.Symbol,
		OrderType:     req.OrderType,
		Side:          req.Side,
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		StopPrice:     req.StopPrice,
	}
	e.order = append(e.order, req.SystemOrderID)

	e.bus.Publish(events.OrderAccepted{
		Timestamps:    events.Timestamps{AtEvent: req.TsEvent(), AtCreated: now},
		SystemOrderID: req.SystemOrderID,
		TsBroker:      req.TsEvent(),
		BrokerOrderID: uuid.NewString(),
	})
	return nil
}

func (e *Engine) handleCancellation(req events.OrderCancellationRequest) error {
	now := time.Now().UnixNano()

	if _, ok := e.pending[req.SystemOrderID]; !ok {
		e.bus.Publish(events.CancellationRejected{
			Timestamps:       events.Timestamps{AtEvent: req.TsEvent(), AtCreated: now},
			SystemOrderID:    req.SystemOrderID,
			TsBroker:         req.TsEvent(),
			RejectionReason:  events.ReasonUnknownOrderID,
			RejectionMessage: "no pending order with this id",
		})
		return nil
	}

	e.removePending(req.SystemOrderID)
	e.bus.Publish(events.CancellationAccepted{
		Timestamps:    events.Timestamps{AtEvent: req.TsEvent(), AtCreated: now},
		SystemOrderID: req.SystemOrderID,
		TsBroker:      req.TsEvent(),
	})
	return nil
}

func (e *Engine) handleModification(req events.OrderModificationRequest) error {
	now := time.Now().UnixNano()

	o, ok := e.pending[req.SystemOrderID]
	if !ok {
		e.bus.Publish(events.ModificationRejected{
			Timestamps:       events.Timestamps{AtEvent: req.TsEvent(), AtCreated: now},
			SystemOrderID:    req.SystemOrderID,
			TsBroker:         req.TsEvent(),
			RejectionReason:  events.ReasonUnknownOrderID,
			RejectionMessage: "no pending order with this id",
		})
		return nil
	}

	if req.Quantity != nil {
		o.Quantity = *req.Quantity
	}
	if req.LimitPrice != nil {
		o.LimitPrice = req.LimitPrice
	}
	if req.StopPrice != nil {
		o.StopPrice = req.StopPrice
	}

	e.bus.Publish(events.ModificationAccepted{
		Timestamps:    events.Timestamps{AtEvent: req.TsEvent(), AtCreated: now},
		SystemOrderID: req.SystemOrderID,
		TsBroker:      req.TsEvent(),
	})
	return nil
}

// --- bar matching (spec.md §4.5 "Matching on each BarReceived") ---

func (e *Engine) handleBar(bar events.BarReceived) error {
	var market, stop, stopLimit, limit []string
	for _, id := range e.order {
		o, ok := e.pending[id]
		if !ok || o.Symbol != bar.Symbol {
			continue
		}
		switch o.OrderType {
		case events.OrderTypeMarket:
			market = append(market, id)
		case events.OrderTypeStop:
			stop = append(stop, id)
		case events.OrderTypeStopLimit:
			stopLimit = append(stopLimit, id)
		case events.OrderTypeLimit:
			limit = append(limit, id)
		}
	}

	for _, id := range market {
		e.fillAt(e.pending[id], bar.Open, bar)
	}
	for _, id := range stop {
		e.evaluateStop(e.pending[id], bar)
	}
	for _, id := range stopLimit {
		e.evaluateStopLimit(e.pending[id], bar)
	}
	for _, id := range limit {
		e.evaluateLimit(e.pending[id], bar)
	}
	return nil
}

func (e *Engine) evaluateStop(o *pendingOrder, bar events.BarReceived) {
	switch o.Side {
	case events.SideBuy:
		if bar.High >= *o.StopPrice {
			e.fillAt(o, max(*o.StopPrice, bar.Open), bar)
		}
	case events.SideSell:
		if bar.Low <= *o.StopPrice {
			e.fillAt(o, min(*o.StopPrice, bar.Open), bar)
		}
	}
}

// evaluateStopLimit converts a triggered STOP_LIMIT into a LIMIT and
// evaluates it as one on the same bar (spec.md §4.5 step 3). If it does
// not trigger, it persists unchanged for later bars.
func (e *Engine) evaluateStopLimit(o *pendingOrder, bar events.BarReceived) {
	triggered := false
	switch o.Side {
	case events.SideBuy:
		triggered = bar.High >= *o.StopPrice
	case events.SideSell:
		triggered = bar.Low <= *o.StopPrice
	}
	if !triggered {
		return
	}
	o.OrderType = events.OrderTypeLimit
	e.evaluateLimit(o, bar)
}

func (e *Engine) evaluateLimit(o *pendingOrder, bar events.BarReceived) {
	switch o.Side {
	case events.SideBuy:
		if bar.Low <= *o.LimitPrice {
			e.fillAt(o, min(*o.LimitPrice, bar.Open), bar)
		}
	case events.SideSell:
		if bar.High >= *o.LimitPrice {
			e.fillAt(o, max(*o.LimitPrice, bar.Open), bar)
		}
	}
}

func (e *Engine) fillAt(o *pendingOrder, price float64, bar events.BarReceived) {
	commission := decimal.NewFromFloat(o.Quantity).Mul(e.cfg.CommissionPerUnit)
	if commission.LessThan(e.cfg.MinCommissionPerOrder) {
		commission = e.cfg.MinCommissionPerOrder
	}

	e.bus.Publish(events.FillEvent{
		Timestamps:     events.Timestamps{AtEvent: bar.TsEvent(), AtCreated: time.Now().UnixNano()},
		SystemOrderID:  o.SystemOrderID,
		FillID:         uuid.NewString(),
		Symbol:         o.Symbol,
		Side:           o.Side,
		QuantityFilled: o.Quantity,
		FillPrice:      price,
		Commission:     commission.InexactFloat64(),
		Exchange:       e.cfg.Exchange,
		TsBroker:       bar.TsEvent(),
	})
	e.removePending(o.SystemOrderID)
}

func (e *Engine) removePending(id string) {
	delete(e.pending, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			return
		}
	}
}
