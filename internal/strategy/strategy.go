// Package strategy implements the strategy runtime (spec.md §4.4): a
// subscriber that filters bars, drives indicators, emits a processed-bar
// event, invokes user logic, and tracks orders and positions. Strategy
// state (the order dictionaries, positions) is mutated only by the
// strategy's own worker goroutine, so none of it is guarded by a lock
// (spec.md §5).
package strategy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nilskujath/onesecondtrader/internal/bus"
	"github.com/nilskujath/onesecondtrader/internal/events"
	"github.com/nilskujath/onesecondtrader/internal/indicators"
	"github.com/nilskujath/onesecondtrader/internal/subscriber"
)

// Hooks are the user-supplied entry points. Setup runs once, after
// parameter resolution, and is the only place additional indicators are
// registered via Strategy.AddIndicator. OnBar runs once per accepted bar,
// after the BarProcessed event has been published.
type Hooks struct {
	Setup func(s *Strategy)
	OnBar func(s *Strategy, bar events.BarProcessed)
}

// Config defines a strategy (spec.md §4.4 "Configuration").
type Config struct {
	Name              string
	Symbols           []string
	BarPeriod         events.BarPeriod
	ParamSchema       map[string]ParamSpec
	ParamOverrides    map[string]any
	IndicatorCapacity int
	Hooks             Hooks `json:"-"`
}

// Strategy is a subscriber driving one strategy instance.
type Strategy struct {
	name      string
	symbols   map[string]struct{}
	barPeriod events.BarPeriod
	params    map[string]any
	schema    map[string]ParamSpec

	indicators []indicators.Indicator

	bus    *bus.Bus
	worker *subscriber.Worker

	activeSymbol  string
	activeTsEvent int64

	submittedOrders        map[string]*Order
	pendingOrders          map[string]*Order
	submittedModifications map[string]*Order
	priorBeforeMod         map[string]*Order
	submittedCancellations map[string]*Order

	positions map[string]*Position

	onBar func(s *Strategy, bar events.BarProcessed)
}

// New constructs a strategy, resolves its parameters, creates the five
// OHLCV identity indicators, runs Setup, and subscribes its worker to
// BarReceived plus the eight order-response event kinds (spec.md §4.4
// "Subscriptions" — BarProcessed is never self-consumed).
func New(b *bus.Bus, cfg Config) (*Strategy, error) {
	resolved, err := resolveParams(cfg.ParamSchema, cfg.ParamOverrides)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", cfg.Name, err)
	}

	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		symbols[sym] = struct{}{}
	}

	s := &Strategy{
		name:                   cfg.Name,
		symbols:                symbols,
		barPeriod:              cfg.BarPeriod,
		params:                 resolved,
		schema:                 cfg.ParamSchema,
		bus:                    b,
		submittedOrders:        make(map[string]*Order),
		pendingOrders:          make(map[string]*Order),
		submittedModifications: make(map[string]*Order),
		priorBeforeMod:         make(map[string]*Order),
		submittedCancellations: make(map[string]*Order),
		positions:              make(map[string]*Position),
		onBar:                  cfg.Hooks.OnBar,
	}

	capacity := cfg.IndicatorCapacity
	s.indicators = append(s.indicators,
		indicators.NewOpenIndicator(capacity),
		indicators.NewHighIndicator(capacity),
		indicators.NewLowIndicator(capacity),
		indicators.NewCloseIndicator(capacity),
		indicators.NewVolumeIndicator(capacity),
	)

	if cfg.Hooks.Setup != nil {
		cfg.Hooks.Setup(s)
	}

	s.worker = subscriber.New(cfg.Name, s)
	for _, kind := range []events.Kind{
		events.KindBarReceived,
		events.KindOrderAccepted,
		events.KindOrderRejected,
		events.KindCancellationAccepted,
		events.KindCancellationRejected,
		events.KindModificationAccepted,
		events.KindModificationRejected,
		events.KindFillEvent,
		events.KindOrderExpired,
	} {
		b.Subscribe(kind, s.worker)
	}

	return s, nil
}

// Worker exposes the subscriber.Worker so the orchestrator can also
// register/unregister it and wait on shutdown.
func (s *Strategy) Worker() *subscriber.Worker { return s.worker }

// Name returns the strategy's configured name.
func (s *Strategy) Name() string { return s.name }

// AddIndicator registers ind for per-bar updates and returns it for
// binding (spec.md §4.4: "setup() ... the sole place where additional
// indicators are registered via add_indicator(ind)").
func (s *Strategy) AddIndicator(ind indicators.Indicator) indicators.Indicator {
	s.indicators = append(s.indicators, ind)
	return ind
}

// Param returns a resolved parameter value.
func (s *Strategy) Param(name string) any { return s.params[name] }

// ParamFloat returns a resolved parameter as a float64.
func (s *Strategy) ParamFloat(name string) float64 {
	v, _ := asFloat(s.params[name])
	return v
}

// ParamInt returns a resolved parameter as an int.
func (s *Strategy) ParamInt(name string) int {
	v, _ := asFloat(s.params[name])
	return int(v)
}

// Position returns the current position for the active symbol (the zero
// value if none has been established yet).
func (s *Strategy) Position() Position {
	return s.PositionFor(s.activeSymbol)
}

// PositionFor returns the current position for an arbitrary symbol.
func (s *Strategy) PositionFor(symbol string) Position {
	if p, ok := s.positions[symbol]; ok {
		return *p
	}
	return Position{}
}

// ActiveSymbol returns the symbol of the bar currently being processed.
func (s *Strategy) ActiveSymbol() string { return s.activeSymbol }

// --- subscriber.Handler ---

// OnEvent dispatches one dequeued event to the appropriate handler
// (spec.md §4.2 "on_event").
func (s *Strategy) OnEvent(ev events.Event) error {
	switch e := ev.(type) {
	case events.BarReceived:
		return s.processBar(e)
	case events.OrderAccepted:
		s.handleOrderAccepted(e)
	case events.OrderRejected:
		s.handleOrderRejected(e)
	case events.CancellationAccepted:
		s.handleCancellationAccepted(e)
	case events.CancellationRejected:
		s.handleCancellationRejected(e)
	case events.ModificationAccepted:
		s.handleModificationAccepted(e)
	case events.ModificationRejected:
		s.handleModificationRejected(e)
	case events.FillEvent:
		s.handleFill(e)
	case events.OrderExpired:
		s.handleExpired(e)
	default:
		return fmt.Errorf("strategy %s: unexpected event type %T", s.name, ev)
	}
	return nil
}

// OnException logs a handler failure; the run is not aborted (spec.md §7
// "Transient subscriber error").
func (s *Strategy) OnException(err error, ev events.Event) {
	log.Error().Err(err).Str("strategy", s.name).Str("event_kind", ev.Kind().String()).Msg("strategy handler error")
}

// Cleanup is a no-op; strategies hold no resources that need flushing.
func (s *Strategy) Cleanup() {
	log.Debug().Str("strategy", s.name).Msg("strategy shut down")
}

// --- bar pipeline (spec.md §4.4 "Bar processing pipeline") ---

func (s *Strategy) processBar(bar events.BarReceived) error {
	if _, ok := s.symbols[bar.Symbol]; !ok {
		return nil
	}
	if bar.BarPeriod != s.barPeriod {
		return nil
	}

	s.activeSymbol = bar.Symbol
	s.activeTsEvent = bar.TsEvent()

	for _, ind := range s.indicators {
		ind.Update(bar)
	}

	values := make(map[string]float64, len(s.indicators))
	for _, ind := range s.indicators {
		key := ind.Key()
		if key == "" {
			continue
		}
		values[key] = ind.Latest(bar.Symbol)
	}

	processed := events.BarProcessed{
		Timestamps: events.Timestamps{AtEvent: bar.TsEvent(), AtCreated: time.Now().UnixNano()},
		Symbol:     bar.Symbol,
		BarPeriod:  bar.BarPeriod,
		Open:       bar.Open,
		High:       bar.High,
		Low:        bar.Low,
		Close:      bar.Close,
		Volume:     bar.Volume,
		Indicators: values,
	}
	s.bus.Publish(processed)

	if s.onBar != nil {
		s.onBar(s, processed)
	}
	return nil
}

// --- order submission/modification/cancellation (spec.md §4.4) ---

// SubmitOrder records the order under submittedOrders and publishes an
// OrderSubmissionRequest. symbol defaults to the active symbol when empty.
func (s *Strategy) SubmitOrder(orderType events.OrderType, side events.Side, quantity float64, limitPrice, stopPrice *float64, action, signal, symbol string) string {
	if symbol == "" {
		symbol = s.activeSymbol
	}
	id := uuid.NewString()
	order := &Order{
		SystemOrderID: id,
		Symbol:        symbol,
		OrderType:     orderType,
		Side:          side,
		Quantity:      quantity,
		LimitPrice:    limitPrice,
		StopPrice:     stopPrice,
		Action:        action,
		Signal:        signal,
	}
	s.submittedOrders[id] = order

	s.bus.Publish(events.OrderSubmissionRequest{
		Timestamps:    events.Timestamps{AtEvent: s.activeTsEvent, AtCreated: time.Now().UnixNano()},
		SystemOrderID: id,
		Symbol:        symbol,
		OrderType:     orderType,
		Side:          side,
		Quantity:      quantity,
		LimitPrice:    limitPrice,
		StopPrice:     stopPrice,
		Action:        action,
		Signal:        signal,
	})
	return id
}

// SubmitModification moves id from pendingOrders to submittedModifications
// and publishes an OrderModificationRequest. Precondition: id must be in
// pendingOrders, otherwise this is a no-op returning an error.
func (s *Strategy) SubmitModification(id string, quantity, limitPrice, stopPrice *float64) error {
	order, ok := s.pendingOrders[id]
	if !ok {
		return fmt.Errorf("strategy %s: submit_modification: %q is not a pending order", s.name, id)
	}

	modified := order.clone()
	if quantity != nil {
		modified.Quantity = *quantity
	}
	if limitPrice != nil {
		modified.LimitPrice = limitPrice
	}
	if stopPrice != nil {
		modified.StopPrice = stopPrice
	}

	delete(s.pendingOrders, id)
	s.priorBeforeMod[id] = order
	s.submittedModifications[id] = modified

	s.bus.Publish(events.OrderModificationRequest{
		Timestamps:    events.Timestamps{AtEvent: s.activeTsEvent, AtCreated: time.Now().UnixNano()},
		SystemOrderID: id,
		Symbol:        order.Symbol,
		Quantity:      quantity,
		LimitPrice:    limitPrice,
		StopPrice:     stopPrice,
	})
	return nil
}

// SubmitCancellation moves id from pendingOrders to submittedCancellations
// and publishes an OrderCancellationRequest. Precondition: id must be in
// pendingOrders.
func (s *Strategy) SubmitCancellation(id string) error {
	order, ok := s.pendingOrders[id]
	if !ok {
		return fmt.Errorf("strategy %s: submit_cancellation: %q is not a pending order", s.name, id)
	}

	delete(s.pendingOrders, id)
	s.submittedCancellations[id] = order

	s.bus.Publish(events.OrderCancellationRequest{
		Timestamps:    events.Timestamps{AtEvent: s.activeTsEvent, AtCreated: time.Now().UnixNano()},
		SystemOrderID: id,
		Symbol:        order.Symbol,
	})
	return nil
}

// --- state-machine transitions (spec.md §4.4) ---

func (s *Strategy) handleOrderAccepted(ev events.OrderAccepted) {
	order, ok := s.submittedOrders[ev.SystemOrderID]
	if !ok {
		return
	}
	delete(s.submittedOrders, ev.SystemOrderID)
	s.pendingOrders[ev.SystemOrderID] = order
}

func (s *Strategy) handleOrderRejected(ev events.OrderRejected) {
	delete(s.submittedOrders, ev.SystemOrderID)
}

func (s *Strategy) handleModificationAccepted(ev events.ModificationAccepted) {
	order, ok := s.submittedModifications[ev.SystemOrderID]
	if !ok {
		return
	}
	delete(s.submittedModifications, ev.SystemOrderID)
	delete(s.priorBeforeMod, ev.SystemOrderID)
	s.pendingOrders[ev.SystemOrderID] = order
}

func (s *Strategy) handleModificationRejected(ev events.ModificationRejected) {
	prior, ok := s.priorBeforeMod[ev.SystemOrderID]
	if !ok {
		return
	}
	delete(s.submittedModifications, ev.SystemOrderID)
	delete(s.priorBeforeMod, ev.SystemOrderID)
	s.pendingOrders[ev.SystemOrderID] = prior
}

func (s *Strategy) handleCancellationAccepted(ev events.CancellationAccepted) {
	delete(s.submittedCancellations, ev.SystemOrderID)
}

func (s *Strategy) handleCancellationRejected(ev events.CancellationRejected) {
	order, ok := s.submittedCancellations[ev.SystemOrderID]
	if !ok {
		return
	}
	delete(s.submittedCancellations, ev.SystemOrderID)
	s.pendingOrders[ev.SystemOrderID] = order
}

func (s *Strategy) handleFill(ev events.FillEvent) {
	delete(s.pendingOrders, ev.SystemOrderID)

	pos := s.positions[ev.Symbol]
	var prior Position
	if pos != nil {
		prior = *pos
	}
	updated := applyFill(prior, ev.Side, ev.QuantityFilled, ev.FillPrice)
	s.positions[ev.Symbol] = &updated
}

func (s *Strategy) handleExpired(ev events.OrderExpired) {
	delete(s.pendingOrders, ev.SystemOrderID)
}
