package matching

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilskujath/onesecondtrader/internal/bus"
	"github.com/nilskujath/onesecondtrader/internal/events"
)

func ptr(v float64) *float64 { return &v }

func testConfig() Config {
	return Config{
		CommissionPerUnit:     decimal.NewFromFloat(0.005),
		MinCommissionPerOrder: decimal.NewFromFloat(1),
		Exchange:              "SIM",
	}
}

type eventCollector struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *eventCollector) Receive(ev events.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}
func (c *eventCollector) WaitUntilIdle() {}
func (c *eventCollector) Shutdown()      {}

func (c *eventCollector) of(kind events.Kind) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newHarness() (*bus.Bus, *Engine, *eventCollector) {
	b := bus.New()
	e := New(b, testConfig())
	collector := &eventCollector{}
	for _, kind := range []events.Kind{
		events.KindOrderAccepted, events.KindOrderRejected,
		events.KindCancellationAccepted, events.KindCancellationRejected,
		events.KindModificationAccepted, events.KindModificationRejected,
		events.KindFillEvent, events.KindOrderExpired,
	} {
		b.Subscribe(kind, collector)
	}
	return b, e, collector
}

func TestRejectsNonPositiveQuantity(t *testing.T) {
	b, _, c := newHarness()
	b.Publish(events.OrderSubmissionRequest{SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeMarket, Quantity: 0})
	b.WaitUntilSystemIdle()

	rejected := c.of(events.KindOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, events.ReasonNonPositiveQty, rejected[0].(events.OrderRejected).RejectionReason)
}

func TestRejectsLimitOrderMissingLimitPrice(t *testing.T) {
	b, _, c := newHarness()
	b.Publish(events.OrderSubmissionRequest{SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeLimit, Quantity: 1})
	b.WaitUntilSystemIdle()

	rejected := c.of(events.KindOrderRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, events.ReasonMissingLimitPrice, rejected[0].(events.OrderRejected).RejectionReason)
}

func TestScenarioA_MarketBuyFillsNextBar(t *testing.T) {
	b, _, c := newHarness()

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 1}, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10})
	b.WaitUntilSystemIdle()

	// Submitted while bar ts=1 is being processed, i.e. after the engine scanned it.
	b.Publish(events.OrderSubmissionRequest{Timestamps: events.Timestamps{AtEvent: 1}, SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeMarket, Side: events.SideBuy, Quantity: 1})
	b.WaitUntilSystemIdle()
	require.Len(t, c.of(events.KindOrderAccepted), 1)
	assert.Empty(t, c.of(events.KindFillEvent), "MARKET must not fill on its own submission bar")

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 2}, Open: 102, High: 103, Low: 101, Close: 102.5, Volume: 10})
	b.WaitUntilSystemIdle()

	fills := c.of(events.KindFillEvent)
	require.Len(t, fills, 1)
	assert.Equal(t, 102.0, fills[0].(events.FillEvent).FillPrice)
}

func TestScenarioB_LimitBetterThanOpen(t *testing.T) {
	b, _, c := newHarness()

	b.Publish(events.OrderSubmissionRequest{SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeLimit, Side: events.SideBuy, Quantity: 1, LimitPrice: ptr(97)})
	b.WaitUntilSystemIdle()

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 1}, Open: 100, High: 101, Low: 99, Close: 100.5})
	b.WaitUntilSystemIdle()
	assert.Empty(t, c.of(events.KindFillEvent))

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 2}, Open: 98, High: 99, Low: 96, Close: 97})
	b.WaitUntilSystemIdle()

	fills := c.of(events.KindFillEvent)
	require.Len(t, fills, 1)
	assert.Equal(t, 97.0, fills[0].(events.FillEvent).FillPrice)
}

func TestScenarioC_StopBuyWithGap(t *testing.T) {
	b, _, c := newHarness()

	b.Publish(events.OrderSubmissionRequest{SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeStop, Side: events.SideBuy, Quantity: 1, StopPrice: ptr(102)})
	b.WaitUntilSystemIdle()

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 1}, Open: 100, High: 100, Low: 100, Close: 100})
	b.WaitUntilSystemIdle()
	assert.Empty(t, c.of(events.KindFillEvent))

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 2}, Open: 105, High: 106, Low: 104, Close: 105.5})
	b.WaitUntilSystemIdle()

	fills := c.of(events.KindFillEvent)
	require.Len(t, fills, 1)
	assert.Equal(t, 105.0, fills[0].(events.FillEvent).FillPrice)
}

func TestStopLimitPersistsAsLimitAfterTriggerWithoutFill(t *testing.T) {
	b, e, c := newHarness()

	b.Publish(events.OrderSubmissionRequest{SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeStopLimit, Side: events.SideBuy, Quantity: 1, StopPrice: ptr(100), LimitPrice: ptr(95)})
	b.WaitUntilSystemIdle()

	// Triggers (high >= 100) but LIMIT leg (low <= 95) does not satisfy this bar.
	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 1}, Open: 101, High: 102, Low: 99, Close: 101})
	b.WaitUntilSystemIdle()
	assert.Empty(t, c.of(events.KindFillEvent))

	o, ok := e.pending["o1"]
	require.True(t, ok)
	assert.Equal(t, events.OrderTypeLimit, o.OrderType, "trigger converts STOP_LIMIT to LIMIT even without a same-bar fill")

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 2}, Open: 96, High: 97, Low: 94, Close: 95})
	b.WaitUntilSystemIdle()
	require.Len(t, c.of(events.KindFillEvent), 1)
}

func TestCommissionUsesConfiguredMinimum(t *testing.T) {
	b, _, c := newHarness()

	b.Publish(events.OrderSubmissionRequest{SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeMarket, Side: events.SideBuy, Quantity: 1})
	b.WaitUntilSystemIdle()
	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 1}, Open: 100})
	b.WaitUntilSystemIdle()
	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 2}, Open: 100})
	b.WaitUntilSystemIdle()

	fills := c.of(events.KindFillEvent)
	require.Len(t, fills, 1)
	// qty(1) * 0.005 = 0.005, below the configured 1.0 minimum.
	assert.Equal(t, 1.0, fills[0].(events.FillEvent).Commission)
}

func TestCancellationOfUnknownOrderIsRejected(t *testing.T) {
	b, _, c := newHarness()
	b.Publish(events.OrderCancellationRequest{SystemOrderID: "nope", Symbol: "AAA"})
	b.WaitUntilSystemIdle()

	rejected := c.of(events.KindCancellationRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, events.ReasonUnknownOrderID, rejected[0].(events.CancellationRejected).RejectionReason)
}

func TestCancellationRemovesOrderFromPendingScan(t *testing.T) {
	b, e, c := newHarness()
	b.Publish(events.OrderSubmissionRequest{SystemOrderID: "o1", Symbol: "AAA", OrderType: events.OrderTypeMarket, Side: events.SideBuy, Quantity: 1})
	b.WaitUntilSystemIdle()

	b.Publish(events.OrderCancellationRequest{SystemOrderID: "o1", Symbol: "AAA"})
	b.WaitUntilSystemIdle()
	require.Len(t, c.of(events.KindCancellationAccepted), 1)

	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 1}, Open: 100})
	b.WaitUntilSystemIdle()
	b.Publish(events.BarReceived{Symbol: "AAA", Timestamps: events.Timestamps{AtEvent: 2}, Open: 100})
	b.WaitUntilSystemIdle()

	assert.Empty(t, c.of(events.KindFillEvent))
	assert.Empty(t, e.pending)
}
