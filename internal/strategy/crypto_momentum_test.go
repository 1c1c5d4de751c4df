package strategy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilskujath/onesecondtrader/internal/bus"
	"github.com/nilskujath/onesecondtrader/internal/events"
)

type submissionCollector struct {
	mu   sync.Mutex
	subs []events.OrderSubmissionRequest
}

func (c *submissionCollector) Receive(ev events.Event) {
	if sub, ok := ev.(events.OrderSubmissionRequest); ok {
		c.mu.Lock()
		c.subs = append(c.subs, sub)
		c.mu.Unlock()
	}
}
func (c *submissionCollector) WaitUntilIdle() {}
func (c *submissionCollector) Shutdown()      {}

func TestCryptoMomentumSubmitsOnUpwardCrossover(t *testing.T) {
	b := bus.New()
	cfg := NewCryptoMomentumConfig("xmom", "AAA", events.BarPeriodMinute, 0, map[string]any{
		"fast_period": 2,
		"slow_period": 3,
		"rsi_period":  2,
		"rsi_ceiling": 100.0,
		"rsi_floor":   0.0,
	})
	s, err := New(b, cfg)
	require.NoError(t, err)
	defer s.Worker().Shutdown()

	collector := &submissionCollector{}
	b.Subscribe(events.KindOrderSubmissionRequest, collector)

	closes := []float64{100, 99, 98, 105, 110, 115}
	for i, c := range closes {
		b.Publish(events.BarReceived{
			Timestamps: events.Timestamps{AtEvent: int64(i), AtCreated: time.Now().UnixNano()},
			Symbol:     "AAA", BarPeriod: events.BarPeriodMinute,
			Open: c, High: c, Low: c, Close: c, Volume: 1,
		})
	}
	b.WaitUntilSystemIdle()

	collector.mu.Lock()
	defer collector.mu.Unlock()
	require.NotEmpty(t, collector.subs)
	assert.Equal(t, events.OrderTypeMarket, collector.subs[0].OrderType)
	assert.Equal(t, events.SideBuy, collector.subs[0].Side)
}
