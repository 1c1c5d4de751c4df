package subscriber

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

type recordingHandler struct {
	mu        sync.Mutex
	seen      []events.Event
	errs      []error
	cleanups  int
	failOn    func(events.Event) error
	panicOn   func(events.Event) bool
}

func (h *recordingHandler) OnEvent(ev events.Event) error {
	h.mu.Lock()
	h.seen = append(h.seen, ev)
	h.mu.Unlock()
	if h.panicOn != nil && h.panicOn(ev) {
		panic("boom")
	}
	if h.failOn != nil {
		return h.failOn(ev)
	}
	return nil
}

func (h *recordingHandler) OnException(err error, ev events.Event) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func (h *recordingHandler) Cleanup() {
	h.mu.Lock()
	h.cleanups++
	h.mu.Unlock()
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func TestWorkerProcessesEventsInFIFOOrder(t *testing.T) {
	h := &recordingHandler{}
	w := New("test", h)

	for i := 0; i < 50; i++ {
		w.Receive(events.BarReceived{Symbol: "AAPL", Timestamps: events.Timestamps{AtEvent: int64(i)}})
	}
	w.WaitUntilIdle()

	require.Equal(t, 50, h.count())
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ev := range h.seen {
		assert.Equal(t, int64(i), ev.TsEvent())
	}
}

func TestWorkerRoutesHandlerErrorToOnException(t *testing.T) {
	h := &recordingHandler{failOn: func(ev events.Event) error { return errors.New("bad bar") }}
	w := New("test", h)

	w.Receive(events.BarReceived{Symbol: "AAPL"})
	w.WaitUntilIdle()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.errs, 1)
	assert.EqualError(t, h.errs[0], "bad bar")
}

func TestWorkerRecoversHandlerPanicIntoOnException(t *testing.T) {
	h := &recordingHandler{panicOn: func(ev events.Event) bool { return true }}
	w := New("test", h)

	w.Receive(events.BarReceived{Symbol: "AAPL"})
	w.WaitUntilIdle()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.errs, 1)
}

func TestWorkerContinuesAfterException(t *testing.T) {
	failNext := true
	h := &recordingHandler{failOn: func(ev events.Event) error {
		if failNext {
			failNext = false
			return errors.New("first fails")
		}
		return nil
	}}
	w := New("test", h)

	w.Receive(events.BarReceived{Symbol: "AAPL"})
	w.Receive(events.BarReceived{Symbol: "MSFT"})
	w.WaitUntilIdle()

	require.Equal(t, 2, h.count())
}

func TestWaitUntilIdleBlocksUntilQueueDrains(t *testing.T) {
	h := &recordingHandler{}
	w := New("test", h)

	for i := 0; i < 200; i++ {
		w.Receive(events.BarReceived{Symbol: "AAPL"})
	}
	w.WaitUntilIdle()

	assert.Equal(t, 200, h.count())
}

func TestShutdownRunsCleanupExactlyOnceAndJoins(t *testing.T) {
	h := &recordingHandler{}
	w := New("test", h)

	w.Receive(events.BarReceived{Symbol: "AAPL"})

	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 1, h.cleanups)
}

func TestWorkerNameReturnsConstructorName(t *testing.T) {
	w := New("matching-engine", &recordingHandler{})
	assert.Equal(t, "matching-engine", w.Name())
	w.Shutdown()
}
