// Package subscriber provides the per-subscriber worker runtime: an
// unbounded FIFO queue, one dedicated goroutine that drains it, and the
// idle-barrier primitive (wait_until_idle) the bus uses to make replay
// deterministic (spec.md §4.2).
package subscriber

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nilskujath/onesecondtrader/internal/events"
)

// Handler is supplied by the component that owns a Worker (strategy,
// matching engine, recorder). OnEvent is invoked sequentially, in
// enqueue order, for every event the worker dequeues. OnException is
// invoked when OnEvent returns an error or panics; the worker does not
// stop and moves on to the next event. Cleanup runs exactly once, after
// the shutdown sentinel is observed.
type Handler interface {
	OnEvent(ev events.Event) error
	OnException(err error, ev events.Event)
	Cleanup()
}

type sentinel struct{}

// Worker owns one unbounded FIFO queue and one goroutine that drains it.
// It implements bus.Subscriber.
type Worker struct {
	name    string
	handler Handler

	mu    sync.Mutex
	cond  *sync.Cond
	queue []any // events.Event or sentinel

	idleMu   sync.Mutex
	idleCond *sync.Cond
	pending  int

	done chan struct{}
}

// New starts a Worker's goroutine and returns it ready to receive events.
func New(name string, handler Handler) *Worker {
	w := &Worker{
		name:    name,
		handler: handler,
		done:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	w.idleCond = sync.NewCond(&w.idleMu)
	go w.run()
	return w
}

// Receive enqueues ev and returns immediately; it never blocks on user code.
func (w *Worker) Receive(ev events.Event) {
	w.idleMu.Lock()
	w.pending++
	w.idleMu.Unlock()

	w.mu.Lock()
	w.queue = append(w.queue, ev)
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 {
			w.cond.Wait()
		}
		item := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		if _, isSentinel := item.(sentinel); isSentinel {
			w.handler.Cleanup()
			w.markDone()
			return
		}

		ev := item.(events.Event)
		w.invoke(ev)
		w.markDone()
	}
}

func (w *Worker) invoke(ev events.Event) {
	defer func() {
		if r := recover(); r != nil {
			w.handler.OnException(fmt.Errorf("panic in %s handler: %v", w.name, r), ev)
		}
	}()
	if err := w.handler.OnEvent(ev); err != nil {
		w.handler.OnException(err, ev)
	}
}

func (w *Worker) markDone() {
	w.idleMu.Lock()
	w.pending--
	if w.pending == 0 {
		w.idleCond.Broadcast()
	}
	w.idleMu.Unlock()
}

// WaitUntilIdle blocks until the queue is empty and no event is being
// handled.
func (w *Worker) WaitUntilIdle() {
	w.idleMu.Lock()
	for w.pending != 0 {
		w.idleCond.Wait()
	}
	w.idleMu.Unlock()
}

// Shutdown enqueues the sentinel, waits for the worker to drain and
// observe it, and joins the goroutine. Events enqueued before the
// sentinel are handled first, since the queue is strict FIFO. Events
// received after the sentinel is enqueued sit behind it and are never
// handled; Receive neither rejects nor logs them.
func (w *Worker) Shutdown() {
	w.idleMu.Lock()
	w.pending++
	w.idleMu.Unlock()

	w.mu.Lock()
	w.queue = append(w.queue, sentinel{})
	w.cond.Signal()
	w.mu.Unlock()

	<-w.done
	log.Debug().Str("subscriber", w.name).Msg("worker shut down")
}

// Name returns the subscriber's diagnostic name.
func (w *Worker) Name() string { return w.name }
