// services/hal/internal/gpioirq/irq_worker.go
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"

	"boardio-go/types"
)

// Worker delivers edge callbacks from a single goroutine. Backend edge
// sources Post into it; registrations are owned by the line that made them.
//
// The queue is unbounded and Post never blocks, so a callback may drive a
// line whose edges feed back into this same worker.
type Worker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	q       []event
	head    int // q[head:] is pending
	halted  bool
	stopped chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	drops atomic.Uint32 // edges posted after Stop
}

type event struct {
	reg   *Registration
	level int
	edge  types.Edge
}

// Registration is one installed callback. Deliveries for it never overlap,
// and none happen after Cancel returns.
type Registration struct {
	w    *Worker
	edge types.Edge
	fn   func(level int, edge types.Edge)

	mu        sync.Mutex // held for the duration of a delivery
	cancelled atomic.Bool
	delivered atomic.Uint64
}

// New creates a stopped worker. capHint sizes the initial queue.
func New(capHint int) *Worker {
	if capHint <= 0 {
		capHint = 64
	}
	w := &Worker{
		q:       make([]event, 0, capHint),
		stopped: make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start launches the dispatch goroutine. It exits on ctx cancellation or Stop.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go func() {
			select {
			case <-ctx.Done():
				w.halt()
			case <-w.stopped:
			}
		}()
		go func() {
			defer close(w.stopped)
			for {
				ev, ok := w.next()
				if !ok {
					return
				}
				w.deliver(ev)
			}
		}()
	})
}

// next blocks until an event is queued or the worker halts.
func (w *Worker) next() (event, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.head == len(w.q) && !w.halted {
		w.cond.Wait()
	}
	if w.halted {
		return event{}, false
	}
	ev := w.q[w.head]
	w.q[w.head] = event{}
	w.head++
	if w.head == len(w.q) {
		w.q, w.head = w.q[:0], 0
	}
	return ev, true
}

func (w *Worker) halt() {
	w.mu.Lock()
	w.halted = true
	w.q, w.head = nil, 0
	w.mu.Unlock()
	w.cond.Broadcast()
}

// Stop ends dispatch and waits for the goroutine to exit. Queued events are discarded.
func (w *Worker) Stop() {
	w.stopOnce.Do(w.halt)
	w.startOnce.Do(func() { close(w.stopped) }) // never started
	<-w.stopped
}

// Drops reports edges that arrived after the worker stopped.
func (w *Worker) Drops() uint32 { return w.drops.Load() }

// Pending is the number of queued, undelivered events.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.q) - w.head
}

// Register creates a registration selecting edge. fn runs on the dispatch goroutine.
func (w *Worker) Register(edge types.Edge, fn func(level int, edge types.Edge)) *Registration {
	return &Registration{w: w, edge: edge, fn: fn}
}

func (w *Worker) deliver(ev event) {
	r := ev.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled.Load() {
		return
	}
	r.fn(ev.level, ev.edge)
	r.delivered.Add(1)
}

// Post queues one observed transition and returns without waiting.
// Transitions not selected by the registration's edge mode are ignored; once
// the worker has stopped, matching transitions are counted as drops.
func (r *Registration) Post(level int, seen types.Edge) {
	if r.cancelled.Load() || !r.edge.Matches(seen) {
		return
	}
	w := r.w
	w.mu.Lock()
	if w.halted {
		w.mu.Unlock()
		w.drops.Add(1)
		return
	}
	w.q = append(w.q, event{reg: r, level: level, edge: seen})
	w.mu.Unlock()
	w.cond.Signal()
}

// Cancel stops delivery. If a delivery is in flight Cancel waits for it, so
// it must not be called from the registration's own callback.
func (r *Registration) Cancel() {
	r.cancelled.Store(true)
	// Acquiring mu waits out an in-flight delivery.
	r.mu.Lock()
	r.mu.Unlock()
}

// Edge is the mode the registration was created with.
func (r *Registration) Edge() types.Edge { return r.edge }

// Delivered counts completed callback invocations.
func (r *Registration) Delivered() uint64 { return r.delivered.Load() }
