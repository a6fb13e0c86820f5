package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Async.Record after Close.
var ErrClosed = errors.New("stats recorder closed")

// Async hands events to a background goroutine that forwards them to the
// wrapped Recorder. Record never blocks: when the buffer is full the event is
// dropped and counted.
type Async struct {
	next    Recorder
	events  chan Event
	timeout time.Duration
	onDrop  func()
	onError func(error)

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// AsyncOption configures an Async recorder.
type AsyncOption func(*Async)

// WithBuffer sets how many events may wait for delivery. Defaults to 1024.
func WithBuffer(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.events = make(chan Event, n)
		}
	}
}

// WithRecordTimeout bounds each forwarded Record call. Defaults to 1s.
func WithRecordTimeout(d time.Duration) AsyncOption {
	return func(a *Async) { a.timeout = d }
}

// WithOnDrop is called for every event dropped on a full buffer.
func WithOnDrop(fn func()) AsyncOption {
	return func(a *Async) { a.onDrop = fn }
}

// WithOnError is called from the delivery goroutine when the wrapped Recorder fails.
func WithOnError(fn func(error)) AsyncOption {
	return func(a *Async) { a.onError = fn }
}

// NewAsync starts delivering to next. Call Close to flush and stop.
func NewAsync(next Recorder, opts ...AsyncOption) *Async {
	a := &Async{
		next:    next,
		events:  make(chan Event, 1024),
		timeout: time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a
}

// Record implements Recorder. The context is ignored: delivery happens after
// the caller has moved on, under its own timeout.
func (a *Async) Record(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
		if a.onDrop != nil {
			a.onDrop()
		}
	}
	return nil
}

// Dropped returns the number of events discarded on a full buffer.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close stops accepting events and waits until the queued ones are delivered
// or ctx ends. It is safe to call more than once.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		a.deliver(ev)
	}
}

func (a *Async) deliver(ev Event) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.next.Record(ctx, ev); err != nil && a.onError != nil {
		a.onError(err)
	}
}
