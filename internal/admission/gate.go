// Package admission bounds how many request-handling operations may run at once.
//
// A Gate hands out at most Capacity permits. Callers past the limit wait until a
// permit is released, their context ends, or the gate is closed.
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrGateClosed is returned by Acquire once Close has been called.
	ErrGateClosed = errors.New("admission gate closed")

	// ErrInvalidCapacity is returned by New for a capacity below 1.
	ErrInvalidCapacity = errors.New("admission capacity must be at least 1")
)

// Gate is a counting semaphore with scoped permits.
type Gate struct {
	slots     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	waiting   atomic.Int64

	acquireTimeout time.Duration
}

// Option configures a Gate.
type Option func(*Gate)

// WithAcquireTimeout bounds how long Acquire waits for a permit.
// Zero or negative waits until the caller's context ends.
func WithAcquireTimeout(d time.Duration) Option {
	return func(g *Gate) { g.acquireTimeout = d }
}

// New returns a Gate admitting at most capacity concurrent holders.
func New(capacity int, opts ...Option) (*Gate, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	g := &Gate{
		slots:  make(chan struct{}, capacity),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Acquire blocks until a permit is available and returns it. It fails with
// ErrGateClosed after Close, or with the context error if ctx ends (or the
// acquire timeout elapses) first. On failure no permit is held.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case <-g.closed:
		return nil, ErrGateClosed
	default:
	}

	select {
	case g.slots <- struct{}{}:
		return &Permit{gate: g}, nil
	default:
	}

	if g.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.acquireTimeout)
		defer cancel()
	}

	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	select {
	case g.slots <- struct{}{}:
		select {
		case <-g.closed:
			<-g.slots
			return nil, ErrGateClosed
		default:
		}
		return &Permit{gate: g}, nil
	case <-g.closed:
		return nil, ErrGateClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire admission permit: %w", ctx.Err())
	}
}

// Do runs fn while holding a permit. The permit is released when fn returns,
// including when it panics.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release()

	return fn(ctx)
}

// Close stops admitting new work. Waiters are woken with ErrGateClosed.
// Permits already handed out stay valid and are released normally.
func (g *Gate) Close() {
	g.closeOnce.Do(func() { close(g.closed) })
}

// Closed reports whether Close has been called.
func (g *Gate) Closed() bool {
	select {
	case <-g.closed:
		return true
	default:
		return false
	}
}

// Capacity returns the configured number of permits.
func (g *Gate) Capacity() int { return cap(g.slots) }

// InFlight returns the number of permits currently held.
func (g *Gate) InFlight() int { return len(g.slots) }

// Waiting returns the number of callers currently blocked in Acquire.
func (g *Gate) Waiting() int { return int(g.waiting.Load()) }

// Permit is one unit of admitted capacity.
type Permit struct {
	gate *Gate
	once sync.Once
}

// Release returns the permit to its gate. Calls after the first are no-ops.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() { <-p.gate.slots })
}
