// Package stats records dispatch outcomes for offline analysis.
//
// Recording is best effort: callers log a failed Record and carry on serving.
package stats

import (
	"context"
	"sync"
	"time"
)

// Event is one dispatched request outcome.
type Event struct {
	Route      string
	Outcome    string
	Credential string
	At         time.Time
}

// Recorder persists outcome events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// MemoryRecorder keeps counters in process. Useful for tests and development.
type MemoryRecorder struct {
	mu        sync.Mutex
	byOutcome map[string]int64
	byRoute   map[string]int64
}

// NewMemoryRecorder returns an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		byOutcome: make(map[string]int64),
		byRoute:   make(map[string]int64),
	}
}

// Record implements Recorder.
func (r *MemoryRecorder) Record(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOutcome[ev.Outcome]++
	r.byRoute[ev.Route+":"+ev.Outcome]++
	return nil
}

// Outcome returns how many events carried the given outcome.
func (r *MemoryRecorder) Outcome(outcome string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byOutcome[outcome]
}

// Route returns how many events for route carried the given outcome.
func (r *MemoryRecorder) Route(route, outcome string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byRoute[route+":"+outcome]
}
