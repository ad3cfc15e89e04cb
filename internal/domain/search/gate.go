package search

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// AdmissionGate caps the number of searches running the full workflow.
type AdmissionGate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
}

// NewAdmissionGate creates a gate admitting up to capacity concurrent holders.
func NewAdmissionGate(capacity int) *AdmissionGate {
	if capacity < 1 {
		capacity = 1
	}
	return &AdmissionGate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// TryAcquire takes a slot without waiting. The returned release func is safe
// to call more than once; only the first call frees the slot.
func (g *AdmissionGate) TryAcquire() (release func(), ok bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	g.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			g.sem.Release(1)
		})
	}, true
}

// InFlight returns the number of slots currently held.
func (g *AdmissionGate) InFlight() int64 {
	return g.inFlight.Load()
}

// Capacity returns the ceiling the gate was created with.
func (g *AdmissionGate) Capacity() int64 {
	return g.capacity
}
