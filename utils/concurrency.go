package utils

import "context"

// Gate bounds the number of submissions being resolved at the same time.
// With a capacity of one, every submission completes before the next starts.
// A nil *Gate admits everything.
type Gate struct {
	semaphore chan struct{}
}

// NewGate creates a Gate with the given capacity. A capacity below one
// disables the gate and returns nil.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		return nil
	}
	return &Gate{semaphore: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case g.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	if g == nil {
		return
	}
	<-g.semaphore
}

// InFlight returns the number of slots currently held.
func (g *Gate) InFlight() int {
	if g == nil {
		return 0
	}
	return len(g.semaphore)
}

// Capacity returns the maximum number of concurrent holders, 0 when unbounded.
func (g *Gate) Capacity() int {
	if g == nil {
		return 0
	}
	return cap(g.semaphore)
}
