package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateSerialisesHolders(t *testing.T) {
	g := NewGate(1)
	var active, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer g.Release()

			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&active, -1)
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("peak concurrency: got %d, want 1", peak)
	}
	if g.InFlight() != 0 {
		t.Errorf("InFlight after release: got %d, want 0", g.InFlight())
	}
}

func TestGateAcquireHonoursContext(t *testing.T) {
	g := NewGate(1)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second acquire: got %v, want deadline exceeded", err)
	}
}

func TestNilGateAdmitsEverything(t *testing.T) {
	g := NewGate(0)
	if g != nil {
		t.Fatal("capacity 0 should disable the gate")
	}
	for i := 0; i < 3; i++ {
		if err := g.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire on nil gate: %v", err)
		}
	}
	g.Release()
	if g.Capacity() != 0 || g.InFlight() != 0 {
		t.Error("nil gate should report zero capacity and usage")
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, Logger: NewNopLogger()}

	err := r.Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewNopLogger()}

	err := r.Do(context.Background(), "always", func() error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped boom", err)
	}
}
