package housekeep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerInvokesSweepersPeriodically(t *testing.T) {
	var count int32
	ticker := New(5*time.Millisecond, func() { atomic.AddInt32(&count, 1) })

	ticker.Start(context.Background())
	defer ticker.Stop()

	deadline := time.After(500 * time.Millisecond)
	for atomic.LoadInt32(&count) < 3 {
		select {
		case <-deadline:
			t.Fatalf("sweeper only ran %d times in 500ms", atomic.LoadInt32(&count))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStopHaltsFurtherSweeps(t *testing.T) {
	var count int32
	ticker := New(5*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	ticker.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	ticker.Stop()
	after := atomic.LoadInt32(&count)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&count) != after {
		t.Errorf("sweeper ran after Stop: before=%d after=%d", after, atomic.LoadInt32(&count))
	}
}

func TestContextCancelStopsTicker(t *testing.T) {
	var count int32
	ctx, cancel := context.WithCancel(context.Background())
	ticker := New(5*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	ticker.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)
	after := atomic.LoadInt32(&count)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&count) != after {
		t.Errorf("sweeper ran after context cancel")
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	ticker := New(time.Second)
	ticker.Stop()
}
