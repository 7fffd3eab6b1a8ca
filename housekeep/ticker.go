// Package housekeep runs the one background goroutine the replication
// engine owns: a ticker that periodically runs host-supplied sweepers, such
// as dropping disconnected clients from the visibility engine. Grounded on dsort/mem_watcher.go's
// ticker + WaitGroup shutdown discipline, adapted to take a
// context.Context instead of a dedicated stop-channel type so callers get
// ordinary cancellation semantics.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package housekeep

import (
	"context"
	"sync"
	"time"
)

// Sweeper is one unit of periodic work the Ticker drives — any
// interval-based maintenance a host wants to add.
type Sweeper func()

// Ticker runs zero or more Sweepers on a fixed interval until its context
// is canceled or Stop is called. No goroutine runs until Start.
type Ticker struct {
	interval time.Duration
	sweepers []Sweeper

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New returns a Ticker that invokes every sweeper, in order, once per
// interval.
func New(interval time.Duration, sweepers ...Sweeper) *Ticker {
	return &Ticker{interval: interval, sweepers: sweepers}
}

// Start launches the background goroutine. Calling Start twice without an
// intervening Stop is a programmer error; the second call is a no-op.
func (t *Ticker) Start(ctx context.Context) {
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.wg.Add(1)
	go t.run(ctx)
}

func (t *Ticker) run(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range t.sweepers {
				s()
			}
		}
	}
}

// Stop cancels the background goroutine and waits for it to exit. Safe to
// call even if Start was never called.
func (t *Ticker) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.wg.Wait()
	t.cancel = nil
}
