// Package netx implements the network status oracle: a probe loop that keeps
// an offline flag current and notifies subscribers on transitions.
package netx

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Probe checks reachability of the remote endpoint, returning an error when
// it cannot be reached.
type Probe func(ctx context.Context) error

// Monitor tracks connectivity. The zero offline state is "online" until the
// first probe says otherwise; callers that need certainty up front should
// invoke CheckNow before reading IsOffline.
type Monitor struct {
	probe        Probe
	probeTimeout time.Duration

	offline atomic.Bool

	mu   sync.Mutex
	subs []chan bool
}

// NewMonitor creates a Monitor around the given probe. probeTimeout bounds a
// single reachability check.
func NewMonitor(probe Probe, probeTimeout time.Duration) *Monitor {
	return &Monitor{probe: probe, probeTimeout: probeTimeout}
}

// IsOffline reports the last observed connectivity state.
func (m *Monitor) IsOffline() bool {
	return m.offline.Load()
}

// CheckNow runs a single probe, updates the offline flag, and returns the new
// offline state.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	probeCtx := ctx
	if m.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()
	}

	offline := m.probe(probeCtx) != nil
	m.set(offline)
	return offline
}

// Subscribe returns a channel receiving the new offline state on every
// transition. The channel is buffered; a slow consumer misses intermediate
// flips but always sees the latest state eventually.
func (m *Monitor) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run probes at the given interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) set(offline bool) {
	if m.offline.Swap(offline) == offline {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- offline:
		default:
			// Drop the stale value so the latest state wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- offline:
			default:
			}
		}
	}
}
