package netx

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_CheckNowUpdatesState(t *testing.T) {
	var fail atomic.Bool

	m := NewMonitor(func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("unreachable")
		}
		return nil
	}, time.Second)

	assert.False(t, m.IsOffline(), "starts optimistic")

	fail.Store(true)
	assert.True(t, m.CheckNow(context.Background()))
	assert.True(t, m.IsOffline())

	fail.Store(false)
	assert.False(t, m.CheckNow(context.Background()))
	assert.False(t, m.IsOffline())
}

func TestMonitor_SubscribeSeesTransitions(t *testing.T) {
	var fail atomic.Bool
	m := NewMonitor(func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}, time.Second)

	ch := m.Subscribe()

	fail.Store(true)
	m.CheckNow(context.Background())

	select {
	case got := <-ch:
		assert.True(t, got)
	case <-time.After(time.Second):
		t.Fatal("expected offline notification")
	}

	// No transition, no notification.
	m.CheckNow(context.Background())
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_SlowSubscriberSeesLatest(t *testing.T) {
	var fail atomic.Bool
	m := NewMonitor(func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}, time.Second)

	ch := m.Subscribe()

	fail.Store(true)
	m.CheckNow(context.Background()) // offline=true buffered
	fail.Store(false)
	m.CheckNow(context.Background()) // replaces with offline=false

	require.Eventually(t, func() bool {
		select {
		case got := <-ch:
			return got == false
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestMonitor_ProbeTimeoutApplied(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 20*time.Millisecond)

	start := time.Now()
	offline := m.CheckNow(context.Background())
	assert.True(t, offline)
	assert.Less(t, time.Since(start), time.Second)
}
