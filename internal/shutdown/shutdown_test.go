package shutdown

import (
	"context"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

func TestCoordinator_ListenerObservesTrigger(t *testing.T) {
	c := NewCoordinator()
	l := c.NewListener()

	assert.False(t, l.ShouldShutdown())
	c.Trigger(ReasonUser)
	assert.True(t, l.ShouldShutdown())
	assert.True(t, c.Fired())
}

func TestCoordinator_SecondTriggerIsNoop(t *testing.T) {
	c := NewCoordinator()
	c.Trigger(ReasonDurationElapsed)
	c.Trigger(ReasonInterrupt)

	assert.Equal(t, ReasonDurationElapsed, c.Reason())
	assert.True(t, c.NewListener().ShouldShutdown())
}

func TestCoordinator_ConcurrentTriggers(t *testing.T) {
	c := NewCoordinator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Trigger(ReasonUser)
		}()
	}
	wg.Wait()
	assert.Equal(t, ReasonUser, c.Reason())
}

func TestCoordinator_ListenerCreatedAfterTriggerIsFired(t *testing.T) {
	c := NewCoordinator()
	c.Trigger(ReasonFatal)

	assert.True(t, c.NewListener().ShouldShutdown())
}

func TestListener_WaitForShutdownTimesOut(t *testing.T) {
	c := NewCoordinator()
	l := c.NewListener()

	start := time.Now()
	fired := l.WaitForShutdown(30 * time.Millisecond)

	assert.False(t, fired)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestListener_WaitForShutdownReturnsOnTrigger(t *testing.T) {
	c := NewCoordinator()
	l := c.NewListener()

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Trigger(ReasonUser)
	}()

	start := time.Now()
	assert.True(t, l.WaitForShutdown(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestListener_WaitHonoursContext(t *testing.T) {
	c := NewCoordinator()
	l := c.NewListener()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestListener_DelegateFiresWithParent(t *testing.T) {
	c := NewCoordinator()
	parent := c.NewListener()
	child := parent.Delegate()
	grandchild := child.Delegate()

	c.Trigger(ReasonUser)

	assert.True(t, child.ShouldShutdown())
	assert.True(t, grandchild.ShouldShutdown())
}

func TestListener_DelegateCancelDoesNotFireParent(t *testing.T) {
	c := NewCoordinator()
	parent := c.NewListener()
	child := parent.Delegate()

	child.Cancel()

	assert.True(t, child.ShouldShutdown())
	assert.False(t, parent.ShouldShutdown())
	assert.False(t, c.Fired())
}

func TestListener_CloneSharesSignal(t *testing.T) {
	c := NewCoordinator()
	l := c.NewListener()
	clone := l.Clone()

	l.Cancel()
	assert.True(t, clone.ShouldShutdown())
}

func TestListener_ContextCancelledOnTrigger(t *testing.T) {
	c := NewCoordinator()
	l := c.NewListener()

	c.Trigger(ReasonUser)
	select {
	case <-l.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("listener context was not cancelled")
	}
}

func TestAfterDuration(t *testing.T) {
	c := NewCoordinator()
	stop := AfterDuration(c, 20*time.Millisecond)
	defer stop()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("duration timer did not fire")
	}
	assert.Equal(t, ReasonDurationElapsed, c.Reason())
}

func TestAfterDuration_Stop(t *testing.T) {
	c := NewCoordinator()
	stop := AfterDuration(c, 20*time.Millisecond)
	stop()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, c.Fired())
}

func TestNotifyOnInterrupt(t *testing.T) {
	c := NewCoordinator()
	out := &core.MockWriter{}

	stop := NotifyOnInterrupt(c, out)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not trigger shutdown")
	}
	assert.Equal(t, ReasonInterrupt, c.Reason())
	assert.Contains(t, out.String(), "Received shutdown signal")
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "interrupt", ReasonInterrupt.String())
	assert.Equal(t, "none", ReasonNone.String())
}
