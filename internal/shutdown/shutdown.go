// Package shutdown fans a single "should stop" signal out to every part of a run.
package shutdown

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Reason records which source fired the shutdown signal first.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInterrupt
	ReasonDurationElapsed
	ReasonFatal
	ReasonUser
	ReasonAgentsFinished
)

func (r Reason) String() string {
	switch r {
	case ReasonInterrupt:
		return "interrupt"
	case ReasonDurationElapsed:
		return "duration elapsed"
	case ReasonFatal:
		return "fatal error"
	case ReasonUser:
		return "requested by scenario"
	case ReasonAgentsFinished:
		return "all agents finished"
	default:
		return "none"
	}
}

// Coordinator is a one-shot, many-consumer shutdown signal. The zero value is
// not usable; create one with NewCoordinator.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	reason Reason
}

func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Trigger fires the signal. Only the first call has any effect.
func (c *Coordinator) Trigger(reason Reason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason != ReasonNone {
		return
	}
	c.reason = reason
	log.WithField("reason", reason).Debug("Shutdown triggered")
	c.cancel()
}

// Reason returns the reason passed to the first Trigger, or ReasonNone.
func (c *Coordinator) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Fired reports whether Trigger has been called.
func (c *Coordinator) Fired() bool {
	return c.ctx.Err() != nil
}

// Done is closed once the signal has fired.
func (c *Coordinator) Done() <-chan struct{} {
	return c.ctx.Done()
}

// NewListener returns a listener that fires with the coordinator.
func (c *Coordinator) NewListener() *Listener {
	ctx, cancel := context.WithCancel(c.ctx)
	return &Listener{ctx: ctx, cancel: cancel}
}

// Listener observes a shutdown signal. Listeners are cheap; hand one to every
// component that needs to stop.
type Listener struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// ShouldShutdown is a non-blocking point-in-time check.
func (l *Listener) ShouldShutdown() bool {
	return l.ctx.Err() != nil
}

// WaitForShutdown blocks until the signal fires or timeout elapses. It returns
// true if the signal fired. A timeout <= 0 waits forever.
func (l *Listener) WaitForShutdown(timeout time.Duration) bool {
	if timeout <= 0 {
		<-l.ctx.Done()
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.ctx.Done():
		return true
	case <-timer.C:
		return l.ShouldShutdown()
	}
}

// Wait blocks until the signal fires or ctx is done.
func (l *Listener) Wait(ctx context.Context) error {
	select {
	case <-l.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the listener has fired.
func (l *Listener) Done() <-chan struct{} {
	return l.ctx.Done()
}

// Context is cancelled when the listener fires. Pass it to blocking calls so
// they return on shutdown.
func (l *Listener) Context() context.Context {
	return l.ctx
}

// Clone returns a listener that observes exactly the same signal.
func (l *Listener) Clone() *Listener {
	return &Listener{ctx: l.ctx, cancel: l.cancel}
}

// Delegate returns a child listener. The child fires when l fires, and can also
// be fired on its own with Cancel without affecting l.
func (l *Listener) Delegate() *Listener {
	ctx, cancel := context.WithCancel(l.ctx)
	return &Listener{ctx: ctx, cancel: cancel}
}

// Cancel fires this listener and its delegates only.
func (l *Listener) Cancel() {
	l.cancel()
}

// NotifyOnInterrupt triggers c on SIGINT or SIGTERM and prints an
// acknowledgement to out. The returned func stops listening.
func NotifyOnInterrupt(c *Coordinator, out io.Writer) (stop func()) {
	if out == nil {
		out = os.Stdout
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(out, "\nReceived shutdown signal, shutting down...")
			c.Trigger(ReasonInterrupt)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

// AfterDuration triggers c once d has elapsed. The returned func disarms the timer.
func AfterDuration(c *Coordinator, d time.Duration) (stop func()) {
	timer := time.AfterFunc(d, func() {
		c.Trigger(ReasonDurationElapsed)
	})
	return func() { timer.Stop() }
}
