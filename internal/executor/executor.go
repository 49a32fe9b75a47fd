// Package executor lets synchronous scenario hooks drive blocking and
// concurrent work that stops with the run.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/shutdown"
)

// Executor runs work under a context that is cancelled when the run shuts down.
type Executor struct {
	ctx context.Context

	group   errgroup.Group
	mu      sync.Mutex
	spawned int
}

// New creates an executor bound to listener. A nil listener gives an executor
// that is never cancelled.
func New(listener *shutdown.Listener) *Executor {
	ctx := context.Background()
	if listener != nil {
		ctx = listener.Context()
	}
	return &Executor{ctx: ctx}
}

// Context is cancelled when the run shuts down.
func (e *Executor) Context() context.Context {
	return e.ctx
}

// ExecuteInPlace blocks until work returns. If work gave up because the run is
// shutting down the returned error is core.ErrShutdownSignal.
func (e *Executor) ExecuteInPlace(work func(ctx context.Context) error) error {
	_, err := Run(e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	})
	return err
}

// Run is ExecuteInPlace for work that produces a value.
func Run[T any](e *Executor, work func(ctx context.Context) (T, error)) (T, error) {
	v, err := work(e.ctx)
	return v, e.classify(err)
}

func (e *Executor) classify(err error) error {
	if err == nil || e.ctx.Err() == nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(core.ErrShutdownSignal, err.Error())
	}
	return err
}

// JoinHandle waits for a spawned task.
type JoinHandle struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task has finished and returns its error.
func (h *JoinHandle) Wait() error {
	<-h.done
	return h.err
}

// Done is closed when the task has finished.
func (h *JoinHandle) Done() <-chan struct{} {
	return h.done
}

// Spawn starts work in its own goroutine. A panic in work is returned from
// Wait as an error.
func (e *Executor) Spawn(work func(ctx context.Context) error) *JoinHandle {
	h := &JoinHandle{done: make(chan struct{})}
	e.mu.Lock()
	e.spawned++
	e.mu.Unlock()

	e.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = core.PanicError("spawned task", r)
			}
			h.err = e.classify(err)
			close(h.done)
		}()
		return work(e.ctx)
	})
	return h
}

// Shutdown waits up to grace for every spawned task to finish. It returns an
// error if tasks are still running when the grace period ends.
func (e *Executor) Shutdown(grace time.Duration) error {
	finished := make(chan struct{})
	go func() {
		_ = e.group.Wait() // errors are delivered through each JoinHandle
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(grace):
		e.mu.Lock()
		n := e.spawned
		e.mu.Unlock()
		log.WithField("spawned", n).Warn("Spawned tasks did not finish within the grace period")
		return errors.Errorf("spawned tasks still running after %s", grace)
	}
}
