// Package lifecycle coordinates startup readiness, background work, and
// graceful shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShuttingDown is returned by Go once Shutdown has begun.
var ErrShuttingDown = errors.New("lifecycle is shutting down")

// Coordinator runs startup hooks, tracks background work, and drains both on
// shutdown.
type Coordinator struct {
	ctx      context.Context
	cancel   context.CancelFunc
	startup  sync.WaitGroup
	shutdown sync.WaitGroup
	work     sync.WaitGroup
	ready    atomic.Bool

	mu      sync.Mutex
	closing bool
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context returns the coordinator's context, canceled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently; Ready reports true once every startup hook
// has returned and WaitForStartup was called.
func (c *Coordinator) OnStartup(fn func()) {
	c.startup.Go(fn)
}

// OnShutdown runs fn concurrently once the context is canceled and all
// background work has returned, so work never outlives the resources it
// uses.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdown.Go(func() {
		<-c.ctx.Done()
		c.work.Wait()
		fn()
	})
}

// Go runs fn as tracked background work bound to the coordinator context.
// The returned cancel stops only this unit. Once Shutdown has begun, Go
// refuses with ErrShuttingDown and fn never runs.
func (c *Coordinator) Go(fn func(ctx context.Context)) (context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return nil, ErrShuttingDown
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.work.Go(func() {
		defer cancel()
		fn(ctx)
	})
	return cancel, nil
}

// Ready reports whether startup has completed.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// WaitForStartup blocks until every startup hook has returned, then marks
// the coordinator ready.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()
	c.ready.Store(true)
}

// Shutdown stops accepting work, cancels the context, then waits up to
// timeout for background work and shutdown hooks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	c.ready.Store(false)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.work.Wait()
		c.shutdown.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
