// Package server ties the scheduler's background loops to the process
// lifecycle: startup readiness, loop supervision, and ordered,
// idempotent teardown.
package server

import (
	"context"
	"fmt"
	"sync"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/neuropathbasel-pub/CQmanager/batch"
	"github.com/neuropathbasel-pub/CQmanager/cooldown"
	"github.com/neuropathbasel-pub/CQmanager/logger"
	"github.com/neuropathbasel-pub/CQmanager/scheduler"
)

// ReadyChecker awaits prerequisite external files at startup.
// Implemented by the manifest package.
type ReadyChecker interface {
	Ensure(ctx context.Context) error
}

// submission is one inbound unit of work for the distribution loop.
type submission struct {
	tasks       []batch.UnitTask
	deferredKey *scheduler.DeferredKey
	samples     []string
}

// loopHandle tracks one background loop so teardown can cancel and
// await it in a fixed order.
type loopHandle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator starts and stops the dispatch, reconciliation and task
// distribution loops. Construct it with NewCoordinator and inject it
// where needed; there is no process-wide singleton.
type Coordinator struct {
	sched   *scheduler.Scheduler
	ready   ReadyChecker
	limiter *cooldown.Limiter
	log     logger.Logger

	inbox chan submission

	mtx     sync.Mutex
	started bool
	stopped bool
	loops   []*loopHandle
	cleanup []namedCleanup
}

// namedCleanup releases an external resource during teardown, after
// the loops have stopped.
type namedCleanup struct {
	name string
	fn   func() error
}

// NewCoordinator returns a new Coordinator instance. ready may be nil
// when no startup readiness check is needed (tests).
func NewCoordinator(sched *scheduler.Scheduler, ready ReadyChecker, limiter *cooldown.Limiter, log logger.Logger) *Coordinator {
	return &Coordinator{
		sched:   sched,
		ready:   ready,
		limiter: limiter,
		log:     log,
		inbox:   make(chan submission, 1000),
	}
}

// Cooldown returns the endpoint rate limiter. The API layer consults
// it before accepting rate-limited requests.
func (c *Coordinator) Cooldown() *cooldown.Limiter {
	return c.limiter
}

// Scheduler returns the scheduler for read-only status queries.
func (c *Coordinator) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Start verifies startup prerequisites and starts the background
// loops. A failed or timed-out readiness check is fatal: the process
// must not report itself ready without it.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.started {
		return fmt.Errorf("coordinator already started")
	}

	if c.ready != nil {
		if err := c.ready.Ensure(ctx); err != nil {
			// Stop won't run for a coordinator that never started, so
			// release already-registered resources here.
			c.runCleanup()
			return fmt.Errorf("startup readiness check failed: %w", err)
		}
	}

	// Teardown order is the reverse of this list.
	c.spawn(ctx, "dispatch", c.sched.RunDispatch)
	c.spawn(ctx, "distribution", c.runDistribution)
	c.spawn(ctx, "reconciliation", c.sched.RunReconcile)

	c.started = true
	c.log.Info("Coordinator started")
	return nil
}

// Stop cancels and awaits the loops in a fixed order: dispatch first,
// then distribution, then reconciliation. Cancellation is the expected
// outcome, not an error; Stop is safe to call more than once.
func (c *Coordinator) Stop() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if !c.started || c.stopped {
		return nil
	}
	c.stopped = true

	for _, loop := range c.loops {
		loop.cancel()
		<-loop.done
		c.log.Info("Stopped loop", "loop", loop.name)
	}
	c.loops = nil

	// Launcher and other external resources are released only after
	// every loop has stopped using them.
	return c.runCleanup()
}

// runCleanup runs the registered teardown steps once, in registration
// order, collecting errors. Must be called with the mutex held.
func (c *Coordinator) runCleanup() error {
	var errs *multierror.Error
	for _, clean := range c.cleanup {
		if err := clean.fn(); err != nil {
			c.log.Error("Error during teardown", "error", err, "resource", clean.name)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", clean.name, err))
		}
	}
	c.cleanup = nil
	return errs.ErrorOrNil()
}

// OnStop registers a teardown step which runs after the loops have
// stopped, in registration order.
func (c *Coordinator) OnStop(name string, fn func() error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.cleanup = append(c.cleanup, namedCleanup{name: name, fn: fn})
}

// Submit enqueues a single task for distribution to the scheduler.
func (c *Coordinator) Submit(task batch.UnitTask) {
	c.inbox <- submission{tasks: []batch.UnitTask{task}}
}

// SubmitAll enqueues multiple tasks as one unit.
func (c *Coordinator) SubmitAll(tasks []batch.UnitTask) {
	c.inbox <- submission{tasks: tasks}
}

// SubmitDeferred enqueues samples whose downsizing must wait for their
// base analysis.
func (c *Coordinator) SubmitDeferred(key scheduler.DeferredKey, samples []string) {
	c.inbox <- submission{deferredKey: &key, samples: samples}
}

// runDistribution drains inbound submissions into the scheduler until
// the context is canceled. A bad submission never halts the loop.
func (c *Coordinator) runDistribution(ctx context.Context) {
	c.log.Info("Task distribution loop started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("Task distribution loop stopped")
			return
		case sub := <-c.inbox:
			c.distribute(sub)
		}
	}
}

func (c *Coordinator) distribute(sub submission) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered from panic while distributing a submission", "panic", r)
		}
	}()

	switch {
	case sub.deferredKey != nil:
		c.sched.SubmitDeferred(*sub.deferredKey, sub.samples)
		c.log.Debug("Parked deferred samples", "samples", len(sub.samples))
	case len(sub.tasks) > 0:
		c.sched.SubmitAll(sub.tasks)
		c.log.Debug("Queued submitted tasks", "tasks", len(sub.tasks))
	}
}

// spawn starts one loop goroutine with its own cancelable context.
func (c *Coordinator) spawn(ctx context.Context, name string, run func(context.Context)) {
	loopCtx, cancel := context.WithCancel(ctx)
	handle := &loopHandle{name: name, cancel: cancel, done: make(chan struct{})}
	c.loops = append(c.loops, handle)

	go func() {
		defer close(handle.done)
		run(loopCtx)
	}()
}
