// Package scheduler implements the batch-admission scheduler: it
// groups submitted analysis tasks into batches, releases batches to a
// bounded pool of worker containers, and reconciles deferred
// downsizing work against on-disk analysis status.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/neuropathbasel-pub/CQmanager/batch"
	"github.com/neuropathbasel-pub/CQmanager/config"
	"github.com/neuropathbasel-pub/CQmanager/logger"
)

// Launcher starts, stops and counts worker containers. Implemented by
// the docker package; mocked during testing.
type Launcher interface {
	// RunningCount returns the number of running workers whose name
	// starts with prefix.
	RunningCount(ctx context.Context, prefix string) (int, error)
	// IsRunning reports whether the named worker is running.
	IsRunning(ctx context.Context, name string) (bool, error)
	// Launch starts a worker running the given command. Fire and
	// forget; the scheduler does not retry failed launches.
	Launch(ctx context.Context, command []string, name string) error
	// StopAll stops all workers whose name starts with prefix and
	// returns their names.
	StopAll(ctx context.Context, prefix string) ([]string, error)
}

// Status is the externally-observable outcome of one sample's
// non-downsized analysis.
type Status struct {
	// Success reports whether the analysis completed successfully.
	Success bool
	// ArrayType is the data-source type the worker detected.
	ArrayType batch.ArrayType
	// Downsized records which downsizing targets already have results.
	Downsized map[batch.DownsizeTarget]bool
}

// StatusSource reads analysis status written by workers. Read returns
// (nil, nil) when no status exists yet; it must be safe to call
// frequently.
type StatusSource interface {
	Read(sample string, method batch.PreprocessingMethod, binSize, minProbes int) (*Status, error)
}

// DeferredKey identifies a base (non-downsized) analysis configuration
// that deferred downsizing work is waiting on.
type DeferredKey struct {
	Method          batch.PreprocessingMethod
	BinSize         int
	MinProbesPerBin int
}

// Scheduler owns the batch aggregator and the deferred retry set. Both
// are guarded by a single mutex which is held only across queue
// decisions, never across launcher or status I/O.
type Scheduler struct {
	conf     config.Scheduler
	launcher Launcher
	status   StatusSource
	prefix   string
	log      logger.Logger

	mtx          sync.Mutex
	agg          *batch.Aggregator
	deferred     map[DeferredKey]map[string]bool
	lastDispatch time.Time

	// now is replaceable for testing.
	now func() time.Time
}

// New returns a new Scheduler instance. workerPrefix labels the
// containers counted for admission control.
func New(conf config.Scheduler, launcher Launcher, status StatusSource, workerPrefix string, log logger.Logger) *Scheduler {
	return &Scheduler{
		conf:         conf,
		launcher:     launcher,
		status:       status,
		prefix:       workerPrefix,
		log:          log,
		agg:          batch.NewAggregator(),
		deferred:     map[DeferredKey]map[string]bool{},
		lastDispatch: time.Now(),
		now:          time.Now,
	}
}

// Submit enqueues a task. Submitting the same sample under the same
// configuration twice is a no-op.
func (s *Scheduler) Submit(task batch.UnitTask) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.agg.Add(task)
}

// SubmitAll enqueues multiple tasks under one lock acquisition.
func (s *Scheduler) SubmitAll(tasks []batch.UnitTask) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.agg.Add(tasks...)
}

// SubmitDeferred parks samples whose downsizing is blocked until their
// base analysis completes. Samples are merged into an existing entry
// for the same key.
func (s *Scheduler) SubmitDeferred(key DeferredKey, samples []string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	set, ok := s.deferred[key]
	if !ok {
		set = map[string]bool{}
		s.deferred[key] = set
	}
	for _, id := range samples {
		set[id] = true
	}
}

// QueueDepth returns the total number of pending samples.
func (s *Scheduler) QueueDepth() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.agg.TotalPending()
}

// QueueSnapshot returns pending group sizes for monitoring.
func (s *Scheduler) QueueSnapshot() []batch.GroupCount {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.agg.Counts()
}

// LargestGroupSize returns the size of the largest pending group.
func (s *Scheduler) LargestGroupSize() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.agg.LargestGroupSize()
}

// DeferredCount returns the number of samples parked in the deferred
// retry set.
func (s *Scheduler) DeferredCount() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	total := 0
	for _, set := range s.deferred {
		total += len(set)
	}
	return total
}

// Clear discards all pending, non-dispatched batches. Deferred entries
// are kept; they resolve through reconciliation.
func (s *Scheduler) Clear() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.agg.Clear()
}

// StopWorkers stops all running worker containers. Used by the
// administrative drain.
func (s *Scheduler) StopWorkers(ctx context.Context) []string {
	names, err := s.launcher.StopAll(ctx, s.prefix)
	if err != nil {
		s.log.Error("Error stopping workers", err)
	}
	return names
}
