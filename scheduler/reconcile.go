package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/neuropathbasel-pub/CQmanager/batch"
)

// RunReconcile runs the reconciliation loop until the context is
// canceled. Each cycle promotes deferred downsizing work whose base
// analysis has completed. The interval is jittered so many deferred
// entries don't produce synchronized bursts of status reads.
func (s *Scheduler) RunReconcile(ctx context.Context) {
	s.log.Info("Reconciliation loop started", "rate", time.Duration(s.conf.ReconcileRate).String())
	for {
		timer := time.NewTimer(jitter(time.Duration(s.conf.ReconcileRate)))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("Reconciliation loop stopped")
			return
		case <-timer.C:
			s.Reconcile(ctx)
		}
	}
}

// deferredSample is one (key, sample) pair captured from the deferred
// set while holding the mutex.
type deferredSample struct {
	key    DeferredKey
	sample string
}

// promotion is the reconciliation outcome for one sample.
type promotion struct {
	deferredSample
	// tasks to enqueue; empty when the sample is simply dropped.
	tasks []batch.UnitTask
}

// Reconcile runs one reconciliation pass. Status files are read on a
// bounded worker pool without holding the mutex; the mutex is taken
// only to snapshot the deferred set and to apply the results.
func (s *Scheduler) Reconcile(ctx context.Context) {
	pending := s.snapshotDeferred()
	if len(pending) == 0 {
		return
	}
	s.log.Debug("Checking deferred downsizing work", "samples", len(pending))

	var mtx sync.Mutex
	var resolved []promotion

	wp := workerpool.New(s.conf.StatusReaders)
	for _, d := range pending {
		d := d
		wp.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			p, ok := s.checkSample(d)
			if !ok {
				return
			}
			mtx.Lock()
			resolved = append(resolved, p)
			mtx.Unlock()
		})
	}
	wp.StopWait()

	if len(resolved) > 0 {
		s.applyPromotions(resolved)
	}
}

// checkSample reads one sample's base-analysis status. The bool result
// reports whether the sample is resolved (promoted or dead); a sample
// with no status yet, a failed analysis, or a transient read error
// stays deferred.
func (s *Scheduler) checkSample(d deferredSample) (promotion, bool) {
	status, err := s.status.Read(d.sample, d.key.Method, d.key.BinSize, d.key.MinProbesPerBin)
	if err != nil {
		// Transient failures must not abort the rest of the cycle.
		s.log.Error("Error reading analysis status", "error", err, "sample", d.sample)
		return promotion{}, false
	}
	if status == nil {
		// Base analysis has not completed yet. Keep waiting.
		return promotion{}, false
	}

	if !status.Success {
		// Failed analyses may be rerun. Keep waiting for a
		// successful result.
		s.log.Debug("Deferred sample's base analysis has not succeeded yet", "sample", d.sample)
		return promotion{}, false
	}
	if !status.ArrayType.Valid() {
		// The sample can never be downsized. Drop it so it is not
		// retried forever.
		s.log.Debug("Dropping deferred sample with unknown array type",
			"sample", d.sample, "arrayType", status.ArrayType)
		return promotion{deferredSample: d}, true
	}

	var tasks []batch.UnitTask
	for _, target := range batch.AvailableTargets(status.ArrayType) {
		if status.Downsized[target] {
			continue
		}
		task, err := batch.NewUnitTask(d.sample, d.key.Method, d.key.BinSize, d.key.MinProbesPerBin, target)
		if err != nil {
			s.log.Error("Error building downsizing task", "error", err, "sample", d.sample)
			continue
		}
		tasks = append(tasks, task)
	}
	return promotion{deferredSample: d, tasks: tasks}, true
}

// snapshotDeferred copies the deferred set so status reads can run
// without the mutex.
func (s *Scheduler) snapshotDeferred() []deferredSample {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var pending []deferredSample
	for key, set := range s.deferred {
		for sample := range set {
			pending = append(pending, deferredSample{key: key, sample: sample})
		}
	}
	return pending
}

// applyPromotions removes resolved samples from the deferred set and
// enqueues their downsizing tasks. Emptied entries are removed.
func (s *Scheduler) applyPromotions(resolved []promotion) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	promoted := 0
	for _, p := range resolved {
		if set, ok := s.deferred[p.key]; ok {
			delete(set, p.sample)
			if len(set) == 0 {
				delete(s.deferred, p.key)
			}
		}
		if len(p.tasks) > 0 {
			s.agg.Add(p.tasks...)
			promoted++
		}
	}
	if promoted > 0 {
		s.log.Info("Promoted deferred samples into the batch queue",
			"promoted", promoted, "resolved", len(resolved))
	}
}

// jitter spreads an interval by up to ±10%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 10
	return d + time.Duration(rand.Int63n(2*spread+1)-spread)
}
