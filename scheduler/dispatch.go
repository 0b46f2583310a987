package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/neuropathbasel-pub/CQmanager/batch"
)

// RunDispatch runs the dispatch loop until the context is canceled.
// This blocks.
func (s *Scheduler) RunDispatch(ctx context.Context) {
	s.log.Info("Dispatch loop started", "rate", time.Duration(s.conf.DispatchRate).String())
	ticker := time.NewTicker(time.Duration(s.conf.DispatchRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Dispatch loop stopped")
			return
		case <-ticker.C:
			s.Dispatch(ctx)
		}
	}
}

// Dispatch runs one admission-controlled dispatch cycle: it checks
// worker capacity, applies the release policies, and launches a worker
// for the released batch, if any.
func (s *Scheduler) Dispatch(ctx context.Context) {
	// The running-worker count is eventually consistent external
	// state; query it before taking the mutex so a slow docker call
	// never pins out the other loops.
	running, err := s.launcher.RunningCount(ctx, s.prefix)
	if err != nil {
		// Transient, not fatal. Admission control fails closed.
		s.log.Error("Error counting running workers, skipping dispatch cycle", err)
		return
	}
	if running >= s.conf.MaxWorkers {
		s.log.Debug("Running maximum number of workers", "running", running)
		return
	}

	group := s.release()
	if group == nil {
		s.log.Debug("No batch to submit")
		return
	}

	name := containerName(s.prefix, s.now())
	command := workerCommand(group)

	if err := s.launcher.Launch(ctx, command, name); err != nil {
		s.log.Error("Error launching worker", "error", err, "container", name)
		return
	}

	s.log.Info("Submitted a batch for CNV analysis",
		"samples", len(group.Samples),
		"preprocessing", group.Key.Method,
		"binSize", group.Key.BinSize,
		"minProbesPerBin", group.Key.MinProbesPerBin,
		"downsizing", downsizeDescription(group.Key.Downsize),
		"container", name,
	)
}

// release applies the release policies under the mutex and returns the
// released batch, or nil. The size policy always takes precedence over
// the timeout policy, so large batches are never held back by the
// timeout window. The last-dispatch stamp is global, not per key, and
// moves only on an actual release.
func (s *Scheduler) release() *batch.Group {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	largest := s.agg.LargestGroupSize()

	if largest >= s.conf.BatchSize {
		group, err := s.agg.SplitOff(s.conf.BatchSize)
		if err != nil || group == nil {
			// Unreachable while the size check above holds.
			s.log.Error("Error splitting batch", err)
			return nil
		}
		s.log.Debug("Releasing batch on size threshold", "size", len(group.Samples))
		s.lastDispatch = s.now()
		return group
	}

	if largest > 0 && s.now().Sub(s.lastDispatch) >= time.Duration(s.conf.BatchTimeout) {
		group := s.agg.PopLargest()
		if group == nil {
			return nil
		}
		s.log.Debug("Releasing batch on timeout threshold", "size", len(group.Samples))
		s.lastDispatch = s.now()
		return group
	}

	return nil
}

// workerCommand builds the analysis worker invocation for one batch.
func workerCommand(group *batch.Group) []string {
	return []string{
		"cqcalc",
		"--preprocessing_method", string(group.Key.Method),
		"--bin_size", fmt.Sprintf("%d", group.Key.BinSize),
		"--min_probes_per_bin", fmt.Sprintf("%d", group.Key.MinProbesPerBin),
		"--downsize_to", string(group.Key.Downsize),
		"--sentrix_ids", strings.Join(group.Samples, ","),
	}
}

// containerName builds a unique worker container name carrying the
// launch time. The random suffix avoids same-second collisions.
func containerName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%04d", prefix, now.Format("2006-01-02_15-04-05"), rand.Intn(10000))
}

func downsizeDescription(t batch.DownsizeTarget) string {
	if t == batch.NoDownsizing {
		return "no downsizing"
	}
	return fmt.Sprintf("%s downsizing method", t)
}
