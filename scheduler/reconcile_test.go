package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/neuropathbasel-pub/CQmanager/batch"
)

func deferredKey() DeferredKey {
	return DeferredKey{
		Method:          batch.Illumina,
		BinSize:         50000,
		MinProbesPerBin: batch.DefaultProbesPerBin,
	}
}

func TestReconcilePromotesCompletedSample(t *testing.T) {
	source := &fakeStatus{statuses: map[string]*Status{
		"A": {Success: true, ArrayType: batch.EPICv2},
	}}
	s := testScheduler(testConfig(), &fakeLauncher{}, source)
	s.SubmitDeferred(deferredKey(), []string{"A"})

	s.Reconcile(context.Background())

	if s.DeferredCount() != 0 {
		t.Errorf("Promoted sample must leave the deferred set, got %d", s.DeferredCount())
	}
	// EPIC v2 data has two downsizing targets, so one sample yields
	// two queued tasks under distinct keys.
	if s.QueueDepth() != 2 {
		t.Fatalf("Expected two downsizing tasks, got %d", s.QueueDepth())
	}
	targets := map[batch.DownsizeTarget]bool{}
	for _, count := range s.QueueSnapshot() {
		targets[count.Key.Downsize] = true
	}
	if !targets[batch.ToHM450K] || !targets[batch.ToMSA48] {
		t.Errorf("Unexpected downsizing targets: %v", targets)
	}
}

func TestReconcileSkipsExistingResults(t *testing.T) {
	source := &fakeStatus{statuses: map[string]*Status{
		"A": {
			Success:   true,
			ArrayType: batch.EPICv2,
			Downsized: map[batch.DownsizeTarget]bool{batch.ToHM450K: true},
		},
	}}
	s := testScheduler(testConfig(), &fakeLauncher{}, source)
	s.SubmitDeferred(deferredKey(), []string{"A"})

	s.Reconcile(context.Background())

	if s.QueueDepth() != 1 {
		t.Fatalf("Expected one remaining target, got %d tasks", s.QueueDepth())
	}
	counts := s.QueueSnapshot()
	if counts[0].Key.Downsize != batch.ToMSA48 {
		t.Errorf("Expected the MSA48 target, got %s", counts[0].Key.Downsize)
	}
}

func TestReconcileKeepsFailedAnalysis(t *testing.T) {
	source := &fakeStatus{statuses: map[string]*Status{
		"A": {Success: false, ArrayType: batch.EPICv2},
	}}
	s := testScheduler(testConfig(), &fakeLauncher{}, source)
	s.SubmitDeferred(deferredKey(), []string{"A"})

	s.Reconcile(context.Background())

	// Failed analyses may be rerun, so the sample keeps waiting.
	if s.DeferredCount() != 1 {
		t.Error("A failed analysis must stay deferred")
	}
	if s.QueueDepth() != 0 {
		t.Error("A failed analysis must not enqueue downsizing work")
	}
}

func TestReconcilePromotesAfterRerun(t *testing.T) {
	source := &fakeStatus{statuses: map[string]*Status{
		"A": {Success: false, ArrayType: batch.EPICv2},
	}}
	s := testScheduler(testConfig(), &fakeLauncher{}, source)
	s.SubmitDeferred(deferredKey(), []string{"A"})

	s.Reconcile(context.Background())
	if s.DeferredCount() != 1 {
		t.Fatal("Sample must stay deferred while the base analysis is failed")
	}

	// A rerun of the base analysis succeeds.
	source.statuses["A"] = &Status{Success: true, ArrayType: batch.EPICv2}

	s.Reconcile(context.Background())
	if s.DeferredCount() != 0 {
		t.Error("Sample must be promoted once the rerun succeeds")
	}
	if s.QueueDepth() != 2 {
		t.Errorf("Expected the rerun's downsizing tasks, got %d queued", s.QueueDepth())
	}
}

func TestReconcileDropsInvalidArrayType(t *testing.T) {
	source := &fakeStatus{statuses: map[string]*Status{
		"A": {Success: true, ArrayType: "GenomeStudio"},
	}}
	s := testScheduler(testConfig(), &fakeLauncher{}, source)
	s.SubmitDeferred(deferredKey(), []string{"A"})

	s.Reconcile(context.Background())

	if s.DeferredCount() != 0 || s.QueueDepth() != 0 {
		t.Errorf("Unknown array type must be dropped, deferred=%d queued=%d",
			s.DeferredCount(), s.QueueDepth())
	}
}

func TestReconcileKeepsPendingSample(t *testing.T) {
	// No status on disk yet: the base analysis is still running.
	s := testScheduler(testConfig(), &fakeLauncher{}, &fakeStatus{})
	s.SubmitDeferred(deferredKey(), []string{"A"})

	s.Reconcile(context.Background())

	if s.DeferredCount() != 1 {
		t.Error("A sample without status must stay deferred")
	}
	if s.QueueDepth() != 0 {
		t.Error("A sample without status must not be promoted")
	}
}

func TestReconcileKeepsSampleOnReadError(t *testing.T) {
	source := &fakeStatus{
		statuses: map[string]*Status{
			"B": {Success: true, ArrayType: batch.HM450K},
		},
		errs: map[string]error{"A": errors.New("permission denied")},
	}
	s := testScheduler(testConfig(), &fakeLauncher{}, source)
	s.SubmitDeferred(deferredKey(), []string{"A", "B"})

	s.Reconcile(context.Background())

	// The read error on A is isolated: B is still promoted.
	if s.DeferredCount() != 1 {
		t.Errorf("Expected A to stay deferred, got %d deferred", s.DeferredCount())
	}
	if s.QueueDepth() != 1 {
		t.Errorf("Expected B's downsizing task, got %d queued", s.QueueDepth())
	}
}

func TestReconcileMergesDuplicateSubmissions(t *testing.T) {
	s := testScheduler(testConfig(), &fakeLauncher{}, &fakeStatus{})
	s.SubmitDeferred(deferredKey(), []string{"A"})
	s.SubmitDeferred(deferredKey(), []string{"A", "B"})

	if s.DeferredCount() != 2 {
		t.Errorf("Deferred submissions must merge by sample, got %d", s.DeferredCount())
	}
}

func TestClearKeepsDeferred(t *testing.T) {
	s := testScheduler(testConfig(), &fakeLauncher{}, &fakeStatus{})
	s.Submit(testTask("A", 50000, ""))
	s.SubmitDeferred(deferredKey(), []string{"B"})

	s.Clear()

	if s.QueueDepth() != 0 {
		t.Error("Clear must discard pending batches")
	}
	if s.DeferredCount() != 1 {
		t.Error("Clear must keep deferred entries")
	}
}
