package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/neuropathbasel-pub/CQmanager/batch"
	"github.com/neuropathbasel-pub/CQmanager/config"
	"github.com/neuropathbasel-pub/CQmanager/logger"
)

type launchCall struct {
	command []string
	name    string
}

// fakeLauncher implements Launcher for testing.
type fakeLauncher struct {
	mtx        sync.Mutex
	running    int
	runningErr error
	launchErr  error
	launches   []launchCall
	stopped    []string
}

func (f *fakeLauncher) RunningCount(ctx context.Context, prefix string) (int, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.running, f.runningErr
}

func (f *fakeLauncher) IsRunning(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (f *fakeLauncher) Launch(ctx context.Context, command []string, name string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.launchErr != nil {
		return f.launchErr
	}
	f.launches = append(f.launches, launchCall{command: command, name: name})
	return nil
}

func (f *fakeLauncher) StopAll(ctx context.Context, prefix string) ([]string, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.stopped, nil
}

func (f *fakeLauncher) launchCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.launches)
}

// fakeStatus implements StatusSource from a fixed map. Samples missing
// from both maps have no status yet.
type fakeStatus struct {
	statuses map[string]*Status
	errs     map[string]error
}

func (f *fakeStatus) Read(sample string, method batch.PreprocessingMethod, binSize, minProbes int) (*Status, error) {
	if err, ok := f.errs[sample]; ok {
		return nil, err
	}
	return f.statuses[sample], nil
}

func testConfig() config.Scheduler {
	return config.Scheduler{
		DispatchRate:  config.Duration(time.Millisecond),
		ReconcileRate: config.Duration(time.Millisecond),
		BatchSize:     100,
		BatchTimeout:  config.Duration(time.Second * 300),
		MaxWorkers:    9,
		StatusReaders: 2,
	}
}

func testScheduler(conf config.Scheduler, launcher Launcher, source StatusSource) *Scheduler {
	log := logger.New("test")
	logger.Discard(log)
	if source == nil {
		source = &fakeStatus{}
	}
	return New(conf, launcher, source, "cqcalc", log)
}

func testTask(sample string, binSize int, downsize batch.DownsizeTarget) batch.UnitTask {
	task, err := batch.NewUnitTask(sample, batch.Illumina, binSize, batch.DefaultProbesPerBin, downsize)
	if err != nil {
		panic(err)
	}
	return task
}
