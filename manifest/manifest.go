// Package manifest verifies that the manifest parquet files required
// by analysis workers exist before the scheduler starts, generating
// missing ones through a dedicated worker container.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/neuropathbasel-pub/CQmanager/batch"
	"github.com/neuropathbasel-pub/CQmanager/config"
	"github.com/neuropathbasel-pub/CQmanager/logger"
	"github.com/neuropathbasel-pub/CQmanager/scheduler"
	"github.com/neuropathbasel-pub/CQmanager/util"
)

// manifestFiles maps each array type to its manifest parquet file name
// under the manifests directory.
var manifestFiles = map[batch.ArrayType]string{
	batch.HM450K: "humanmethylation450_15017482_v1-2.parquet",
	batch.EPICv1: "infinium-methylationepic-v-1-0-b5-manifest-file.parquet",
	batch.EPICv2: "InfiniumMethylationEPICv2.0ProductFiles.parquet",
	batch.MSA48:  "MSA-48v1-0_20102838_A1.parquet",
}

// Checker awaits the manifest files workers need. A timeout here is a
// fatal startup error; the process must not report itself ready
// without the files.
type Checker struct {
	conf     config.Manifest
	paths    config.Paths
	launcher scheduler.Launcher
	log      logger.Logger
}

// NewChecker returns a new Checker instance.
func NewChecker(conf config.Manifest, paths config.Paths, launcher scheduler.Launcher, log logger.Logger) *Checker {
	return &Checker{conf: conf, paths: paths, launcher: launcher, log: log}
}

// Ensure verifies the manifest parquet files, launching the generator
// container for missing ones and waiting until they appear, bounded by
// the configured startup timeout.
func (c *Checker) Ensure(ctx context.Context) error {
	missing := c.missing()
	if len(missing) == 0 {
		c.log.Info("All required manifest parquet files are available")
		return nil
	}

	c.log.Info("Missing manifest parquet files will be generated; analysis starts once they are available",
		"missing", len(missing), "arrayTypes", missing)

	running, err := c.launcher.IsRunning(ctx, c.conf.GeneratorName)
	if err != nil {
		return fmt.Errorf("checking manifest generator container: %w", err)
	}
	if running {
		c.log.Info("Manifest file generation container is already running")
	} else {
		command := []string{
			"prepare_missing_manifest_parquet_files",
			"--recreate_files", strconv.FormatBool(c.conf.RecreateFiles),
		}
		if err := c.launcher.Launch(ctx, command, c.conf.GeneratorName); err != nil {
			return fmt.Errorf("launching manifest generator: %w", err)
		}
	}

	retrier := util.NewRetrier()
	retrier.InitialInterval = time.Duration(c.conf.PollRate)
	retrier.MaxInterval = time.Duration(c.conf.PollRate) * 3
	retrier.MaxElapsedTime = time.Duration(c.conf.StartupTimeout)
	retrier.Notify = func(err error, d time.Duration) {
		c.log.Debug("Waiting for manifest parquet files", "error", err, "nextCheck", d.String())
	}

	err = retrier.Retry(ctx, func() error {
		if miss := c.missing(); len(miss) > 0 {
			return fmt.Errorf("%d manifest parquet files still missing", len(miss))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("manifest parquet files were not generated within %s: %w",
			time.Duration(c.conf.StartupTimeout).String(), err)
	}

	c.log.Info("Required manifest parquet files are now available")
	return nil
}

// missing returns the array types whose manifest parquet file does not
// exist.
func (c *Checker) missing() []batch.ArrayType {
	var miss []batch.ArrayType
	for arrayType, name := range manifestFiles {
		if _, err := os.Stat(filepath.Join(c.paths.ManifestsDirectory, name)); err != nil {
			miss = append(miss, arrayType)
		}
	}
	return miss
}
