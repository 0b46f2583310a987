// Package config contains CQmanager configuration structures and defaults.
package config

import (
	"time"

	"github.com/neuropathbasel-pub/CQmanager/logger"
)

// Config describes configuration for CQmanager.
type Config struct {
	Server    Server
	Scheduler Scheduler
	Docker    Docker
	Manifest  Manifest
	Paths     Paths
}

// Server describes process-level configuration.
type Server struct {
	// MetricsAddress is the address the Prometheus metrics endpoint
	// listens on. Empty disables the endpoint.
	MetricsAddress string
	// CooldownInterval is the minimum time between accepted requests
	// on rate-limited endpoints.
	CooldownInterval Duration
	Logger           logger.Config
}

// Scheduler describes batch-admission scheduler configuration.
type Scheduler struct {
	// DispatchRate is how often the dispatch loop checks the queue.
	DispatchRate Duration
	// ReconcileRate is how often the reconciliation loop checks
	// deferred downsizing work against on-disk analysis status.
	ReconcileRate Duration
	// BatchSize is the sample count at which a group is released
	// immediately, regardless of the timeout window.
	BatchSize int
	// BatchTimeout releases the largest pending group when no batch
	// has been dispatched for this long.
	BatchTimeout Duration
	// MaxWorkers caps the number of concurrently running analysis
	// containers.
	MaxWorkers int
	// StatusReaders bounds the pool used for status file reads
	// during reconciliation.
	StatusReaders int
	Logger        logger.Config
}

// Docker describes worker container configuration.
type Docker struct {
	// Image is the analysis worker image.
	Image string
	// WorkerPrefix is the container name prefix for analysis workers.
	// Admission control counts running containers by this prefix.
	WorkerPrefix string
	// Network is the docker network workers are attached to.
	Network string
	// AutoRemove removes worker containers once they exit.
	AutoRemove bool
	// LogLevel is passed through to the worker process.
	LogLevel string
}

// Manifest describes startup manifest file preparation.
type Manifest struct {
	// GeneratorName is the container name used for manifest generation.
	GeneratorName string
	// StartupTimeout bounds the wait for manifest files at startup.
	// Exceeding it is fatal.
	StartupTimeout Duration
	// PollRate is how often the manifest wait re-checks the files.
	PollRate Duration
	// RecreateFiles forces regeneration of existing manifest files.
	RecreateFiles bool
}

// Paths describes the directories shared with analysis workers.
type Paths struct {
	// IdatDirectory holds the raw sample data consumed by workers.
	IdatDirectory string
	// ResultsDirectory is where workers write per-sample status files.
	ResultsDirectory string
	// ManifestsDirectory holds the manifest parquet files workers need.
	ManifestsDirectory string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() Config {
	return Config{
		Server: Server{
			CooldownInterval: Duration(time.Minute * 10),
			Logger:           logger.DefaultConfig(),
		},
		Scheduler: Scheduler{
			DispatchRate:  Duration(time.Second * 10),
			ReconcileRate: Duration(time.Minute * 10),
			BatchSize:     100,
			BatchTimeout:  Duration(time.Second * 300),
			MaxWorkers:    9,
			StatusReaders: 4,
			Logger:        logger.DefaultConfig(),
		},
		Docker: Docker{
			Image:        "neuropathologiebasel/cqcalc:latest",
			WorkerPrefix: "cqcalc",
			Network:      "cnquant_network",
			AutoRemove:   true,
			LogLevel:     "info",
		},
		Manifest: Manifest{
			GeneratorName:  "cqcalc_manifest_files_generator",
			StartupTimeout: Duration(time.Second * 1000),
			PollRate:       Duration(time.Second * 10),
		},
		Paths: Paths{
			IdatDirectory:      "/data/idat",
			ResultsDirectory:   "/data/results",
			ManifestsDirectory: "/data/manifests",
		},
	}
}
