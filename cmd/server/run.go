// Package server contains the `cqmanager server` command.
package server

import (
	"context"
	"net/http"
	"syscall"
	"time"

	"github.com/imdario/mergo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/neuropathbasel-pub/CQmanager/config"
	"github.com/neuropathbasel-pub/CQmanager/cooldown"
	"github.com/neuropathbasel-pub/CQmanager/docker"
	"github.com/neuropathbasel-pub/CQmanager/logger"
	"github.com/neuropathbasel-pub/CQmanager/manifest"
	"github.com/neuropathbasel-pub/CQmanager/metrics"
	"github.com/neuropathbasel-pub/CQmanager/scheduler"
	srv "github.com/neuropathbasel-pub/CQmanager/server"
	"github.com/neuropathbasel-pub/CQmanager/status"
	"github.com/neuropathbasel-pub/CQmanager/util"
	"github.com/neuropathbasel-pub/CQmanager/version"
)

// NewCommand returns the `cqmanager server run` command set.
func NewCommand() *cobra.Command {
	var configFile string
	flagConf := config.Config{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Runs a CQmanager server.",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Runs a CQmanager server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.DefaultConfig()
			if err := config.ParseFile(configFile, &conf); err != nil {
				return err
			}

			// file vals <- cli vals
			if err := mergo.MergeWithOverwrite(&conf, flagConf); err != nil {
				return err
			}

			ctx := util.SignalContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			return Run(ctx, conf)
		},
	}

	run.Flags().AddFlagSet(serverFlags(&configFile, &flagConf))
	cmd.AddCommand(run)
	return cmd
}

func serverFlags(configFile *string, flagConf *config.Config) *pflag.FlagSet {
	f := pflag.NewFlagSet("", pflag.ContinueOnError)
	f.StringVarP(configFile, "config", "c", *configFile, "Config file")
	f.StringVar(&flagConf.Server.Logger.Level, "log-level", flagConf.Server.Logger.Level, "Level of logging")
	f.StringVar(&flagConf.Server.Logger.OutputFile, "log-path", flagConf.Server.Logger.OutputFile, "File path to write logs to")
	f.StringVar(&flagConf.Server.MetricsAddress, "metrics-address", flagConf.Server.MetricsAddress, "Address of the Prometheus metrics endpoint")
	f.IntVar(&flagConf.Scheduler.MaxWorkers, "max-workers", flagConf.Scheduler.MaxWorkers, "Maximum number of concurrent worker containers")
	f.IntVar(&flagConf.Scheduler.BatchSize, "batch-size", flagConf.Scheduler.BatchSize, "Sample count which releases a batch immediately")
	f.Var(&flagConf.Scheduler.BatchTimeout, "batch-timeout", "Time after which the largest pending batch is released")
	f.Var(&flagConf.Scheduler.DispatchRate, "dispatch-rate", "How often the dispatch loop checks the queue")
	f.Var(&flagConf.Scheduler.ReconcileRate, "reconcile-rate", "How often deferred downsizing work is reconciled")
	f.StringVar(&flagConf.Docker.Image, "worker-image", flagConf.Docker.Image, "Analysis worker image")
	return f
}

// Run runs a CQmanager server: it prepares manifest files, starts the
// scheduler loops and blocks until the context is canceled.
func Run(ctx context.Context, conf config.Config) error {
	log := logger.New("cqmanager")
	logger.Configure(log, conf.Server.Logger)
	log.Info("Server starting", version.LogFields()...)

	launcher, err := docker.NewLauncher(conf.Docker, conf.Paths, log.Sub("docker"))
	if err != nil {
		log.Error("Couldn't connect to the docker daemon", err)
		return err
	}

	source := status.NewFileSource(conf.Paths.ResultsDirectory)
	sched := scheduler.New(conf.Scheduler, launcher, source, conf.Docker.WorkerPrefix, log.Sub("scheduler"))
	checker := manifest.NewChecker(conf.Manifest, conf.Paths, launcher, log.Sub("manifest"))
	limiter := cooldown.NewLimiter(time.Duration(conf.Server.CooldownInterval))

	coord := srv.NewCoordinator(sched, checker, limiter, log.Sub("coordinator"))
	coord.OnStop("docker client", launcher.Close)

	if err := coord.Start(ctx); err != nil {
		log.Error("Couldn't start coordinator", err)
		return err
	}

	if conf.Server.MetricsAddress != "" {
		go metrics.Watch(ctx, sched, launcher, conf.Docker.WorkerPrefix, log.Sub("metrics"))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Info("Serving metrics", "address", conf.Server.MetricsAddress)
			if err := http.ListenAndServe(conf.Server.MetricsAddress, mux); err != nil {
				log.Error("Metrics endpoint error", err)
			}
		}()
	}

	// Block until a shutdown signal arrives.
	<-ctx.Done()
	log.Info("Shutting down")
	return coord.Stop()
}
