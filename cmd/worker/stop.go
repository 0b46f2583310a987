// Package worker contains administrative commands for worker
// containers.
package worker

import (
	"context"
	"fmt"

	"github.com/imdario/mergo"
	"github.com/spf13/cobra"

	"github.com/neuropathbasel-pub/CQmanager/config"
	"github.com/neuropathbasel-pub/CQmanager/docker"
	"github.com/neuropathbasel-pub/CQmanager/logger"
)

// NewCommand returns the `cqmanager worker` command set.
func NewCommand() *cobra.Command {
	var configFile string
	flagConf := config.Config{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage analysis worker containers.",
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop all running analysis worker containers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.DefaultConfig()
			if err := config.ParseFile(configFile, &conf); err != nil {
				return err
			}
			if err := mergo.MergeWithOverwrite(&conf, flagConf); err != nil {
				return err
			}

			log := logger.New("cqmanager")
			launcher, err := docker.NewLauncher(conf.Docker, conf.Paths, log)
			if err != nil {
				return err
			}
			defer launcher.Close()

			stopped, err := launcher.StopAll(context.Background(), conf.Docker.WorkerPrefix)
			if err != nil {
				return err
			}
			for _, name := range stopped {
				fmt.Println(name)
			}
			fmt.Printf("stopped %d worker containers\n", len(stopped))
			return nil
		},
	}

	flags := stop.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file")
	flags.StringVar(&flagConf.Docker.WorkerPrefix, "worker-prefix", flagConf.Docker.WorkerPrefix, "Container name prefix of analysis workers")

	cmd.AddCommand(stop)
	return cmd
}
