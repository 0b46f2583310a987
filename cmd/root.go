// Package cmd contains the CQmanager CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/neuropathbasel-pub/CQmanager/cmd/server"
	"github.com/neuropathbasel-pub/CQmanager/cmd/version"
	"github.com/neuropathbasel-pub/CQmanager/cmd/worker"
)

// RootCmd represents the root command.
var RootCmd = &cobra.Command{
	Use:           "cqmanager",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	RootCmd.AddCommand(server.NewCommand())
	RootCmd.AddCommand(version.Cmd)
	RootCmd.AddCommand(worker.NewCommand())
}
