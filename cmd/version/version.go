// Package version contains the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuropathbasel-pub/CQmanager/version"
)

// Cmd represents the version command.
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}
