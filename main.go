package main

import (
	"os"

	"github.com/neuropathbasel-pub/CQmanager/cmd"
	"github.com/neuropathbasel-pub/CQmanager/logger"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		logger.PrintSimpleError(err)
		os.Exit(1)
	}
}
