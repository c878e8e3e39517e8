// Command xfsim is the interactive shell for the simulator: format a
// device, mount it, create files, and drive the extent-mapped I/O path,
// all against an in-memory filesystem. The command surface is a non-core
// collaborator (spec §1) layered over pkg/fsim.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironwood-labs/xfsim/pkg/elog"
	"github.com/ironwood-labs/xfsim/pkg/fsim"
)

var (
	log = &elog.CLI{}
	fs  = fsim.New(fsim.WithLogger(log))
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xfsim",
		Short: "An in-memory XFS-style filesystem simulator",
	}

	root.PersistentFlags().BoolVar(&log.IsDebug, "debug", false, "enable debug trace logging")
	root.PersistentFlags().BoolVar(&log.IsVerbose, "verbose", false, "enable verbose info logging")
	root.PersistentFlags().BoolVar(&log.DisableColors, "no-color", false, "disable colored log output")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(log)
		switch {
		case log.IsDebug:
			logrus.SetLevel(logrus.TraceLevel)
		case log.IsVerbose:
			logrus.SetLevel(logrus.DebugLevel)
		}
	}

	root.AddCommand(
		newFormatCmd(),
		newMountCmd(),
		newCreateCmd(),
		newWriteCmd(),
		newReadCmd(),
		newInspectCmd(),
		newLsCmd(),
		newSuperblockCmd(),
		newAGFCmd(),
		newAGICmd(),
		newAGSummaryCmd(),
		newLogCmd(),
		newBarrierTestCmd(),
		newShellCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
