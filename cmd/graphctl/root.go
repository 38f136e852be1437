package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graphctl",
		Short:         "Loopback command bridge for node graph authoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newPingCmd(),
		newSendCmd(),
		newClassesCmd(),
		newInitCmd(),
	)
	return root
}
