package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "timetable-cli",
		Short:        "Generate division timetables from CSV inputs",
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd(), newTokenCmd())
	return root
}
