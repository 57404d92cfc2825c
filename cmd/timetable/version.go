// Version command for the timetable CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/timetable"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the timetable version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "timetable %s\nmodule: %s\n", version, modulePath)
	},
}
