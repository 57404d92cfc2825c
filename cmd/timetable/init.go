// Init command for the timetable CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration file and the schedule tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			fail("init", err)
		}

		// Attach creates the data directory and any missing tables.
		_, detach, err := attachBackend()
		if err != nil {
			fail("init", err)
		}
		defer detach()

		fmt.Fprintln(os.Stdout, "timetable initialized")
		fmt.Fprintln(os.Stdout, "  config:", configDir)
		fmt.Fprintln(os.Stdout, "  backend:", cfg.GetString(cfgKeyBackend))
		if dataDir, err := resolveDataDir(); err == nil && cfg.GetString(cfgKeyBackend) == "sqlite" {
			fmt.Fprintln(os.Stdout, "  data:   ", dataDir)
		}
		return nil
	},
}
