// Root command for the timetable CLI.
package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/timetable/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagLogLevel  string
)

// cfg holds config.yaml as loaded by PersistentPreRunE so all subcommands
// can use it.
var cfg *viper.Viper

var rootCmd = &cobra.Command{
	Use:          "timetable",
	Short:        "timetable applies consistent edits to a transit schedule store",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		loaded, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			loaded.Set(cfgKeyLogLevel, flagLogLevel)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "SQLite data directory (default: $(CWD)/.timetable-db)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(deleteWhereCmd)
	rootCmd.AddCommand(normalizeCmd)
}

// resolveDataDir returns the data directory: --data-dir flag > config.yaml
// data_dir > TIMETABLE_DATA_DIR env > $(CWD)/.timetable-db.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, cfg.GetString(cfgKeyDataDir))
}

// resolveConfigDir returns the configuration directory: --config-dir flag >
// TIMETABLE_CONFIG_DIR env > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
