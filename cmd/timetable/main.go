// Package main provides the timetable CLI, an operator tool for applying
// JSON edits to a schedule store.
package main

import (
	"os"
)

// version is the CLI release. Overridden at build time with -ldflags.
var version = "v0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}
