// Normalize command for the timetable CLI.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

var normalizeFrom int64

var normalizeCmd = &cobra.Command{
	Use:   "normalize <pattern-id>",
	Short: "Recompute stop times of every trip on a pattern from its default travel and dwell times",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			fail("normalize", err)
		}

		backend, detach, err := attachBackend()
		if err != nil {
			fail("normalize", err)
		}
		defer detach()

		ctx := context.Background()
		w, err := backend.Writer(ctx, types.TablePatterns)
		if err != nil {
			fail("normalize", err)
		}
		defer w.Close()

		n, err := w.NormalizeStopTimesForPattern(ctx, id, normalizeFrom)
		if err != nil {
			fail("normalize", err)
		}
		fmt.Printf("Updated %d stop times\n", n)
		return nil
	},
}

func init() {
	normalizeCmd.Flags().Int64Var(&normalizeFrom, "from", 0, "first stop_sequence to recompute")
}
