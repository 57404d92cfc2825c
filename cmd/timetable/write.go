// Create and update commands for the timetable CLI.
package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

var createCmd = &cobra.Command{
	Use:   "create <table> [file]",
	Short: "Create entities from a JSON object or array (file or stdin)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, isArray, err := readDocuments(optionalArg(args, 1))
		if err != nil {
			fail("create", err)
		}

		backend, detach, err := attachBackend()
		if err != nil {
			fail("create", err)
		}
		defer detach()

		ctx := context.Background()
		w, err := backend.Writer(ctx, args[0])
		if err != nil {
			fail("create", err)
		}
		defer w.Close()

		if isArray {
			saved, err := w.CreateAll(ctx, docs, true)
			if err != nil {
				fail("create", err)
			}
			return printJSON(saved)
		}
		saved, err := w.Create(ctx, docs[0], true)
		if err != nil {
			fail("create", err)
		}
		return printJSON(saved)
	},
}

var updateID string

var updateCmd = &cobra.Command{
	Use:   "update <table> [file]",
	Short: "Update entities from a JSON object or array (file or stdin)",
	Long: `Update rewrites entities and replaces their child collections.

A single object is updated by --id, or by its own "id" field. Each element of
an array is updated by its "id" field; elements without one are created.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, isArray, err := readDocuments(optionalArg(args, 1))
		if err != nil {
			fail("update", err)
		}

		backend, detach, err := attachBackend()
		if err != nil {
			fail("update", err)
		}
		defer detach()

		ctx := context.Background()
		w, err := backend.Writer(ctx, args[0])
		if err != nil {
			fail("update", err)
		}
		defer w.Close()

		if isArray {
			saved, err := w.UpdateAll(ctx, docs, true)
			if err != nil {
				fail("update", err)
			}
			return printJSON(saved)
		}

		id, ok := docs[0].ID()
		if updateID != "" {
			if id, err = parseID(updateID); err != nil {
				fail("update", err)
			}
			ok = true
		}
		if !ok {
			fail("update", types.Validationf(args[0], types.IDField, nil, "update needs --id or an id field"))
		}
		saved, err := w.Update(ctx, id, docs[0], true)
		if err != nil {
			fail("update", err)
		}
		return printJSON(saved)
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateID, "id", "", "id of the entity to update")
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

var errBadID = errors.New("id must be an integer")

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, types.Validationf("", types.IDField, s, "%v: %q", errBadID, s)
	}
	return id, nil
}
