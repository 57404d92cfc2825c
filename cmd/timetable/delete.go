// Delete commands for the timetable CLI.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <table> <id>",
	Short: "Delete an entity and cascade to the rows that reference it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			fail("delete", err)
		}

		backend, detach, err := attachBackend()
		if err != nil {
			fail("delete", err)
		}
		defer detach()

		ctx := context.Background()
		w, err := backend.Writer(ctx, args[0])
		if err != nil {
			fail("delete", err)
		}
		defer w.Close()

		n, err := w.Delete(ctx, id, true)
		if err != nil {
			fail("delete", err)
		}
		fmt.Printf("Deleted %d %s\n", n, args[0])
		return nil
	},
}

var deleteWhereCmd = &cobra.Command{
	Use:   "delete-where <table> <field> <value>",
	Short: "Delete every entity whose field equals value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, detach, err := attachBackend()
		if err != nil {
			fail("delete-where", err)
		}
		defer detach()

		ctx := context.Background()
		w, err := backend.Writer(ctx, args[0])
		if err != nil {
			fail("delete-where", err)
		}
		defer w.Close()

		n, err := w.DeleteWhere(ctx, args[1], args[2], true)
		if err != nil {
			fail("delete-where", err)
		}
		fmt.Printf("Deleted %d %s\n", n, args[0])
		return nil
	},
}
