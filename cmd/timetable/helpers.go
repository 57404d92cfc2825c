// Shared helpers for timetable CLI commands.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mesh-intelligence/timetable/internal/sqlite"
	"github.com/mesh-intelligence/timetable/pkg/types"
)

// attachBackend builds the store config, creates a backend, and attaches
// it. The caller must call the returned detach function.
func attachBackend() (*sqlite.Backend, func(), error) {
	c, err := storeConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.GetString(cfgKeyLogLevel))
	if err != nil {
		return nil, nil, err
	}
	c.Logger = log

	backend := sqlite.NewBackend()
	if err := backend.Attach(c); err != nil {
		return nil, nil, fmt.Errorf("attach backend: %w", err)
	}
	return backend, func() {
		_ = backend.Detach()
		_ = log.Sync()
	}, nil
}

// readDocuments reads one JSON document or an array of them from path, or
// from stdin when path is empty or "-".
func readDocuments(path string) ([]types.Document, bool, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, false, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return types.ParseDocuments(data)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// exitCode maps an engine error to a process exit code: input problems are
// user errors, everything else is a system error.
func exitCode(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrConflict),
		errors.Is(err, types.ErrReference),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrTableNotFound):
		return exitUserError
	}
	return exitSysError
}

// fail prints err prefixed with the command name and exits.
func fail(name string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
	os.Exit(exitCode(err))
}
