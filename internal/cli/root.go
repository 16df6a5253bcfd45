// Package cli wires the points-rebuild command line: a one-shot run of
// reset, ingest and recalc, plus a config inspection command.
package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const (
	ExitOK      = 0
	ExitFailure = 1
)

// Env is the key/value view of the process environment the commands read.
type Env map[string]string

// EnvFrom converts os.Environ-style "KEY=value" entries.
func EnvFrom(entries []string) Env {
	out := make(Env, len(entries))
	for _, kv := range entries {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, environ Env, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}

	root := newRootCommand(environ, stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var done *runFailedError
		if !errors.As(err, &done) {
			// usage and flag errors; run failures are already logged
			root.PrintErrln("Error:", err)
		}
		return ExitFailure
	}
	return ExitOK
}

func newRootCommand(environ Env, stdout io.Writer) *cobra.Command {
	runCmd := newRunCommand(environ, stdout)

	root := &cobra.Command{
		Use:           "points-rebuild",
		Short:         "Rebuild points state through the points API: reset, ingest, recalc",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runCmd.RunE,
	}
	root.Flags().AddFlagSet(runCmd.Flags())

	root.AddCommand(runCmd)
	root.AddCommand(newConfigCommand(environ))
	return root
}

// runFailedError marks an error the run command has already reported.
type runFailedError struct {
	err error
}

func (e *runFailedError) Error() string { return e.err.Error() }

func (e *runFailedError) Unwrap() error { return e.err }
