// Package cli implements the csvsplit command line: a thin boundary that
// turns flags and manifests into core.SplitRequest values and prints the
// results.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/WvvvWv/csvsplit/internal/config"
	"github.com/WvvvWv/csvsplit/internal/core"
	"github.com/WvvvWv/csvsplit/internal/history"
	"github.com/WvvvWv/csvsplit/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the csvsplit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "csvsplit",
		Short: "Split large CSV files into numbered shards",
		Long: `Split a CSV file into shards of at most N data rows each, optionally
converting every shard to an .xlsx workbook.

Settings such as the parallel thresholds and worker count are read from the
same SPLIT_* and EXCEL_* environment variables as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			// Logs go to stderr; stdout carries only command output.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), level, "text"))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSplitCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))

	return cmd
}

// newService builds a split service from the environment. CLI runs keep
// their history in memory only.
func newService() (*core.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	return core.NewService(cfg.ServiceOptions(), history.NewMemoryStore(cfg.History.Capacity)), nil
}

// Execute runs the CLI with args and returns the process exit code. Split
// failures have already been printed to stdout as results; every other error
// is printed to stderr here.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Flag and argument errors from cobra.
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitCommandError
	}
	if exitErr.Code != ExitFailure {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitErr.Code
}
