package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WvvvWv/csvsplit/internal/core"
)

type splitFlags struct {
	out      string
	rows     int
	header   bool
	xlsx     bool
	strategy string
}

// NewSplitCommand creates the split command.
func NewSplitCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &splitFlags{}

	cmd := &cobra.Command{
		Use:   "split <input.csv>",
		Short: "Split one CSV file",
		Long: `Split one CSV file into <stem>_1.csv, <stem>_2.csv, ... in the output
directory, each holding the header and at most --rows data rows.

With --xlsx every shard is converted to <stem>_N.xlsx and the CSV removed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := core.SplitRequest{
				InputPath:      args[0],
				OutputDir:      flags.out,
				RowsPerFile:    flags.rows,
				HasHeader:      flags.header,
				ConvertToExcel: flags.xlsx,
				Strategy:       core.Strategy(flags.strategy),
			}
			return runSplit(cmd, rootOpts, req)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output directory (created if missing)")
	cmd.Flags().IntVarP(&flags.rows, "rows", "n", 0, "data rows per output file")
	cmd.Flags().BoolVar(&flags.header, "header", true, "first line is a header row")
	cmd.Flags().BoolVar(&flags.xlsx, "xlsx", false, "convert shards to .xlsx")
	cmd.Flags().StringVar(&flags.strategy, "strategy", "auto", "auto|sequential|parallel")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("rows")

	return cmd
}

func runSplit(cmd *cobra.Command, opts *RootOptions, req core.SplitRequest) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	svc, err := newService()
	if err != nil {
		return err
	}

	res := svc.Split(cmd.Context(), req)
	if err := formatter.Result(res); err != nil {
		return err
	}
	if !res.Success {
		if opts.Verbose {
			fmt.Fprintln(cmd.ErrOrStderr(), "hint:", core.FormatUserError(errors.New(res.ErrorMessage())))
		}
		return NewExitError(ExitFailure, res.ErrorMessage())
	}
	return nil
}
