package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dotheat/internal/heat"
)

// ClickOptions holds flags for the click command.
type ClickOptions struct {
	SessionOptions
	Times int
}

// ClickResult is the output of the click command.
type ClickResult struct {
	Cell     string           `json:"cell"`
	Count    int              `json:"count"`
	Flush    heat.FlushResult `json:"flush"`
	Adopted  int              `json:"adopted"`
	Sequence int64            `json:"sequence"`
}

// NewClickCommand creates the click command.
func NewClickCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClickOptions{SessionOptions: SessionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "click <row> <col>",
		Short: "Record clicks on a cell",
		Long: `Record one or more clicks on a cell, the way the page would.

The session restores the heatmap first, then records each click locally,
flushes the batch to the remote service, and hands anything left over to
exit delivery.

Example:
  dotheat click 2 3
  dotheat click --times 5 --db ./heat.db --remote http://127.0.0.1:8081 0 0`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClick(opts, args[0], args[1], cmd)
		},
	}

	addSessionFlags(cmd, &opts.SessionOptions)
	cmd.Flags().IntVarP(&opts.Times, "times", "n", 1, "number of clicks")

	return cmd
}

func runClick(opts *ClickOptions, rowArg, colArg string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())

	c, err := parseCell(rowArg, colArg)
	if err != nil {
		return err
	}
	if opts.Times < 1 {
		return NewExitError(ExitCommandError, "--times must be at least 1")
	}

	cfg, err := loadConfig(cmd, &opts.SessionOptions)
	if err != nil {
		return err
	}
	env, err := openSession(cfg, &opts.SessionOptions, nil)
	if err != nil {
		return err
	}
	defer env.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	report, err := env.session.LoadSession(ctx, env.grid())
	if err != nil {
		return WrapExitError(ExitFailure, "load interrupted", err)
	}

	count := 0
	for i := 0; i < opts.Times; i++ {
		count = env.session.RecordClick(ctx, c)
	}
	res := ClickResult{
		Cell:     c.ID(),
		Count:    count,
		Flush:    env.session.Flush(ctx),
		Adopted:  report.Adopted,
		Sequence: env.session.Sequence(),
	}

	formatter := env.formatter(cmd, opts.RootOptions)
	formatter.VerboseLog("session %s: restored %d cells, adopted %d", env.session.ID(), report.Hydrated, report.Adopted)
	return formatter.Emit(res, func(w io.Writer) { formatClick(w, res) })
}
