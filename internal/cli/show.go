package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dotheat/internal/heat"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	SessionOptions
	Rows int
	Cols int
	Wait bool
}

// ShowResult is the output of the show command.
type ShowResult struct {
	Rows   int             `json:"rows"`
	Cols   int             `json:"cols"`
	Counts map[string]int  `json:"counts"`
	Load   heat.LoadReport `json:"load"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{SessionOptions: SessionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the heatmap grid",
		Long: `Restore the heatmap from the local cache, reconcile it with the remote
service, and print the resulting counts.

Example:
  dotheat show --rows 5 --cols 8
  dotheat show --wait --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	addSessionFlags(cmd, &opts.SessionOptions)
	cmd.Flags().IntVar(&opts.Rows, "rows", 0, "grid rows (default from config)")
	cmd.Flags().IntVar(&opts.Cols, "cols", 0, "grid columns (default from config)")
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "wait for the remote sync even past its timeout")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := loadConfig(cmd, &opts.SessionOptions)
	if err != nil {
		return err
	}
	if opts.Rows > 0 {
		cfg.Serve.Rows = opts.Rows
	}
	if opts.Cols > 0 {
		cfg.Serve.Cols = opts.Cols
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
	if opts.Wait && !report.SyncCompleted && !report.SyncSkipped {
		if err := env.session.WaitSync(ctx); err != nil {
			return WrapExitError(ExitFailure, "sync interrupted", err)
		}
	}

	res := ShowResult{
		Rows:   cfg.Serve.Rows,
		Cols:   cfg.Serve.Cols,
		Counts: env.session.Counts(),
		Load:   report,
	}
	return env.formatter(cmd, opts.RootOptions).Emit(res, func(w io.Writer) { formatGrid(w, res) })
}
