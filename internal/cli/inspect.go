package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dotheat/internal/heat"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	SessionOptions
	Probe bool
}

// InspectResult is the output of the inspect command.
type InspectResult struct {
	heat.Diagnostics

	// Probe is "ok", the probe error, or empty when no probe ran.
	Probe string `json:"probe,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{SessionOptions: SessionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show session diagnostics",
		Long: `Restore a session and report remote availability, the pending write
queue, the sequence clock, and the cache size.

With --probe, a single connectivity check runs first. It ignores the
availability breaker and closes it on success.

Example:
  dotheat inspect
  dotheat inspect --probe --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	addSessionFlags(cmd, &opts.SessionOptions)
	cmd.Flags().BoolVar(&opts.Probe, "probe", false, "run a connectivity probe")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())

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

	var res InspectResult
	if opts.Probe {
		if err := env.session.Probe(ctx); err != nil {
			res.Probe = err.Error()
		} else {
			res.Probe = "ok"
		}
	}
	if _, err := env.session.LoadSession(ctx, env.grid()); err != nil {
		return WrapExitError(ExitFailure, "load interrupted", err)
	}
	res.Diagnostics = env.session.Diagnostics()

	return env.formatter(cmd, opts.RootOptions).Emit(res, func(w io.Writer) { formatInspect(w, res) })
}
