package cli

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/spf13/cobra"

	"github.com/roach88/dotheat/internal/config"
	"github.com/roach88/dotheat/internal/kvserver"
)

// KVOptions holds flags for the kv serve command.
type KVOptions struct {
	*RootOptions
	Addr  string
	Redis string
	Token string
}

// NewKVCommand creates the kv command group.
func NewKVCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Remote counter service",
	}
	cmd.AddCommand(newKVServeCommand(&KVOptions{RootOptions: rootOpts}))
	return cmd
}

func newKVServeCommand(opts *KVOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the remote counter service",
		Long: `Run a key-value counter service that dotheat sessions can sync with.

Values live in memory unless --redis names a Redis server.

Example:
  dotheat kv serve --addr :8081
  dotheat kv serve --redis localhost:6379 --token s3cret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKVServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Redis, "redis", "", "Redis address; in-memory when empty")
	cmd.Flags().StringVar(&opts.Token, "token", "", "require this bearer token")

	return cmd
}

func runKVServe(opts *KVOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Addr != "" {
		cfg.KV.Addr = opts.Addr
	}
	if opts.Redis != "" {
		cfg.KV.Redis = opts.Redis
	}
	if opts.Token != "" {
		cfg.KV.Token = opts.Token
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var backend kvserver.Backend = kvserver.NewMemory()
	if cfg.KV.Redis != "" {
		r, err := kvserver.DialRedis(ctx, cfg.KV.Redis, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		defer r.Close()
		backend = r
		slog.Info("using redis backend", "addr", cfg.KV.Redis)
	}

	ln, err := net.Listen("tcp", cfg.KV.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	slog.Info("counter service starting", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Counter service listening on %s\n", ln.Addr())

	h := kvserver.Handler(backend, kvserver.Options{Token: cfg.KV.Token, Logger: slog.Default()})
	if err := serveHTTP(ctx, ln, h); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	slog.Info("counter service stopped gracefully")
	return nil
}
