package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/config"
	"github.com/roach88/dotheat/internal/heat"
	"github.com/roach88/dotheat/internal/remote"
	"github.com/roach88/dotheat/internal/store"
)

// drainTimeout bounds how long a command waits for beacon deliveries on exit.
const drainTimeout = 5 * time.Second

// SessionOptions holds the flags shared by commands that open a session.
type SessionOptions struct {
	*RootOptions
	Database  string
	RemoteURL string

	// IDGenerator allows overriding the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator heat.IDGenerator
}

func addSessionFlags(cmd *cobra.Command, opts *SessionOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the local SQLite cache (default from config)")
	cmd.Flags().StringVar(&opts.RemoteURL, "remote", "", "remote counter service URL (default from config)")
}

// sessionEnv is an open session with everything it owns.
type sessionEnv struct {
	cfg      config.Config
	store    *store.Store
	remote   *remote.Client
	session  *heat.Session
	metrics  *heat.Metrics
	registry *prometheus.Registry
}

// grid is the configured view.
func (e *sessionEnv) grid() cell.Grid {
	return cell.NewGrid(e.cfg.Serve.Rows, e.cfg.Serve.Cols)
}

// close delivers what is still pending, waits briefly for it, and releases
// the database.
func (e *sessionEnv) close() {
	if n := e.session.Lifecycle(heat.EventUnload); n > 0 {
		if !e.remote.Drain(drainTimeout) {
			slog.Warn("exit deliveries still in flight", "writes", n)
		}
	}
	e.session.Close()
	if err := e.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// loadConfig reads the config file and environment, then applies flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command, opts *SessionOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.DB = opts.Database
	}
	if cmd.Flags().Changed("remote") {
		cfg.Remote.URL = opts.RemoteURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// openSession wires the store, remote client, metrics, and session from cfg.
func openSession(cfg config.Config, opts *SessionOptions, hook heat.VisualHook) (*sessionEnv, error) {
	slog.Debug("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	reg := prometheus.NewRegistry()
	metrics := heat.NewMetrics(reg)

	rc, err := remote.New(remote.Options{
		BaseURL:          cfg.Remote.URL,
		Token:            cfg.Remote.Token,
		Timeout:          cfg.Remote.Timeout,
		MaxAttempts:      cfg.Remote.MaxAttempts,
		BaseDelay:        cfg.Remote.BaseDelay,
		FailureThreshold: cfg.Remote.FailureThreshold,
		Logger:           slog.Default(),
		OnTrip:           metrics.BreakerTrips.Inc,
	})
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid remote configuration", err)
	}

	sessOpts := []heat.Option{
		heat.WithLogger(slog.Default()),
		heat.WithMetrics(metrics),
		heat.WithColor(heatColor),
		heat.WithMaxCells(cfg.Session.MaxCells),
		heat.WithFlushDelay(cfg.Session.FlushDelay),
		heat.WithSyncChunks(cfg.Session.SyncChunkSize, cfg.Session.SyncChunkDelay),
		heat.WithSyncTimeout(cfg.Session.SyncTimeout),
	}
	if hook != nil {
		sessOpts = append(sessOpts, heat.WithHook(hook))
	}
	if opts.IDGenerator != nil {
		sessOpts = append(sessOpts, heat.WithIDGenerator(opts.IDGenerator))
	}

	return &sessionEnv{
		cfg:      cfg,
		store:    st,
		remote:   rc,
		session:  heat.New(st, rc, sessOpts...),
		metrics:  metrics,
		registry: reg,
	}, nil
}

// setupLogging installs the default slog handler on w.
func setupLogging(verbose bool, w io.Writer) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// commandContext returns the command's context, cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// parseCell parses ROW and COL arguments.
func parseCell(rowArg, colArg string) (cell.Cell, error) {
	c, err := cell.Parse(rowArg + "_" + colArg)
	if err == nil && (c.Row < 0 || c.Col < 0) {
		err = errors.New("row and col must not be negative")
	}
	if err != nil {
		return cell.Cell{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid cell %s %s", rowArg, colArg), err)
	}
	return c, nil
}

// formatter returns an OutputFormatter for cmd tagged with the session ID.
func (e *sessionEnv) formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		SessionID: e.session.ID(),
	}
}
