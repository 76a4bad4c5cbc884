package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/heat"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	SessionOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{SessionOptions: SessionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a heatmap session over HTTP",
		Long: `Run one heatmap session behind an HTTP API.

Endpoints:
  POST /api/load                       restore and reconcile the grid
  POST /api/cells/{row}/{col}/click    record a click
  GET  /api/cells                      current counts and colors
  POST /api/lifecycle/{event}          visible, hidden, or unload
  GET  /debug/heat                     diagnostics
  POST /debug/heat/flush               flush pending writes now
  POST /debug/heat/probe               connectivity probe
  GET  /metrics                        Prometheus metrics

Example:
  dotheat serve --addr :8080 --remote http://127.0.0.1:8081`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	addSessionFlags(cmd, &opts.SessionOptions)
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := loadConfig(cmd, &opts.SessionOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Serve.Addr = opts.Addr
	}

	env, err := openSession(cfg, &opts.SessionOptions, logRepaint)
	if err != nil {
		return err
	}
	defer env.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	ln, err := net.Listen("tcp", cfg.Serve.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	slog.Info("session server starting", "addr", ln.Addr().String(), "session", env.session.ID())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving session %s on %s\n", env.session.ID(), ln.Addr())

	api := &sessionAPI{session: env.session, grid: env.grid(), registry: env.registry}
	if err := serveHTTP(ctx, ln, api.routes()); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	slog.Info("session server stopped gracefully")
	return nil
}

// logRepaint is the server's visual hook: there is no page, so repaints are
// logged.
func logRepaint(c cell.Cell, count int, color heat.ColorFunc, animate bool) {
	slog.Debug("repaint", "cell", c.ID(), "count", count, "color", color(count), "animate", animate)
}

// serveHTTP serves h on ln until ctx is done, then shuts down gracefully.
func serveHTTP(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// sessionAPI is the HTTP surface of one session.
type sessionAPI struct {
	session  *heat.Session
	grid     cell.Grid
	registry *prometheus.Registry
}

// CellView is one cell in the GET /api/cells response.
type CellView struct {
	Count int    `json:"count"`
	Color string `json:"color"`
}

func (a *sessionAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/load", a.load)
		r.Get("/cells", a.cells)
		r.Post("/cells/{row}/{col}/click", a.click)
		r.Post("/lifecycle/{event}", a.lifecycle)
	})
	r.Route("/debug/heat", func(r chi.Router) {
		r.Get("/", a.diagnostics)
		r.Post("/flush", a.flush)
		r.Post("/probe", a.probe)
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return r
}

func (a *sessionAPI) load(w http.ResponseWriter, r *http.Request) {
	report, err := a.session.LoadSession(r.Context(), a.grid)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *sessionAPI) cells(w http.ResponseWriter, _ *http.Request) {
	counts := a.session.Counts()
	out := make(map[string]CellView, len(counts))
	for id, n := range counts {
		out[id] = CellView{Count: n, Color: heatColor(n)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *sessionAPI) click(w http.ResponseWriter, r *http.Request) {
	row, errRow := strconv.Atoi(chi.URLParam(r, "row"))
	col, errCol := strconv.Atoi(chi.URLParam(r, "col"))
	c := cell.Cell{Row: row, Col: col}
	if errRow != nil || errCol != nil || !a.grid.Contains(c) {
		writeError(w, http.StatusNotFound, CodeCommandError, "no such cell")
		return
	}
	n := a.session.RecordClick(r.Context(), c)
	writeJSON(w, http.StatusOK, map[string]any{"cell": c.ID(), "count": n, "color": heatColor(n)})
}

func (a *sessionAPI) lifecycle(w http.ResponseWriter, r *http.Request) {
	var ev heat.LifecycleEvent
	switch chi.URLParam(r, "event") {
	case "visible":
		ev = heat.EventVisible
	case "hidden":
		ev = heat.EventHidden
	case "unload":
		ev = heat.EventUnload
	default:
		writeError(w, http.StatusBadRequest, CodeCommandError, "event must be visible, hidden, or unload")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": a.session.Lifecycle(ev)})
}

func (a *sessionAPI) diagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.session.Diagnostics())
}

func (a *sessionAPI) flush(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.session.ForceFlush(r.Context()))
}

func (a *sessionAPI) probe(w http.ResponseWriter, r *http.Request) {
	if err := a.session.Probe(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, CLIError{Code: code, Message: message})
}
