package harness

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/heat"
	"github.com/roach88/dotheat/internal/kvserver"
	"github.com/roach88/dotheat/internal/record"
	"github.com/roach88/dotheat/internal/remote"
	"github.com/roach88/dotheat/internal/sched"
	"github.com/roach88/dotheat/internal/store"
)

// epoch is where the manual clock starts, so record timestamps are stable.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// drainTimeout bounds the wait for beacon deliveries after each step.
const drainTimeout = 5 * time.Second

var lifecycleEvents = map[string]heat.LifecycleEvent{
	"visible": heat.EventVisible,
	"hidden":  heat.EventHidden,
	"unload":  heat.EventUnload,
}

// Harness wires one session to an in-memory cache and an in-process
// counter service.
type Harness struct {
	store   *store.Store
	backend *recordingBackend
	gate    *gate
	remote  *remote.Client
	session *heat.Session
	sched   *sched.Manual
	grid    cell.Grid

	mu     sync.Mutex
	events []TraceEvent
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create a fresh in-memory cache and counter service
// 2. Seed local and remote values
// 3. Execute flow steps, collecting each step's effects
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := heat.DiscardLogger()
	h := &Harness{
		store: st,
		sched: sched.NewManual(epoch),
		grid:  cell.NewGrid(scenario.Grid.Rows, scenario.Grid.Cols),
	}
	h.backend = &recordingBackend{Backend: kvserver.NewMemory(), h: h}
	h.gate = &gate{next: kvserver.Handler(h.backend, kvserver.Options{Logger: logger})}
	srv := httptest.NewServer(h.gate)
	defer srv.Close()

	h.remote, err = remote.New(remote.Options{
		BaseURL:   srv.URL,
		Scheduler: h.sched,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}

	opts := []heat.Option{
		heat.WithScheduler(h.sched),
		heat.WithHook(h.repaint),
		heat.WithLogger(logger),
		heat.WithIDGenerator(heat.NewFixedGenerator("scenario-" + scenario.Name)),
	}
	if scenario.MaxCells > 0 {
		opts = append(opts, heat.WithMaxCells(scenario.MaxCells))
	}
	h.session = heat.New(st, h.remote, opts...)
	defer h.session.Close()

	ctx := context.Background()
	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed scenario: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i+1, err)
		}
		h.settle(ctx)
		result.addStep(i+1, h.takeEvents())
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Remote:  h.backend.Backend,
		Session: h.session,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// seed writes the scenario's initial values without recording trace events.
func (h *Harness) seed(ctx context.Context, s *Scenario) error {
	for _, v := range s.Local {
		c, _ := cell.Parse(v.Cell)
		var err error
		if v.Raw != "" {
			err = h.store.PutRaw(ctx, c.StorageKey(), v.Raw, 0)
		} else {
			err = h.store.Put(ctx, c.StorageKey(), record.ClickRecord{Count: v.Count, Sequence: v.Sequence})
		}
		if err != nil {
			return err
		}
	}
	for _, v := range s.Remote {
		if err := h.backend.Backend.Set(ctx, storageKey(v.Cell), encodeValue(v)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	switch {
	case step.Load:
		if _, err := h.session.LoadSession(ctx, h.grid); err != nil {
			return err
		}
	case step.Click != "":
		c, _ := cell.Parse(step.Click)
		times := max(step.Times, 1)
		for i := 0; i < times; i++ {
			h.session.RecordClick(ctx, c)
		}
	case step.Flush:
		h.session.Flush(ctx)
	case step.Lifecycle != "":
		h.session.Lifecycle(lifecycleEvents[step.Lifecycle])
	case step.Advance > 0:
		h.sched.Advance(step.Advance)
	case step.Remote != "":
		h.gate.down.Store(step.Remote == "down")
	case step.Probe:
		// A failed probe is an expected outcome, visible through "available".
		_ = h.session.Probe(ctx)
	case step.SetRemote != nil:
		// Written behind the session's back: not a session effect.
		return h.backend.Backend.Set(ctx, storageKey(step.SetRemote.Cell), encodeValue(*step.SetRemote))
	}
	return nil
}

// settle waits for background work started by a step.
func (h *Harness) settle(ctx context.Context) {
	_ = h.session.WaitSync(ctx)
	h.session.Wait()
	h.remote.Drain(drainTimeout)
}

func (h *Harness) repaint(c cell.Cell, count int, _ heat.ColorFunc, animate bool) {
	h.record(TraceEvent{Type: EventRepaint, Cell: c.ID(), Count: count, Animate: animate})
}

func (h *Harness) record(e TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *Harness) takeEvents() []TraceEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := h.events
	h.events = nil
	return events
}

// recordingBackend traces every write that reaches the counter service.
type recordingBackend struct {
	kvserver.Backend
	h *Harness
}

func (b *recordingBackend) Set(ctx context.Context, key, value string) error {
	if err := b.Backend.Set(ctx, key, value); err != nil {
		return err
	}
	if c, err := cell.FromStorageKey(key); err == nil {
		d := record.Decode(value)
		b.h.record(TraceEvent{Type: EventRemotePut, Cell: c.ID(), Count: d.Record.Count, Seq: d.Record.Sequence})
	}
	return nil
}

func (b *recordingBackend) Delete(ctx context.Context, key string) error {
	if err := b.Backend.Delete(ctx, key); err != nil {
		return err
	}
	if c, err := cell.FromStorageKey(key); err == nil {
		b.h.record(TraceEvent{Type: EventRemoteDelete, Cell: c.ID()})
	}
	return nil
}

// gate fails every request while down.
type gate struct {
	next http.Handler
	down atomic.Bool
}

func (g *gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.down.Load() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	g.next.ServeHTTP(w, r)
}

func storageKey(id string) string {
	c, _ := cell.Parse(id)
	return c.StorageKey()
}

func encodeValue(v CellValue) string {
	if v.Raw != "" {
		return v.Raw
	}
	return record.Encode(record.ClickRecord{Count: v.Count, Sequence: v.Sequence})
}
