package heat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/record"
	"github.com/roach88/dotheat/internal/remote"
	"github.com/roach88/dotheat/internal/sched"
	"github.com/roach88/dotheat/internal/store"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errInjected = errors.New("injected failure")

// fakeRemote is an in-memory Remote with switchable failures.
type fakeRemote struct {
	mu        sync.Mutex
	values    map[string]int
	available bool
	failGet   map[string]bool
	failPut   map[string]bool
	refuse    bool // Send refuses as if the breaker just opened
	block     chan struct{}
	gets      []string
	puts      []putCall
	sent      []putCall
	deletes   []string
	probes    int
}

type putCall struct {
	key string
	rec record.ClickRecord
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		values:    map[string]int{},
		available: true,
		failGet:   map[string]bool{},
		failPut:   map[string]bool{},
	}
}

func (f *fakeRemote) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeRemote) Status() remote.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return remote.Status{Available: f.available}
}

func (f *fakeRemote) setAvailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = v
}

func (f *fakeRemote) Get(ctx context.Context, key string) (int, error) {
	f.mu.Lock()
	block := f.block
	f.gets = append(f.gets, key)
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return 0, remote.ErrUnavailable
	}
	if f.failGet[key] {
		return 0, errInjected
	}
	return f.values[key], nil
}

func (f *fakeRemote) Put(ctx context.Context, key string, rec record.ClickRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return remote.ErrUnavailable
	}
	if f.failPut[key] {
		return errInjected
	}
	f.puts = append(f.puts, putCall{key: key, rec: rec})
	f.values[key] = rec.Count
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	delete(f.values, key)
}

func (f *fakeRemote) Send(key string, rec record.ClickRecord) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse {
		return false
	}
	f.sent = append(f.sent, putCall{key: key, rec: rec})
	f.values[key] = rec.Count
	return true
}

func (f *fakeRemote) Probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	f.available = true
	return nil
}

func (f *fakeRemote) putCalls() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]putCall(nil), f.puts...)
}

func (f *fakeRemote) getCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gets...)
}

func (f *fakeRemote) deleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// failingStore wraps a LocalStore and fails writes on demand.
type failingStore struct {
	LocalStore
	failPut bool
}

func (s *failingStore) Put(ctx context.Context, key string, rec record.ClickRecord) error {
	if s.failPut {
		return &store.StorageError{Op: "put", Key: key, Err: errInjected}
	}
	return s.LocalStore.Put(ctx, key, rec)
}

// hookCall records one visual hook invocation.
type hookCall struct {
	cell    cell.Cell
	count   int
	animate bool
}

type hookRecorder struct {
	mu    sync.Mutex
	calls []hookCall
}

func (h *hookRecorder) hook(c cell.Cell, count int, color ColorFunc, animate bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hookCall{cell: c, count: count, animate: animate})
}

func (h *hookRecorder) snapshot() []hookCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hookCall(nil), h.calls...)
}

// harness bundles a session with its collaborators.
type harness struct {
	session *Session
	store   *store.Store
	remote  *fakeRemote
	sched   *sched.Manual
	hooks   *hookRecorder
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "heat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:  openTestStore(t),
		remote: newFakeRemote(),
		sched:  sched.NewManual(epoch),
		hooks:  &hookRecorder{},
	}
	base := []Option{
		WithScheduler(h.sched),
		WithHook(h.hooks.hook),
		WithLogger(DiscardLogger()),
		WithIDGenerator(NewFixedGenerator("session-1")),
	}
	h.session = New(h.store, h.remote, append(base, opts...)...)
	t.Cleanup(h.session.Close)
	return h
}

func (h *harness) seed(t *testing.T, c cell.Cell, rec record.ClickRecord) {
	t.Helper()
	require.NoError(t, h.store.Put(context.Background(), c.StorageKey(), rec))
}

func (h *harness) stored(t *testing.T, c cell.Cell) record.Decoded {
	t.Helper()
	d, err := h.store.Get(context.Background(), c.StorageKey())
	require.NoError(t, err)
	return d
}
