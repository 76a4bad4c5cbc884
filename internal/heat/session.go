package heat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/record"
	"github.com/roach88/dotheat/internal/remote"
	"github.com/roach88/dotheat/internal/sched"
	"github.com/roach88/dotheat/internal/store"
)

// Defaults for the tunables.
const (
	DefaultMaxCells       = 60
	DefaultFlushDelay     = 2 * time.Second
	DefaultSyncChunkSize  = 4
	DefaultSyncChunkDelay = 100 * time.Millisecond
	DefaultSyncTimeout    = 3 * time.Second
)

// LocalStore is the durable per-profile cache. Implemented by *store.Store.
type LocalStore interface {
	Get(ctx context.Context, key string) (record.Decoded, error)
	Put(ctx context.Context, key string, rec record.ClickRecord) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]store.Entry, error)
}

// Remote is the remote counter service. Implemented by *remote.Client.
type Remote interface {
	Available() bool
	Status() remote.Status
	Get(ctx context.Context, key string) (int, error)
	Put(ctx context.Context, key string, rec record.ClickRecord) error
	Delete(ctx context.Context, key string)
	Send(key string, rec record.ClickRecord) bool
	Probe(ctx context.Context) error
}

// ColorFunc maps a click count to a display color.
type ColorFunc func(count int) string

// VisualHook repaints a cell. animate is false while hydrating from the local
// cache and true for live clicks and remote adoptions.
type VisualHook func(c cell.Cell, count int, color ColorFunc, animate bool)

// LifecycleEvent is a page visibility transition.
type LifecycleEvent int

const (
	// EventVisible means the page came (back) to the foreground.
	EventVisible LifecycleEvent = iota + 1
	// EventHidden means the page was backgrounded.
	EventHidden
	// EventUnload means the page is being torn down.
	EventUnload
)

func (e LifecycleEvent) String() string {
	switch e {
	case EventVisible:
		return "visible"
	case EventHidden:
		return "hidden"
	case EventUnload:
		return "unload"
	default:
		return "unknown"
	}
}

// pendingWrite is the latest record for a cell awaiting remote flush.
type pendingWrite struct {
	cell cell.Cell
	rec  record.ClickRecord
}

// Session is one page session of the heatmap.
type Session struct {
	id      string
	local   LocalStore
	remote  Remote
	sched   sched.Scheduler
	hook    VisualHook
	color   ColorFunc
	logger  *slog.Logger
	metrics *Metrics
	clock   *Clock
	idGen   IDGenerator

	maxCells       int
	flushDelay     time.Duration
	syncChunkSize  int
	syncChunkDelay time.Duration
	syncTimeout    time.Duration

	mu        sync.Mutex
	counts    map[string]int // cell ID -> count
	pending   map[string]pendingWrite
	flushTask sched.Task
	loaded    bool
	seeded    bool // clock advanced past the whole cache
	syncDone  chan struct{}

	bg sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithScheduler sets the scheduler used for the flush debounce, sync pacing,
// and the load timeout. Default: sched.Real.
func WithScheduler(s sched.Scheduler) Option {
	return func(sess *Session) { sess.sched = s }
}

// WithHook sets the visual feedback hook.
func WithHook(h VisualHook) Option {
	return func(s *Session) { s.hook = h }
}

// WithColor sets the count-to-color mapping handed to the hook.
func WithColor(f ColorFunc) Option {
	return func(s *Session) { s.color = f }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithIDGenerator sets the session ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) { s.idGen = g }
}

// WithMaxCells bounds the number of cells kept in the local cache.
func WithMaxCells(n int) Option {
	return func(s *Session) { s.maxCells = n }
}

// WithFlushDelay sets the quiet period before pending writes are flushed.
func WithFlushDelay(d time.Duration) Option {
	return func(s *Session) { s.flushDelay = d }
}

// WithSyncChunks sets how many remote reads run in parallel during
// reconciliation and the pause between chunks.
func WithSyncChunks(size int, delay time.Duration) Option {
	return func(s *Session) {
		s.syncChunkSize = size
		s.syncChunkDelay = delay
	}
}

// WithSyncTimeout bounds how long LoadSession waits for the remote sync.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Session) { s.syncTimeout = d }
}

// New creates a Session over the given local cache and remote service.
func New(local LocalStore, rem Remote, opts ...Option) *Session {
	s := &Session{
		local:          local,
		remote:         rem,
		clock:          NewClock(),
		maxCells:       DefaultMaxCells,
		flushDelay:     DefaultFlushDelay,
		syncChunkSize:  DefaultSyncChunkSize,
		syncChunkDelay: DefaultSyncChunkDelay,
		syncTimeout:    DefaultSyncTimeout,
		counts:         make(map[string]int),
		pending:        make(map[string]pendingWrite),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sched == nil {
		s.sched = sched.Real{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.idGen == nil {
		s.idGen = UUIDv7Generator{}
	}
	if s.maxCells <= 0 {
		s.maxCells = DefaultMaxCells
	}
	if s.syncChunkSize <= 0 {
		s.syncChunkSize = DefaultSyncChunkSize
	}

	s.id = s.idGen.Generate()
	s.logger = s.logger.With("session", s.id)
	return s
}

// DiscardLogger returns a logger that drops everything. Handy for tests and
// for embedding a Session in quiet tools.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Count returns the in-memory count for c.
func (s *Session) Count(c cell.Cell) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[c.ID()]
}

// Counts returns a copy of the in-memory count map, keyed by cell ID.
func (s *Session) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// PendingWrites returns a copy of the records awaiting flush, keyed by cell ID.
func (s *Session) PendingWrites() map[string]record.ClickRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]record.ClickRecord, len(s.pending))
	for k, w := range s.pending {
		out[k] = w.rec
	}
	return out
}

// Sequence returns the current value of the sequence clock.
func (s *Session) Sequence() int64 {
	return s.clock.Current()
}

// Lifecycle handles a page visibility transition. Hidden and unload both push
// pending writes out through fire-and-forget delivery, since a backgrounded
// page may never run its debounce timer.
func (s *Session) Lifecycle(ev LifecycleEvent) int {
	switch ev {
	case EventHidden, EventUnload:
		n := s.ExitFlush()
		s.logger.Debug("lifecycle flush", "event", ev.String(), "sent", n)
		return n
	default:
		return 0
	}
}

// Wait blocks until background work started by the session (remote sync,
// remote deletes) has finished.
func (s *Session) Wait() {
	s.bg.Wait()
}

// Close stops the flush timer and waits for background work. Pending writes
// are left in place; call ExitFlush or Flush first to deliver them.
func (s *Session) Close() {
	s.mu.Lock()
	if s.flushTask != nil {
		s.flushTask.Stop()
		s.flushTask = nil
	}
	s.mu.Unlock()
	s.bg.Wait()
}

// apply invokes the visual hook. A panicking hook is logged, never propagated:
// nothing may interrupt the click path.
func (s *Session) apply(c cell.Cell, count int, animate bool) {
	if s.hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("visual hook panicked", "cell", c.ID(), "panic", r)
		}
	}()
	s.hook(c, count, s.color, animate)
}

func (s *Session) nowMillis() int64 {
	return s.sched.Now().UnixMilli()
}

// goBackground runs f in a tracked goroutine.
func (s *Session) goBackground(f func()) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		f()
	}()
}
