package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/heat"
	"github.com/roach88/dotheat/internal/kvserver"
	"github.com/roach88/dotheat/internal/record"
	"github.com/roach88/dotheat/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [step %d] %s %s count=%d", ev.Step, ev.Type, ev.Cell, ev.Count)
			if ev.Seq != 0 {
				fmt.Fprintf(&buf, " seq=%d", ev.Seq)
			}
			if ev.Animate {
				buf.WriteString(" animate")
			}
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// AssertionContext is what assertions read final state from.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Remote  kvserver.Backend
	Session *heat.Session
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertCount:
		return assertCount(actx.Session, a)
	case AssertLocal:
		return assertLocal(actx.Ctx, actx.Store, a)
	case AssertRemote:
		return assertRemote(actx.Ctx, actx.Remote, a)
	case AssertPending:
		return assertNumber(AssertPending, a.Count, len(actx.Session.PendingWrites()))
	case AssertCachedCells:
		return assertNumber(AssertCachedCells, a.Count, actx.Session.Diagnostics().CachedCells)
	case AssertAvailable:
		return assertAvailable(actx.Session, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertCount(s *heat.Session, a Assertion) error {
	c, err := cell.Parse(a.Cell)
	if err != nil {
		return err
	}
	if got := s.Count(c); got != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("cell %s count %d", a.Cell, a.Count),
			Actual:   fmt.Sprintf("count %d", got),
		}
	}
	return nil
}

// assertLocal checks the cached record for a cell. Sequence is only compared
// when the assertion names one.
func assertLocal(ctx context.Context, st *store.Store, a Assertion) error {
	c, err := cell.Parse(a.Cell)
	if err != nil {
		return err
	}
	d, err := st.Get(ctx, c.StorageKey())
	if err != nil {
		return fmt.Errorf("read local %s: %w", a.Cell, err)
	}

	if a.Absent {
		if d.Present() {
			return &AssertionError{
				Type:     AssertLocal,
				Expected: fmt.Sprintf("no local record for %s", a.Cell),
				Actual:   fmt.Sprintf("%s record %s", d.Kind, describeRecord(d.Record)),
			}
		}
		return nil
	}

	if !d.Present() {
		return &AssertionError{
			Type:     AssertLocal,
			Expected: fmt.Sprintf("local record for %s", a.Cell),
			Actual:   "no record",
		}
	}
	if d.Record.Count != a.Count || (a.Sequence != nil && d.Record.Sequence != *a.Sequence) {
		want := fmt.Sprintf("count=%d", a.Count)
		if a.Sequence != nil {
			want += fmt.Sprintf(" seq=%d", *a.Sequence)
		}
		return &AssertionError{
			Type:     AssertLocal,
			Expected: fmt.Sprintf("local %s %s", a.Cell, want),
			Actual:   describeRecord(d.Record),
		}
	}
	return nil
}

func assertRemote(ctx context.Context, backend kvserver.Backend, a Assertion) error {
	c, err := cell.Parse(a.Cell)
	if err != nil {
		return err
	}
	v, ok, err := backend.Get(ctx, c.StorageKey())
	if err != nil {
		return fmt.Errorf("read remote %s: %w", a.Cell, err)
	}

	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertRemote,
				Expected: fmt.Sprintf("no remote value for %s", a.Cell),
				Actual:   fmt.Sprintf("value %q", v),
			}
		}
		return nil
	}
	if got := record.Count(v); !ok || got != a.Count {
		return &AssertionError{
			Type:     AssertRemote,
			Expected: fmt.Sprintf("remote %s count %d", a.Cell, a.Count),
			Actual:   fmt.Sprintf("present=%t count %d", ok, got),
		}
	}
	return nil
}

func assertAvailable(s *heat.Session, a Assertion) error {
	st := s.Diagnostics()
	if st.Available != *a.Available {
		return &AssertionError{
			Type:     AssertAvailable,
			Expected: fmt.Sprintf("available=%t", *a.Available),
			Actual:   fmt.Sprintf("available=%t failures=%d", st.Available, st.Failures),
		}
	}
	return nil
}

// assertTraceCount checks how many events of a type the trace holds,
// optionally restricted to one cell.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == a.Event && (a.Cell == "" || ev.Cell == a.Cell) {
			count++
		}
	}
	if count != a.Count {
		what := a.Event
		if a.Cell != "" {
			what += " on " + a.Cell
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertNumber(kind string, want, got int) error {
	if want != got {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func describeRecord(r record.ClickRecord) string {
	return fmt.Sprintf("count=%d seq=%d", r.Count, r.Sequence)
}
