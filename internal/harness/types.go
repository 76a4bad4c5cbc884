package harness

import "sort"

// Trace event types.
const (
	EventRepaint      = "repaint"
	EventRemotePut    = "remote_put"
	EventRemoteDelete = "remote_delete"
)

// TraceEvent is one observable effect of a flow step.
type TraceEvent struct {
	Step    int    `json:"step"` // 1-based flow step that caused the effect
	Type    string `json:"type"`
	Cell    string `json:"cell"`
	Count   int    `json:"count"`
	Animate bool   `json:"animate,omitempty"`
	Seq     int64  `json:"seq,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Trace contains the effects of every step, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addStep appends the effects of one step in a stable order.
func (r *Result) addStep(step int, events []TraceEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		return a.Seq < b.Seq
	})
	for _, e := range events {
		e.Step = step
		r.Trace = append(r.Trace, e)
	}
}
