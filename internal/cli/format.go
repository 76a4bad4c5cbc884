package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/dotheat/internal/cell"
)

func formatClick(w io.Writer, res ClickResult) {
	fmt.Fprintf(w, "Cell %s: %d\n", res.Cell, res.Count)
	switch {
	case res.Flush.Skipped:
		fmt.Fprintln(w, "Remote: unavailable, writes kept for exit delivery")
	case res.Flush.Requeued > 0:
		fmt.Fprintf(w, "Remote: %d sent, %d requeued\n", res.Flush.Sent, res.Flush.Requeued)
	default:
		fmt.Fprintf(w, "Remote: %d sent\n", res.Flush.Sent)
	}
	if res.Adopted > 0 {
		fmt.Fprintf(w, "Adopted from remote: %d cells\n", res.Adopted)
	}
}

// formatGrid prints counts as a table, one line per row. Zero cells print
// as a dot.
func formatGrid(w io.Writer, res ShowResult) {
	width := len(strconv.Itoa(max(res.Rows, res.Cols) - 1))
	for _, n := range res.Counts {
		width = max(width, len(strconv.Itoa(n)))
	}
	rowLabel := len(strconv.Itoa(res.Rows - 1))

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", rowLabel))
	for col := 0; col < res.Cols; col++ {
		fmt.Fprintf(&b, " %*d", width, col)
	}
	fmt.Fprintln(w, b.String())

	for row := 0; row < res.Rows; row++ {
		b.Reset()
		fmt.Fprintf(&b, "%*d", rowLabel, row)
		for col := 0; col < res.Cols; col++ {
			n := res.Counts[cell.ID(row, col)]
			if n == 0 {
				fmt.Fprintf(&b, " %*s", width, ".")
			} else {
				fmt.Fprintf(&b, " %*d", width, n)
			}
		}
		fmt.Fprintln(w, b.String())
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Restored: %d cells, adopted %d from remote\n", res.Load.Hydrated, res.Load.Adopted)
	switch {
	case res.Load.SyncSkipped:
		fmt.Fprintln(w, "Sync: skipped (remote unavailable)")
	case res.Load.SyncCompleted:
		fmt.Fprintln(w, "Sync: complete")
	default:
		fmt.Fprintln(w, "Sync: timed out, partial")
	}
}

func formatInspect(w io.Writer, res InspectResult) {
	d := res.Diagnostics
	remoteState := "available"
	if !d.Available {
		remoteState = "unavailable"
	}

	fmt.Fprintf(w, "Session:        %s\n", d.SessionID)
	fmt.Fprintf(w, "Remote:         %s (failures: %d)\n", remoteState, d.Failures)
	if res.Probe != "" {
		fmt.Fprintf(w, "Probe:          %s\n", res.Probe)
	}
	fmt.Fprintf(w, "Loaded:         %s\n", yesNo(d.Loaded))
	fmt.Fprintf(w, "Cached cells:   %d\n", d.CachedCells)
	fmt.Fprintf(w, "Pending writes: %d\n", d.PendingWrites)
	fmt.Fprintf(w, "Sequence:       %d\n", d.Sequence)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
