package heat

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/record"
)

// LoadReport describes what LoadSession did by the time it returned.
type LoadReport struct {
	// Skipped is set when the session was already loaded.
	Skipped bool `json:"skipped"`

	// Hydrated is the number of grid cells restored from the local cache.
	Hydrated int `json:"hydrated"`

	// SyncSkipped is set when the remote service was unavailable at start.
	SyncSkipped bool `json:"sync_skipped"`

	// SyncCompleted is set when the remote sync finished before the timeout.
	SyncCompleted bool `json:"sync_completed"`

	// Adopted is the number of cells raised to a remote count so far. When
	// the sync timed out this may still grow in the background.
	Adopted int `json:"adopted"`
}

// Merge is the reconciliation rule: the larger observation wins. It is
// commutative and idempotent, so remote reads may land in any order and any
// number of times.
func Merge(local, remote int) int {
	return max(local, remote)
}

func newRecord(count int, seq, ts int64) record.ClickRecord {
	return record.ClickRecord{Count: count, Sequence: seq, Timestamp: ts}
}

// LoadSession restores the heatmap for grid. It runs once per session; later
// calls return a report with Skipped set.
//
// Local hydration is synchronous and repaints without animation. The remote
// sync then reads only the cells that had a local record, in chunks of
// parallel requests, and adopts any larger remote count. LoadSession waits
// for the sync at most SyncTimeout; past that it returns and the sync keeps
// going. Cancelling ctx stops the wait, not the sync.
func (s *Session) LoadSession(ctx context.Context, grid cell.Grid) (LoadReport, error) {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return LoadReport{Skipped: true}, nil
	}
	s.loaded = true

	entries, err := s.local.List(ctx)
	if err != nil {
		s.logger.Warn("local cache unreadable, starting empty", "error", err)
		entries = nil
	}
	cached := make(map[string]record.ClickRecord, len(entries))
	for _, e := range entries {
		cached[e.Key] = e.Record
		s.clock.AdvanceTo(e.Record.Sequence)
	}

	type hydrated struct {
		cell  cell.Cell
		count int
	}
	var restored []hydrated
	for _, c := range grid {
		rec, ok := cached[c.StorageKey()]
		if !ok {
			continue
		}
		id := c.ID()
		count := Merge(s.counts[id], rec.Count)
		s.counts[id] = count
		restored = append(restored, hydrated{cell: c, count: count})
	}
	s.mu.Unlock()

	for _, h := range restored {
		s.apply(h.cell, h.count, false)
	}
	report := LoadReport{Hydrated: len(restored)}
	s.logger.Info("local heatmap restored", "cells", len(restored), "sequence", s.clock.Current())

	if !s.remote.Available() {
		report.SyncSkipped = true
		s.logger.Info("remote sync skipped, service unavailable")
		return report, nil
	}
	if len(restored) == 0 {
		report.SyncCompleted = true
		return report, nil
	}

	candidates := make([]cell.Cell, len(restored))
	for i, h := range restored {
		candidates[i] = h.cell
	}

	var adopted atomic.Int32
	done := make(chan struct{})
	s.mu.Lock()
	s.syncDone = done
	s.mu.Unlock()

	syncCtx := context.WithoutCancel(ctx)
	s.goBackground(func() {
		defer close(done)
		s.syncRemote(syncCtx, candidates, &adopted)
	})

	timedOut := make(chan struct{})
	timer := s.sched.AfterFunc(s.syncTimeout, func() { close(timedOut) })
	defer timer.Stop()

	select {
	case <-done:
		report.SyncCompleted = true
	case <-timedOut:
		s.logger.Info("remote sync still running, not waiting further", "timeout", s.syncTimeout)
	case <-ctx.Done():
		report.Adopted = int(adopted.Load())
		return report, ctx.Err()
	}
	report.Adopted = int(adopted.Load())
	return report, nil
}

// WaitSync blocks until the remote sync started by LoadSession finishes or
// ctx is done. It returns immediately if no sync was started.
func (s *Session) WaitSync(ctx context.Context) error {
	s.mu.Lock()
	done := s.syncDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// syncRemote reads cells chunk by chunk. A failed read only affects its own
// cell. If the breaker opens mid-sync the remaining chunks are dropped.
func (s *Session) syncRemote(ctx context.Context, cells []cell.Cell, adopted *atomic.Int32) {
	for start := 0; start < len(cells); start += s.syncChunkSize {
		if start > 0 {
			if err := s.sched.Sleep(ctx, s.syncChunkDelay); err != nil {
				return
			}
		}
		if !s.remote.Available() {
			s.logger.Info("remote sync stopped, service unavailable", "remaining", len(cells)-start)
			return
		}

		chunk := cells[start:min(start+s.syncChunkSize, len(cells))]
		var g errgroup.Group
		for _, c := range chunk {
			g.Go(func() error {
				n, err := s.remote.Get(ctx, c.StorageKey())
				if err != nil {
					s.logger.Debug("remote read failed", "cell", c.ID(), "error", err)
					return nil
				}
				if s.Adopt(ctx, c, n) {
					adopted.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	s.logger.Debug("remote sync finished", "cells", len(cells), "adopted", adopted.Load())
}

// Adopt merges a remote observation for c. If remote exceeds the local count
// the cell takes the remote value with a fresh sequence number, is persisted
// locally, and repaints with animation. It reports whether anything changed.
//
// Cells evicted since hydration are not resurrected.
func (s *Session) Adopt(ctx context.Context, c cell.Cell, remote int) bool {
	id := c.ID()

	s.mu.Lock()
	local, known := s.counts[id]
	if !known {
		s.mu.Unlock()
		return false
	}
	merged := Merge(local, remote)
	if merged == local {
		s.mu.Unlock()
		return false
	}
	rec := newRecord(merged, s.clock.Next(), s.nowMillis())
	s.counts[id] = merged
	if err := s.local.Put(ctx, c.StorageKey(), rec); err != nil {
		s.logger.Warn("local write failed during sync", "key", c.StorageKey(), "error", err)
	}
	s.mu.Unlock()

	s.metrics.Adoptions.Inc()
	s.apply(c, merged, true)
	return true
}
