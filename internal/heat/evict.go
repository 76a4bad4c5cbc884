package heat

import (
	"context"
	"sort"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/store"
)

// evict trims the local cache to maxCells, dropping the records with the
// lowest sequence numbers. Evicted cells are also removed from the count map
// and the pending queue, and a best-effort remote delete goes out for each.
//
// An evicted cell that is clicked again starts over from zero, and the
// remote copy is gone too.
func (s *Session) evict(ctx context.Context) int {
	s.mu.Lock()
	entries, err := s.local.List(ctx)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("eviction scan failed", "error", err)
		return 0
	}
	victims := oldestSurplus(entries, s.maxCells)
	if len(victims) == 0 {
		s.mu.Unlock()
		return 0
	}

	for _, e := range victims {
		if err := s.local.Delete(ctx, e.Key); err != nil {
			s.logger.Warn("local evict failed", "key", e.Key, "error", err)
		}
		if c, err := cell.FromStorageKey(e.Key); err == nil {
			delete(s.counts, c.ID())
			delete(s.pending, c.ID())
		}
	}
	pending := len(s.pending)
	s.mu.Unlock()

	s.metrics.Evictions.Add(float64(len(victims)))
	s.metrics.PendingWrites.Set(float64(pending))
	s.logger.Debug("evicted cells", "count", len(victims), "max", s.maxCells)

	if s.remote.Available() {
		bgCtx := context.WithoutCancel(ctx)
		for _, e := range victims {
			key := e.Key
			s.goBackground(func() { s.remote.Delete(bgCtx, key) })
		}
	}
	return len(victims)
}

// oldestSurplus returns the entries beyond the newest limit, oldest first.
// Ties on sequence break by key so the choice is deterministic.
func oldestSurplus(entries []store.Entry, limit int) []store.Entry {
	if len(entries) <= limit {
		return nil
	}
	sorted := make([]store.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Record.Sequence != sorted[j].Record.Sequence {
			return sorted[i].Record.Sequence < sorted[j].Record.Sequence
		}
		return sorted[i].Key < sorted[j].Key
	})
	return sorted[:len(sorted)-limit]
}
