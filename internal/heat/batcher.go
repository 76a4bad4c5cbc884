package heat

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/dotheat/internal/cell"
)

// FlushResult summarizes one flush pass.
type FlushResult struct {
	// Sent is the number of writes the remote service accepted.
	Sent int `json:"sent"`

	// Requeued is the number of writes that failed and went back into the
	// pending map.
	Requeued int `json:"requeued"`

	// Skipped is set when the breaker was open and nothing was attempted.
	Skipped bool `json:"skipped"`
}

// RecordClick increments c, persists the new record locally, repaints, and
// queues the record for the next flush. It returns the new count.
//
// It never fails: a local storage error is logged and the count lives on in
// memory; remote delivery happens later.
func (s *Session) RecordClick(ctx context.Context, c cell.Cell) int {
	id := c.ID()
	key := c.StorageKey()

	s.mu.Lock()
	current, known := s.counts[id]
	if !known {
		// A click that beats LoadSession still continues from the cache.
		s.seedClockLocked(ctx)
		if d, err := s.local.Get(ctx, key); err != nil {
			s.logger.Warn("local read failed", "key", key, "error", err)
		} else if d.Present() {
			current = d.Record.Count
			s.clock.AdvanceTo(d.Record.Sequence)
		}
	}

	count := current + 1
	rec := newRecord(count, s.clock.Next(), s.nowMillis())
	s.counts[id] = count
	if err := s.local.Put(ctx, key, rec); err != nil {
		s.logger.Warn("local write failed, keeping count in memory", "key", key, "error", err)
	}

	s.pending[id] = pendingWrite{cell: c, rec: rec}
	s.restartFlushTimerLocked()
	pending := len(s.pending)
	s.mu.Unlock()

	s.metrics.Clicks.Inc()
	s.metrics.PendingWrites.Set(float64(pending))
	s.apply(c, count, true)

	s.evict(ctx)
	return count
}

// seedClockLocked moves the sequence clock past every cached record, once,
// for clicks that arrive before LoadSession. A click never takes a sequence at
// or below a cached record. Caller holds s.mu.
func (s *Session) seedClockLocked(ctx context.Context) {
	if s.loaded || s.seeded {
		return
	}
	entries, err := s.local.List(ctx)
	if err != nil {
		s.logger.Warn("local cache unreadable, sequence not seeded", "error", err)
		return
	}
	for _, e := range entries {
		s.clock.AdvanceTo(e.Record.Sequence)
	}
	s.seeded = true
}

// restartFlushTimerLocked (re)arms the debounce. Caller holds s.mu.
func (s *Session) restartFlushTimerLocked() {
	if s.flushTask != nil {
		s.flushTask.Stop()
	}
	s.flushTask = s.sched.AfterFunc(s.flushDelay, func() {
		s.Flush(context.Background())
	})
}

// Flush sends every pending write to the remote service in parallel. Writes
// that fail go back into the pending map for the next flush unless a newer
// write for the same cell arrived in the meantime. While the breaker is open
// Flush attempts nothing and leaves the queue intact.
func (s *Session) Flush(ctx context.Context) FlushResult {
	if !s.remote.Available() {
		s.logger.Debug("flush skipped, remote unavailable")
		return FlushResult{Skipped: true}
	}

	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]pendingWrite)
	if s.flushTask != nil {
		s.flushTask.Stop()
		s.flushTask = nil
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return FlushResult{}
	}

	var (
		mu     sync.Mutex
		failed []pendingWrite
		g      errgroup.Group
	)
	for _, w := range batch {
		g.Go(func() error {
			if err := s.remote.Put(ctx, w.cell.StorageKey(), w.rec); err != nil {
				s.logger.Debug("remote write failed, requeueing", "cell", w.cell.ID(), "error", err)
				mu.Lock()
				failed = append(failed, w)
				mu.Unlock()
			}
			// Failures are isolated per write.
			return nil
		})
	}
	_ = g.Wait()

	requeued := s.requeue(failed)
	res := FlushResult{Sent: len(batch) - len(failed), Requeued: requeued}

	s.metrics.Flushes.Inc()
	s.metrics.FlushedWrites.Add(float64(res.Sent))
	s.metrics.FailedWrites.Add(float64(len(failed)))
	s.logger.Debug("flush complete", "sent", res.Sent, "requeued", res.Requeued)
	return res
}

// requeue puts failed writes back unless they were superseded or the cell was
// evicted during the flush.
func (s *Session) requeue(failed []pendingWrite) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, w := range failed {
		id := w.cell.ID()
		if _, live := s.counts[id]; !live {
			continue
		}
		if cur, ok := s.pending[id]; ok && cur.rec.Sequence >= w.rec.Sequence {
			continue
		}
		s.pending[id] = w
		n++
	}
	s.metrics.PendingWrites.Set(float64(len(s.pending)))
	return n
}

// ExitFlush hands every pending write to fire-and-forget delivery and clears
// the queue. It is the page-exit path: nothing waits for responses and
// nothing is requeued once handed off. While the breaker is open the queue is
// left alone, and writes refused mid-handoff go back into it. It returns the
// number of writes handed off.
func (s *Session) ExitFlush() int {
	if !s.remote.Available() {
		return 0
	}

	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]pendingWrite)
	if s.flushTask != nil {
		s.flushTask.Stop()
		s.flushTask = nil
	}
	s.mu.Unlock()

	var refused []pendingWrite
	for _, w := range batch {
		if !s.remote.Send(w.cell.StorageKey(), w.rec) {
			refused = append(refused, w)
		}
	}
	if len(refused) > 0 {
		// The breaker opened after the check above; keep those for a later flush.
		s.requeue(refused)
	} else {
		s.metrics.PendingWrites.Set(0)
	}
	sent := len(batch) - len(refused)
	s.metrics.Beacons.Add(float64(sent))
	return sent
}
