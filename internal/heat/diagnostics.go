package heat

import "context"

// Diagnostics is the operator's view of a session.
type Diagnostics struct {
	SessionID     string `json:"session_id"`
	Available     bool   `json:"available"`
	Failures      int    `json:"failures"`
	PendingWrites int    `json:"pending_writes"`
	Sequence      int64  `json:"sequence"`
	Loaded        bool   `json:"loaded"`
	CachedCells   int    `json:"cached_cells"`
}

// Diagnostics returns a snapshot of availability, queue, and cache state.
func (s *Session) Diagnostics() Diagnostics {
	st := s.remote.Status()

	s.mu.Lock()
	d := Diagnostics{
		SessionID:     s.id,
		Available:     st.Available,
		Failures:      st.Failures,
		PendingWrites: len(s.pending),
		Sequence:      s.clock.Current(),
		Loaded:        s.loaded,
		CachedCells:   len(s.counts),
	}
	s.mu.Unlock()
	return d
}

// ForceFlush flushes pending writes now instead of waiting for the debounce.
func (s *Session) ForceFlush(ctx context.Context) FlushResult {
	return s.Flush(ctx)
}

// Probe tests connectivity, bypassing the availability breaker. A successful
// probe reopens the path for every other call.
func (s *Session) Probe(ctx context.Context) error {
	if err := s.remote.Probe(ctx); err != nil {
		s.logger.Info("connectivity probe failed", "error", err)
		return err
	}
	s.logger.Info("connectivity probe succeeded")
	return nil
}
