// Package heat keeps the visitor heatmap: per-cell click counts that survive
// across sessions.
//
// A Session ties together the local cache (durable, synchronous, the record
// of truth for this profile) and the remote counter service (shared,
// eventually consistent, unreliable). The surrounding page talks to it through
// three calls:
//
//   - LoadSession hydrates counts from the local cache, then raises them to
//     any larger remote value. The caller waits at most SyncTimeout; the sync
//     itself keeps running in the background.
//   - RecordClick increments a cell, persists locally, and repaints
//     immediately. Remote writes are coalesced per cell and flushed after a
//     quiet period.
//   - Lifecycle reports page hide/unload so pending writes go out through a
//     fire-and-forget path.
//
// Counts only ever go up. Reconciliation takes the max of local and remote,
// which makes the merge idempotent and independent of arrival order.
//
// The local cache is bounded to MaxCells records. Activity order comes from a
// session-wide sequence clock, not wall time; the oldest records by sequence
// are evicted locally and remotely.
//
// Thread-safety: Session methods are safe for concurrent use. Local cache
// access happens under the session lock so local writes land in click order;
// remote I/O and the visual hook run outside it.
package heat
