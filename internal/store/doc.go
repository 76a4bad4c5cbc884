// Package store provides the SQLite-backed local cache of click records.
//
// It plays the role a browser's local storage plays for the page: a durable,
// per-profile key-value namespace. Each clicked cell has one row keyed
// "heat_{row}_{col}" whose value is a serialized record.ClickRecord, or, for
// rows written by older clients, a bare integer count. Reads accept both;
// writes always store the structured form.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Every failure is returned as a *StorageError so callers can log it and keep
// going with in-memory state.
package store
