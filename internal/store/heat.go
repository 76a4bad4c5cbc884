package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/record"
)

// Entry is one stored click record with the encoding it was read from.
type Entry struct {
	Key    string
	Kind   record.Kind
	Record record.ClickRecord
}

// Get reads the record under key. A missing row is not an error: it returns
// a KindEmpty result.
func (s *Store) Get(ctx context.Context, key string) (record.Decoded, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM heat_cache WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Decoded{Kind: record.KindEmpty}, nil
	}
	if err != nil {
		return record.Decoded{}, &StorageError{Op: "get", Key: key, Err: err}
	}
	return record.Decode(raw), nil
}

// Put stores rec under key in structured form, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, rec record.ClickRecord) error {
	return s.PutRaw(ctx, key, record.Encode(rec), rec.Timestamp)
}

// PutRaw stores a value verbatim. It exists for importing values written by
// other clients, legacy integers included.
func (s *Store) PutRaw(ctx context.Context, key, value string, updatedAt int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO heat_cache (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, updatedAt)
	if err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM heat_cache WHERE key = ?`, key); err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// List returns every click record, ordered by key. Rows whose value cannot be
// decoded are skipped.
//
// Returns an empty slice (not nil) when nothing is stored.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM heat_cache
		WHERE key LIKE ? ESCAPE '\'
		ORDER BY key COLLATE BINARY ASC
	`, `heat\_%`)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		if _, err := cell.FromStorageKey(key); err != nil {
			continue
		}
		d := record.Decode(raw)
		if !d.Present() {
			continue
		}
		entries = append(entries, Entry{Key: key, Kind: d.Kind, Record: d.Record})
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return entries, nil
}
