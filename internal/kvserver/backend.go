// Package kvserver serves the remote counter service: a flat string
// key-value store over HTTP.
//
//	GET    /{key}  200 with the raw value, or an empty body if the key is unknown
//	PUT    /{key}  replace the value with the request body, 204
//	DELETE /{key}  remove the key, 204 whether or not it existed
//
// Values are opaque to the server. The heatmap stores serialized click
// records, but any string round-trips.
package kvserver

import (
	"context"
	"sync"
)

// Backend is where values live.
type Backend interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is a Backend over a map. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
