package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
)

// Memory is an in-process Backend. Values are kept JSON-encoded so that it
// behaves like the SQLite backend, including for corrupt entries.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	plays []Play
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, decode(key, raw, dst)
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

// SetRaw stores raw bytes under key without encoding them.
func (m *Memory) SetRaw(key string, raw []byte) {
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}

// Remove implements Store.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// RecordPlay implements PlayLog.
func (m *Memory) RecordPlay(_ context.Context, p Play) error {
	m.mu.Lock()
	m.plays = append(m.plays, p)
	m.mu.Unlock()
	return nil
}

// RecentPlays implements PlayLog.
func (m *Memory) RecentPlays(_ context.Context, limit int) ([]Play, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Play, 0, min(limit, len(m.plays)))
	for i := len(m.plays) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.plays[i])
	}
	return result, nil
}

func decode(key string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s", key), ErrCorrupt)
	}
	return nil
}
