// Package cachetest provides an in-memory cache.Cache for tests.
package cachetest

import (
	"context"
	"sync"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache"
	"github.com/google/uuid"
)

// Memory ignores TTLs. Err, when set, is returned by every call.
type Memory struct {
	mu       sync.Mutex
	values   map[string][]byte
	statuses map[uuid.UUID]string
	counters map[string]int64

	Err error
}

func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string][]byte),
		statuses: make(map[uuid.UUID]string),
		counters: make(map[string]int64),
	}
}

var _ cache.Cache = (*Memory)(nil)

func (m *Memory) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) Ping(context.Context) error { return m.Err }

func (m *Memory) SetJobStatus(_ context.Context, jobUID uuid.UUID, status string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.statuses[jobUID] = status
	return nil
}

func (m *Memory) GetJobStatus(_ context.Context, jobUID uuid.UUID) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	s, ok := m.statuses[jobUID]
	return s, ok, nil
}

func (m *Memory) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.counters[key]++
	return m.counters[key], nil
}

// Keys returns how many plain values are held.
func (m *Memory) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
