package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process StatusCache used when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, lectureID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[statusKey(lectureID)]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, statusKey(lectureID))
		return nil, false, nil
	}
	return append([]byte(nil), e.data...), true, nil
}

func (m *Memory) Set(_ context.Context, lectureID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[statusKey(lectureID)] = memoryEntry{
		data:      append([]byte(nil), data...),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, lectureID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, statusKey(lectureID))
	return nil
}
