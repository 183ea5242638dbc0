package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// In memory implementation of KV below

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = never
}

type MemoryKV struct {
	mutex   sync.Mutex
	entries map[string]memoryEntry

	TimeNow func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: map[string]memoryEntry{},
		TimeNow: time.Now,
	}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, found := m.entries[key]
	if !found {
		return nil, ErrNotFound
	}
	if m.expired(entry) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = m.TimeNow().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	keys := []string{}
	for key, entry := range m.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if m.expired(entry) {
			delete(m.entries, key)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKV) Close() error {
	return nil
}

func (m *MemoryKV) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && m.TimeNow().After(entry.expiresAt)
}
