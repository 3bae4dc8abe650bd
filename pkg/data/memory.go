package data

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps every partition in one flat map keyed "<partition>/<key>".
// It backs degraded mode when the database cannot be opened and doubles as a
// test store.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string][]byte
	values map[string]string
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string][]byte),
		values: make(map[string]string),
	}
}

func flatKey(p Partition, key string) string {
	return string(p) + "/" + key
}

func (m *MemoryStore) Put(_ context.Context, p Partition, key string, value []byte) error {
	if !p.valid() {
		return invalidPartition(p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("put", nil)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.items[flatKey(p, key)] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, p Partition, key string) ([]byte, bool, error) {
	if !p.valid() {
		return nil, false, invalidPartition(p)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, unavailable("get", nil)
	}
	v, ok := m.items[flatKey(p, key)]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemoryStore) Keys(ctx context.Context, p Partition) ([]string, error) {
	entries, err := m.All(ctx, p)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

func (m *MemoryStore) All(_ context.Context, p Partition) ([]Entry, error) {
	if !p.valid() {
		return nil, invalidPartition(p)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("get all", nil)
	}
	prefix := string(p) + "/"
	var out []Entry
	for k, v := range m.items {
		if key, ok := strings.CutPrefix(k, prefix); ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			out = append(out, Entry{Key: key, Value: cp})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, p Partition, key string) error {
	if !p.valid() {
		return invalidPartition(p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("delete", nil)
	}
	delete(m.items, flatKey(p, key))
	return nil
}

func (m *MemoryStore) DeleteCascade(_ context.Context, chapterKey, imagePrefix string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, unavailable("delete cascade", nil)
	}
	ck := flatKey(ChaptersPartition, chapterKey)
	_, removed := m.items[ck]
	delete(m.items, ck)
	prefix := flatKey(ImagesPartition, imagePrefix)
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return removed, nil
}

func (m *MemoryStore) GetValue(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, unavailable("get value", nil)
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) SetValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("set value", nil)
	}
	m.values[key] = value
	return nil
}

// Close makes every later call fail with ErrStorageUnavailable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
