package citycache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

// Store：持久化后端
// 约束：Replace 必须整体生效或整体失败；clear 为 true 时先清空再写入
type Store interface {
	Init(ctx context.Context) error
	All(ctx context.Context) ([]CityRecord, error)
	Replace(ctx context.Context, records []CityRecord, clear bool) error
	Clear(ctx context.Context) error
	Close() error
}

var errClosed = errors.New("citycache: store closed")

// MemoryStore：进程内后端，按序列化后的字节保存，行为与外部后端一致
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[int64][]byte
	closed bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Init(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if m.data == nil {
		m.data = make(map[int64][]byte)
	}
	return nil
}

func (m *MemoryStore) All(context.Context) ([]CityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}
	out := make([]CityRecord, 0, len(m.data))
	for _, b := range m.data {
		var r CityRecord
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryStore) Replace(_ context.Context, records []CityRecord, clear bool) error {
	encoded := make(map[int64][]byte, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		encoded[r.ObjectID] = b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if clear || m.data == nil {
		m.data = make(map[int64][]byte, len(encoded))
	}
	for k, v := range encoded {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.data = make(map[int64][]byte)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func sortByID(rs []CityRecord) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ObjectID < rs[j].ObjectID })
}
