package store

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider 是进程内的 Provider 实现，用于未配置Redis的部署和测试。
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]map[string][]byte)}
}

func (p *MemoryProvider) ForUser(userID string) Store {
	return &memoryStore{p: p, userID: userID}
}

// Users 返回所有存在数据的访客ID
func (p *MemoryProvider) Users() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.data))
	for id := range p.data {
		ids = append(ids, id)
	}
	return ids
}

type memoryStore struct {
	p      *MemoryProvider
	userID string
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.userID == "" {
		return nil, false, ErrEmptyUserID
	}
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	v, ok := s.p.data[s.userID][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

func (s *memoryStore) SetMany(_ context.Context, values map[string][]byte) error {
	if s.userID == "" {
		return ErrEmptyUserID
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	bucket, ok := s.p.data[s.userID]
	if !ok {
		bucket = make(map[string][]byte)
		s.p.data[s.userID] = bucket
	}
	for k, v := range values {
		cp := make([]byte, len(v))
		copy(cp, v)
		bucket[k] = cp
	}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	if s.userID == "" {
		return ErrEmptyUserID
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	for _, k := range keys {
		delete(s.p.data[s.userID], k)
	}
	return nil
}

// Dump 返回所有访客数据的快照行，缺失的键以空值表示
func (p *MemoryProvider) Dump() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	now := time.Now()
	rows := make([]Snapshot, 0, len(p.data)*3)
	for id, bucket := range p.data {
		for _, key := range []string{KeyBookmarks, KeyUserStats, KeyBookFilter} {
			rows = append(rows, Snapshot{UserID: id, Key: key, Value: string(bucket[key]), UpdatedAt: now})
		}
	}
	return rows
}
