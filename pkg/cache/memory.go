package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory 进程内有界缓存，条目各自过期
type Memory struct {
	lru *lru.Cache[string, memEntry]
	now func() time.Time
}

// NewMemory 最多保存 size 个 key；now 可为 nil
func NewMemory(size int, now func() time.Time) (*Memory, error) {
	if size <= 0 {
		size = 1024
	}
	if now == nil {
		now = time.Now
	}
	c, err := lru.New[string, memEntry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c, now: now}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.lru.Add(key, memEntry{payload: payload, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }
