package cache

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

const (
	memoryShards             = 64
	memoryEvictionPercentage = 10
)

// MemoryStore keeps entries inside the process. It is meant for local runs
// with a single replica. Entries expire after the TTL the store was built
// with; the per-call TTL is ignored.
type MemoryStore struct {
	client *sturdyc.Client[[]byte]
}

func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		client: sturdyc.New[[]byte](capacity, memoryShards, ttl, memoryEvictionPercentage),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.client.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.client.Set(key, value)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.client.Delete(key)
	return nil
}
