package blob

import (
	"context"
	"sync"

	"github.com/opennoisenet/noisenet/internal/model"
)

// MemoryStorage holds payloads in a mutex-guarded map. For development and
// tests; anything durable should run against S3Storage.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// Compile-time check that MemoryStorage implements Storage.
var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (s *MemoryStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Len reports the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
