// Package blobstore provides the durable blob storage behind session
// archives: opaque bytes keyed by workshop id.
package blobstore

import (
	"context"
	"sync"
)

// Store is a durable key→bytes map. Get reports absence without error so
// callers can distinguish a miss from a storage failure.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore is an in-memory Store used in tests and ephemeral setups.
type MemoryStore struct {
	mux   sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
