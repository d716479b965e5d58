// Package memory implements an in-process file store with per-name guards.
package memory

import (
	"context"
	"sync"

	"filestorm/internal/store"
)

// entry holds one file record. The per-entry lock serializes mutation of a
// single name without blocking reads or writes on unrelated names.
type entry struct {
	mu   sync.RWMutex
	data []byte
}

// MemoryStore keeps all records in process memory.
//
// Locking discipline: the store-level mutex guards only the name map and the
// insertion-order index; the byte content of each record is guarded by its
// entry lock. Concurrent GETs on the same name proceed in parallel; an UPLOAD
// to that name excludes them for the duration of the single write.
//
// Content is copied on both Put and Get so callers never share a buffer with
// the store.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*entry
	order []string
}

func New() *MemoryStore {
	return &MemoryStore{files: make(map[string]*entry)}
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

func (s *MemoryStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return data, nil
}

func (s *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	owned := make([]byte, len(data))
	copy(owned, data)

	s.mu.Lock()
	e, ok := s.files[name]
	if !ok {
		// First insert fixes the name's position in the listing; an
		// overwrite keeps it.
		e = &entry{}
		s.files[name] = e
		s.order = append(s.order, name)
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.data = owned
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		return store.ErrNotFound
	}
	delete(s.files, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]*entry)
	s.order = nil
	return nil
}
