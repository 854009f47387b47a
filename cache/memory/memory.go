// Package memory implements cache.Store with an in-process map.
// Safe for concurrent access. Intended for single-instance engines,
// unit testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/tidelang/tide"
	"github.com/tidelang/tide/cache"
	"github.com/tidelang/tide/compiler"
)

var _ cache.Store = (*Store)(nil)

// Store is an in-memory compilation cache.
type Store struct {
	mu        sync.RWMutex
	artifacts map[cache.Key]*compiler.Artifact
	closed    bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{artifacts: make(map[cache.Key]*compiler.Artifact)}
}

// Get returns the artifact for key, or tide.ErrArtifactNotFound.
func (s *Store) Get(_ context.Context, key cache.Key) (*compiler.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tide.ErrCacheClosed
	}
	art, ok := s.artifacts[key]
	if !ok {
		return nil, tide.ErrArtifactNotFound
	}
	return art, nil
}

// Put stores the artifact under key, replacing any existing entry.
// Artifacts are immutable, so the store keeps the caller's pointer.
func (s *Store) Put(_ context.Context, key cache.Key, art *compiler.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tide.ErrCacheClosed
	}
	s.artifacts[key] = art
	return nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key cache.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tide.ErrCacheClosed
	}
	delete(s.artifacts, key)
	return nil
}

// Close drops all entries and rejects further use.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.artifacts = nil
	return nil
}

// Len reports the number of cached artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}
