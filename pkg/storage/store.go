package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when a file ID does not exist in the store
var ErrNotFound = errors.New("file not found")

// File identifies an uploaded object and the link it can be shared with
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
}

// FileStore is where generated slides and the master deck are kept
type FileStore interface {
	Upload(ctx context.Context, name string, data []byte) (File, error)
	Overwrite(ctx context.Context, id string, data []byte) (File, error)
	Download(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// ContentType guesses the MIME type from a file name
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// MemoryStore keeps files in process. Used by the CLI dry-run mode and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	names map[string]string
	seq   int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string][]byte),
		names: make(map[string]string),
	}
}

func (s *MemoryStore) Upload(ctx context.Context, name string, data []byte) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := fmt.Sprintf("mem-%d", s.seq)
	s.files[id] = append([]byte(nil), data...)
	s.names[id] = name
	return File{ID: id, Name: name, Link: "memory://" + id}, nil
}

func (s *MemoryStore) Overwrite(ctx context.Context, id string, data []byte) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return File{}, fmt.Errorf("failed to overwrite %s: %w", id, ErrNotFound)
	}
	s.files[id] = append([]byte(nil), data...)
	return File{ID: id, Name: s.names[id], Link: "memory://" + id}, nil
}

func (s *MemoryStore) Download(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("failed to download %s: %w", id, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("failed to delete %s: %w", id, ErrNotFound)
	}
	delete(s.files, id)
	delete(s.names, id)
	return nil
}

// Len returns the number of stored files
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
