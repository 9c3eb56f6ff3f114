package fdiff

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// MemoryStorage keeps files in a map. It is safe for concurrent use, which
// lets batches for different files run in parallel.
type MemoryStorage struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMemoryStorage copies files into a new storage.
func NewMemoryStorage(files map[string]string) *MemoryStorage {
	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[cleanKey(k)] = v
	}
	return &MemoryStorage{files: snapshot}
}

func cleanKey(path string) string {
	return filepath.Clean(strings.TrimSpace(path))
}

func (s *MemoryStorage) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[cleanKey(path)]
	return ok
}

func (s *MemoryStorage) Read(path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[cleanKey(path)]
	if !ok {
		return "", fmt.Errorf("failed to read %s: %w", path, fs.ErrNotExist)
	}
	return content, nil
}

func (s *MemoryStorage) Write(path, content string) error {
	key := cleanKey(path)
	if key == "" || key == "." {
		return fmt.Errorf("invalid path %q", path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = content
	return nil
}

// MkdirParents is a no-op: directories are implicit in map keys.
func (s *MemoryStorage) MkdirParents(string) error { return nil }

func (s *MemoryStorage) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, cleanKey(path))
	return nil
}

// Files returns a copy of the stored documents.
func (s *MemoryStorage) Files() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}
