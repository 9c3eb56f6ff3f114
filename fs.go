package fdiff

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage is the file access the patcher needs. Paths are the filenames
// written in patch blocks.
type Storage interface {
	Exists(path string) bool
	Read(path string) (string, error)
	Write(path, content string) error
	MkdirParents(path string) error
}

// Remover is implemented by storages that can delete files, which undo
// needs for files a run created.
type Remover interface {
	Remove(path string) error
}

func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

type PathResolver struct {
	wd string
}

func NewPathResolver(wd string) (*PathResolver, error) {
	if wd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		wd = cwd
	}
	abs, err := filepath.Abs(wd)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory %q: %w", wd, err)
	}
	return &PathResolver{wd: abs}, nil
}

func (r *PathResolver) Resolve(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		return filepath.Clean(relativePath)
	}
	return filepath.Join(r.wd, relativePath)
}

// Rel returns path relative to the working directory when possible.
func (r *PathResolver) Rel(path string) string {
	if rel, err := filepath.Rel(r.wd, path); err == nil {
		return rel
	}
	return path
}

// OSStorage reads and writes files on disk relative to a working directory.
type OSStorage struct {
	resolver *PathResolver
}

func NewOSStorage(resolver *PathResolver) *OSStorage {
	return &OSStorage{resolver: resolver}
}

func (s *OSStorage) Exists(path string) bool {
	_, err := os.Stat(s.resolver.Resolve(path))
	return err == nil
}

func (s *OSStorage) Read(path string) (string, error) {
	abs := s.resolver.Resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Write replaces the file content, keeping the permissions of an existing
// file.
func (s *OSStorage) Write(path, content string) error {
	abs := s.resolver.Resolve(path)
	perm := fs.FileMode(0644)
	if info, err := os.Stat(abs); err == nil {
		perm = info.Mode() & fs.ModePerm
	}
	return os.WriteFile(abs, []byte(content), perm)
}

func (s *OSStorage) MkdirParents(path string) error {
	dir := filepath.Dir(s.resolver.Resolve(path))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory '%s': %w", dir, err)
	}
	return nil
}

func (s *OSStorage) Remove(path string) error {
	err := os.Remove(s.resolver.Resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func WriteBlob(dir string, hash string, content []byte) error {
	blobDir := filepath.Join(dir, BlobsDir)
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return err
	}

	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(blobDir, hash), b.Bytes(), 0644)
}

func ReadBlob(dir string, hash string) ([]byte, error) {
	if hash == "" {
		return []byte{}, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, BlobsDir, hash))
	if err != nil {
		return nil, err
	}

	if !isZlibCompressed(data) {
		return data, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	defer r.Close()

	return io.ReadAll(r)
}

func isZlibCompressed(data []byte) bool {
	return len(data) > 2 && data[0] == 0x78
}
