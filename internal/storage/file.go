package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore reads and writes the single drawing file the window is bound to.
type FileStore struct{}

func NewFileStore() *FileStore {
	return &FileStore{}
}

// Read returns the full contents of path.
func (s *FileStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drawing: %w", err)
	}
	return data, nil
}

// Write replaces path with data. The bytes go to a sibling temp file first
// so a crash mid-save never leaves a truncated drawing behind.
func (s *FileStore) Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create drawing dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write drawing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close drawing: %w", err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	os.Chmod(tmpName, mode)

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace drawing: %w", err)
	}
	return nil
}
