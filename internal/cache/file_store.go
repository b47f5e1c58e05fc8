package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the processed ids as a flat JSON array of strings.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(_ context.Context) (*Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids, err := f.read()
	if err != nil {
		return nil, err
	}
	return NewSet(ids...), nil
}

// Commit merges ids into the file and rewrites it atomically.
func (f *FileStore) Commit(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.read()
	if err != nil {
		return err
	}
	set := NewSet(existing...)
	set.Add(ids...)

	blob, err := json.Marshal(set.IDs())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) read() ([]string, error) {
	blob, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(blob, &ids); err != nil {
		return nil, fmt.Errorf("read processed cache %s: %w", f.path, err)
	}
	return ids, nil
}
