package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps posted ids in a human-readable JSON array, rewritten in
// full on every save
type FileStore struct {
	path      string
	retention int
}

// NewFileStore creates a file-backed store
func NewFileStore(path string, retention int) *FileStore {
	return &FileStore{path: path, retention: retention}
}

// Load reads the persisted id list. A missing file means no prior state and
// yields an empty list; an unreadable or unparseable file is ErrCorrupted.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorrupted, s.path, err)
	}
	return ids, nil
}

// Save appends id, trims to the retention limit and rewrites the whole file.
// The write goes through a temp file and rename so a crash never leaves a
// partially written list behind.
func (s *FileStore) Save(_ context.Context, id string, current []string) ([]string, error) {
	updated := trim(append(current, id), s.retention)

	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal ids: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return nil, fmt.Errorf("rename %s: %w", s.path, err)
	}
	return updated, nil
}
