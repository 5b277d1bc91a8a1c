package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
)

// Store loads and saves the whole registry aggregate.
type Store interface {
	Load() (*models.ThreadRegistry, error)
	Save(reg *models.ThreadRegistry) error
	Path() string
}

// FileStore persists the registry as pretty-printed JSON. Saves write a
// sibling temp file and rename it over the target, so readers never see a
// partial file and a failed write leaves the previous version in place.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path (usually threads.json).
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the target file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the registry. A missing file yields an empty registry.
func (s *FileStore) Load() (*models.ThreadRegistry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewThreadRegistry(), nil
		}
		return nil, errors.Persistence(s.path, err)
	}
	reg := models.NewThreadRegistry()
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, errors.Persistence(s.path, fmt.Errorf("failed to parse registry: %w", err))
	}
	return reg, nil
}

// Save writes reg atomically.
func (s *FileStore) Save(reg *models.ThreadRegistry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return errors.Persistence(s.path, err)
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return errors.Persistence(s.path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
