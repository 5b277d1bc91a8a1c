// Package workspaces reads the workspace list (workspaces.json) that maps
// workspace ids to directories.
package workspaces

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/grovetools/claudemon/errors"
	"github.com/grovetools/claudemon/pkg/models"
)

// Store is a read-only view of workspaces.json. The file is re-read
// whenever its modification time changes.
type Store struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	loaded  bool
	entries map[string]models.WorkspaceEntry
	order   []string
}

// NewStore returns a store for the file at path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: path, entries: map[string]models.WorkspaceEntry{}}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// List returns all workspaces in file order.
func (s *Store) List() ([]models.WorkspaceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}
	out := make([]models.WorkspaceEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out, nil
}

// Get returns one workspace or a NOT_FOUND error.
func (s *Store) Get(id string) (models.WorkspaceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return models.WorkspaceEntry{}, err
	}
	entry, ok := s.entries[id]
	if !ok {
		return models.WorkspaceEntry{}, errors.WorkspaceNotFound(id)
	}
	return entry, nil
}

// PathOf resolves a workspace id to its directory.
func (s *Store) PathOf(id string) (string, error) {
	entry, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return entry.Path, nil
}

// IDs returns the workspace ids, sorted.
func (s *Store) IDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}
	ids := append([]string(nil), s.order...)
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) refreshLocked() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = map[string]models.WorkspaceEntry{}
			s.order = nil
			s.loaded = false
			return nil
		}
		return errors.Persistence(s.path, err)
	}
	if s.loaded && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return errors.Persistence(s.path, err)
	}
	entries, err := parse(data)
	if err != nil {
		return errors.Persistence(s.path, err)
	}

	s.entries = make(map[string]models.WorkspaceEntry, len(entries))
	s.order = s.order[:0]
	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}
		if _, dup := s.entries[entry.ID]; !dup {
			s.order = append(s.order, entry.ID)
		}
		s.entries[entry.ID] = entry
	}
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.loaded = true
	return nil
}

// parse accepts either a JSON array of entries or an object keyed by id.
func parse(data []byte) ([]models.WorkspaceEntry, error) {
	var list []models.WorkspaceEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var byID map[string]models.WorkspaceEntry
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("failed to parse workspaces: %w", err)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	list = make([]models.WorkspaceEntry, 0, len(ids))
	for _, id := range ids {
		entry := byID[id]
		if entry.ID == "" {
			entry.ID = id
		}
		list = append(list, entry)
	}
	return list, nil
}
