package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const storageVersion = 1

// State is the versioned blob a Store holds. Jobs stay raw so one
// malformed record cannot poison the rest of the set; record-level
// decoding happens in Load.
type State struct {
	Version int               `json:"version"`
	Jobs    []json.RawMessage `json:"jobs"`
}

// Store persists the scheduler's job set as a single blob.
type Store interface {
	// Load returns the last saved state, or (nil, nil) when nothing has
	// been saved yet.
	Load() (*State, error)
	Save(State) error
}

// FileStore keeps the state in one JSON file, written atomically via a
// temp file and rename.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store. An empty path disables
// persistence.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: strings.TrimSpace(path)}
}

func (f *FileStore) Load() (*State, error) {
	if f.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Version > storageVersion {
		return nil, fmt.Errorf("unsupported job store version %d", st.Version)
	}
	return &st, nil
}

func (f *FileStore) Save(st State) error {
	if f.path == "" {
		return nil
	}
	if st.Jobs == nil {
		st.Jobs = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
