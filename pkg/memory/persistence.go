package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Persistence stores documents across restarts.
type Persistence interface {
	Load() ([]Document, error)
	Save(docs []Document) error
}

// JSONFile persists documents to a single JSON file, written
// atomically via a temp file rename.
type JSONFile struct {
	mu   sync.Mutex
	path string
}

var _ Persistence = (*JSONFile)(nil)

// NewJSONFile creates a file-backed persistence at path, creating
// parent directories as needed.
func NewJSONFile(path string) (*JSONFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &JSONFile{path: path}, nil
}

// Load reads all persisted documents. A missing file is an empty store.
func (j *JSONFile) Load() ([]Document, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read memory file: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse memory file: %w", err)
	}
	return docs, nil
}

// Save writes the full document set.
func (j *JSONFile) Save(docs []Document) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}
