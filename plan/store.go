package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store is the persistence port for the task queue.
type Store interface {
	Load() ([]Task, error)
	Save(tasks []Task) error
	Exists() bool
}

// planDocument is the on-disk shape of a persisted plan.
type planDocument struct {
	Version int       `yaml:"version"`
	SavedAt time.Time `yaml:"saved_at"`
	Tasks   []Task    `yaml:"tasks"`
}

// FileStore persists the task queue as a YAML document at a fixed path.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether a persisted plan is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads all tasks from the plan file.
func (s *FileStore) Load() ([]Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	var doc planDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load plan: parse %s: %w", s.path, err)
	}
	return doc.Tasks, nil
}

// Save writes all tasks to the plan file, creating parent directories.
func (s *FileStore) Save(tasks []Task) error {
	doc := planDocument{Version: 1, SavedAt: time.Now().UTC(), Tasks: tasks}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}
