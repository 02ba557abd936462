package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore keeps integration state in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore stores state at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewFileStoreInDir stores state as integrations.yaml under dir.
func NewFileStoreInDir(dir string) *FileStore {
	return NewFileStore(filepath.Join(dir, "integrations.yaml"))
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (*Integrations, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read integrations: %w", err)
	}
	var i Integrations
	if err := yaml.Unmarshal(data, &i); err != nil {
		return nil, fmt.Errorf("parse integrations %s: %w", s.path, err)
	}
	return &i, nil
}

// Save writes atomically via a temp file and rename.
func (s *FileStore) Save(_ context.Context, integrations *Integrations) error {
	if integrations == nil {
		return fmt.Errorf("integrations is nil")
	}
	data, err := yaml.Marshal(integrations)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
