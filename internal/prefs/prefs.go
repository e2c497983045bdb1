// Package prefs provides the local key-value storage used for client
// preferences such as display order and theme.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(key string) (string, bool, error)

	// Set stores value under key.
	Set(key, value string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string

	// GetErr and SetErr are returned when non-nil (failure injection).
	GetErr error
	SetErr error
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

// Get implements Store.
func (s *Memory) Get(key string) (string, bool, error) {
	if s.GetErr != nil {
		return "", false, s.GetErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

// Set implements Store.
func (s *Memory) Set(key, value string) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// File is a Store backed by a single JSON object file.
// Writes go to a temp file that is renamed over the original.
type File struct {
	mu     sync.Mutex
	path   string
	cache  map[string]string
	loaded bool
}

// NewFile creates a File store at path. The file is created on first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

// Get implements Store.
func (s *File) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return "", false, err
	}
	v, ok := s.cache[key]
	return v, ok, nil
}

// Set implements Store.
func (s *File) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}

	next := make(map[string]string, len(s.cache)+1)
	for k, v := range s.cache {
		next[k] = v
	}
	next[key] = value
	if err := s.write(next); err != nil {
		return err
	}
	s.cache = next
	return nil
}

func (s *File) load() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.cache = make(map[string]string)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read prefs: %w", err)
	}
	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("unmarshal prefs: %w", err)
	}
	s.cache = m
	s.loaded = true
	return nil
}

func (s *File) write(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write prefs tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename prefs: %w", err)
	}
	return nil
}
