// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/streamchat/internal/util"
)

// FileKV stores each key as a JSON document in a directory.
// Writes are atomic and the directory is synced after each one, so a crash
// leaves either the old or the new value.
type FileKV struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// tempPrefix marks values being written. Leftovers from an interrupted
// write are removed when the store is opened.
const tempPrefix = ".kv-"

// NewFileKV creates a file store rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if _, err := util.RemoveStaleTemps(dir, tempPrefix); err != nil {
		return nil, fmt.Errorf("clean storage directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileKV) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *FileKV) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get implements KV.
func (s *FileKV) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

// Set implements KV.
func (s *FileKV) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := util.WriteFile(s.Path(key), value, util.WriteOptions{
		SyncDir:    true,
		TempPrefix: tempPrefix,
	}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete implements KV.
func (s *FileKV) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close implements KV.
func (s *FileKV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
