// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides transcript persistence for streamchat.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// KEYS
// =============================================================================

// Fixed keys under which chat state is persisted.
const (
	KeySelectedConversation = "selectedConversation"
	KeyConversationHistory  = "conversationHistory"
)

// =============================================================================
// KEY-VALUE INTERFACE
// =============================================================================

// KV is a durable string-keyed byte store.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases resources held by the store.
	Close() error
}

// Open opens the KV backend named by backend ("file" or "sqlite") in dir.
func Open(backend, dir string) (KV, error) {
	switch backend {
	case "", "file":
		return NewFileKV(dir)
	case "sqlite":
		return OpenSQLiteKV(filepath.Join(dir, "streamchat.db"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidKey is returned for keys that cannot be stored safely.
	ErrInvalidKey = &StoreError{Message: "invalid key"}

	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = &StoreError{Message: "unknown storage backend"}

	// ErrNotFound is returned when a conversation doesn't exist.
	ErrNotFound = &StoreError{Message: "conversation not found"}

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = &StoreError{Message: "store is closed"}
)

// StoreError represents a storage-related error.
// It can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
