// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides transcript persistence for streamchat.
//
// Chat state is kept under two fixed keys: selectedConversation and
// conversationHistory. Values are written only when a response stream
// finishes. On load both values are cleaned: missing fields get defaults one
// by one, a history that is not an array becomes empty, and a history record
// that cannot be decoded is dropped while its siblings are kept.
//
// # Backends
//
//   - FileKV: one JSON file per key, written atomically
//   - SQLiteKV: a single table in a pure-Go SQLite database
//
// # Usage
//
//	kv, err := storage.Open("file", dir)
//	store := storage.NewTranscriptStore(kv, storage.WithSettings(cfg.Settings()))
//	history, err := store.LoadHistory()
package storage
