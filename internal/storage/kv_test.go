// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	fileKV, err := NewFileKV(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)
	sqliteKV, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		fileKV.Close()
		sqliteKV.Close()
	})
	return map[string]KV{"file": fileKV, "sqlite": sqliteKV}
}

func TestKV_GetSetDelete(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(KeyConversationHistory)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, kv.Set(KeyConversationHistory, []byte(`[1]`)))
			require.NoError(t, kv.Set(KeyConversationHistory, []byte(`[1,2]`)))

			v, ok, err := kv.Get(KeyConversationHistory)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, `[1,2]`, string(v))

			require.NoError(t, kv.Delete(KeyConversationHistory))
			require.NoError(t, kv.Delete(KeyConversationHistory))
			_, ok, _ = kv.Get(KeyConversationHistory)
			require.False(t, ok)
		})
	}
}

func TestKV_InvalidKey(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../escape", `a\b`, "a/b"} {
				err := kv.Set(key, []byte("x"))
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Set(%q) = %v, want ErrInvalidKey", key, err)
				}
			}
		})
	}
}

func TestFileKV_Closed(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Close())
	require.ErrorIs(t, kv.Set(KeySelectedConversation, []byte("{}")), ErrClosed)
}

func TestFileKV_RemovesInterruptedWrites(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, tempPrefix+"42")
	require.NoError(t, os.WriteFile(stale, []byte(`{"partial`), 0600))

	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	require.NoFileExists(t, stale)

	require.NoError(t, kv.Set(KeySelectedConversation, []byte(`{}`)))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, KeySelectedConversation+".json", entries[0].Name())
}

func TestSQLiteKV_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	kv, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(KeySelectedConversation, []byte(`{"id":"x"}`)))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()
	v, ok, err := kv.Get(KeySelectedConversation)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"id":"x"}`, string(v))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open("file", dir)
	require.NoError(t, err)
	require.IsType(t, &FileKV{}, kv)
	kv.Close()

	kv, err = Open("sqlite", dir)
	require.NoError(t, err)
	require.IsType(t, &SQLiteKV{}, kv)
	kv.Close()

	_, err = Open("etcd", dir)
	require.ErrorIs(t, err, ErrUnknownBackend)
}
