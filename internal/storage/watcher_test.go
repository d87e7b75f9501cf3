// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		path string
		key  string
		ok   bool
	}{
		{"/d/conversationHistory.json", KeyConversationHistory, true},
		{"/d/selectedConversation.json", KeySelectedConversation, true},
		{"/d/.tmp-12345", "", false},
		{"/d/notes.txt", "", false},
	}
	for _, tc := range tests {
		key, ok := keyFor(tc.path)
		if key != tc.key || ok != tc.ok {
			t.Errorf("keyFor(%q) = %q, %v; want %q, %v", tc.path, key, ok, tc.key, tc.ok)
		}
	}
}

func TestWatcher_ReportsExternalWrites(t *testing.T) {
	writer, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	changed := make(chan string, 8)
	w, err := NewWatcher(writer, 20*time.Millisecond, func(key string) { changed <- key }, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	// A burst of writes to one key is reported once.
	for i := 0; i < 3; i++ {
		require.NoError(t, writer.Set(KeyConversationHistory, []byte(`[]`)))
	}

	select {
	case key := <-changed:
		require.Equal(t, KeyConversationHistory, key)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}
