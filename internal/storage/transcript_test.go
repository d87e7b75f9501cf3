// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/model"
)

func newTestStore(t *testing.T, opts ...Option) *TranscriptStore {
	t.Helper()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	s := NewTranscriptStore(kv, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTranscriptStore_SaveAndLoadSelected(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.LoadSelected()
	require.NoError(t, err)
	require.False(t, ok)

	c := model.NewConversation(model.DefaultSettings()).
		WithMessage(model.UserMessage("hi")).
		WithMessage(model.AssistantMessage("hello"))
	require.NoError(t, s.SaveConversation(c))

	got, ok, err := s.LoadSelected()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c.ID, got.ID)
	require.Equal(t, c.Messages, got.Messages)
	require.Equal(t, c.Model, got.Model)
}

func TestTranscriptStore_SaveAndLoadHistory(t *testing.T) {
	s := newTestStore(t)

	history, err := s.LoadHistory()
	require.NoError(t, err)
	require.NotNil(t, history)
	require.Empty(t, history)

	a := model.NewConversation(model.DefaultSettings())
	b := model.NewConversation(model.DefaultSettings())
	require.NoError(t, s.SaveConversations(model.Conversations{a, b}))

	history, err = s.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, a.ID, history[0].ID)
	require.Equal(t, b.ID, history[1].ID)
}

func TestTranscriptStore_NilHistoryStoredAsArray(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveConversations(nil))

	raw, ok, err := s.KV().Get(KeyConversationHistory)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", string(raw))
}

func TestTranscriptStore_CorruptValuesWarn(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	s := newTestStore(t, WithLogger(zerolog.New(&buf)), WithMetrics(m))

	require.NoError(t, s.KV().Set(KeySelectedConversation, []byte(`not json`)))
	require.NoError(t, s.KV().Set(KeyConversationHistory, []byte(`[{"id":"ok"}, 5]`)))

	_, ok, err := s.LoadSelected()
	require.NoError(t, err)
	require.False(t, ok)

	history, err := s.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "ok", history[0].ID)

	logs := buf.String()
	require.True(t, strings.Contains(logs, "discarding corrupt selected conversation"), logs)
	require.True(t, strings.Contains(logs, "removing record"), logs)
	require.Equal(t, 1.0, testutil.ToFloat64(m.StoreRecordsSkipped))
}

func TestTranscriptStore_HistoryObjectBecomesEmpty(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(t, WithLogger(zerolog.New(&buf)))
	require.NoError(t, s.KV().Set(KeyConversationHistory, []byte(`{"id":"x"}`)))

	history, err := s.LoadHistory()
	require.NoError(t, err)
	require.Empty(t, history)
	require.Contains(t, buf.String(), "history is not an array")
}

func TestTranscriptStore_CustomSettings(t *testing.T) {
	custom := model.SettingsFor(model.GPT4, "custom prompt", 0.3)
	s := newTestStore(t, WithSettings(custom))
	require.NoError(t, s.KV().Set(KeySelectedConversation, []byte(`{"id":"x"}`)))

	c, ok, err := s.LoadSelected()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.GPT4, c.Model.ID)
	require.Equal(t, "custom prompt", c.Prompt)
	require.Equal(t, 0.3, c.Temperature)
}

func TestTranscriptStore_FindAndClear(t *testing.T) {
	s := newTestStore(t)
	a := model.NewConversation(model.DefaultSettings())
	b := model.NewConversation(model.DefaultSettings())
	require.NoError(t, s.SaveConversations(model.Conversations{a}))
	require.NoError(t, s.SaveConversation(b))

	got, err := s.Find(a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	got, err = s.Find(b.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)

	_, err = s.Find("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Clear())
	_, ok, _ := s.LoadSelected()
	require.False(t, ok)
	history, _ := s.LoadHistory()
	require.Empty(t, history)
}

func TestTranscriptStore_SQLiteBackend(t *testing.T) {
	kv, err := Open("sqlite", t.TempDir())
	require.NoError(t, err)
	s := NewTranscriptStore(kv)
	defer s.Close()

	c := model.NewConversation(model.DefaultSettings()).WithMessage(model.UserMessage("persist me"))
	require.NoError(t, s.SaveConversation(c))
	require.NoError(t, s.SaveConversations(model.Conversations{c}))

	got, ok, err := s.LoadSelected()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persist me", got.Messages[0].Content)

	history, err := s.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
}
