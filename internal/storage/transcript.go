// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore persists the selected conversation and the conversation
// history under fixed keys, and cleans both on load.
type TranscriptStore struct {
	kv       KV
	settings model.Settings
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// Option configures a TranscriptStore.
type Option func(*TranscriptStore)

// WithSettings sets the defaults used to fill missing fields on load.
func WithSettings(s model.Settings) Option {
	return func(ts *TranscriptStore) { ts.settings = s }
}

// WithLogger sets the logger cleaning warnings go to.
func WithLogger(l zerolog.Logger) Option {
	return func(ts *TranscriptStore) { ts.log = l }
}

// WithMetrics records store operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ts *TranscriptStore) { ts.metrics = m }
}

// NewTranscriptStore wraps kv.
func NewTranscriptStore(kv KV, opts ...Option) *TranscriptStore {
	ts := &TranscriptStore{
		kv:       kv,
		settings: model.DefaultSettings(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// KV returns the underlying store.
func (s *TranscriptStore) KV() KV {
	return s.kv
}

// Settings returns the defaults used for cleaning.
func (s *TranscriptStore) Settings() model.Settings {
	return s.settings
}

// SaveConversation persists c as the selected conversation.
func (s *TranscriptStore) SaveConversation(c model.Conversation) error {
	err := s.put(KeySelectedConversation, c)
	s.metrics.RecordStoreOp("save_selected", err)
	return err
}

// SaveConversations persists the full conversation history.
func (s *TranscriptStore) SaveConversations(cs model.Conversations) error {
	if cs == nil {
		cs = model.Conversations{}
	}
	err := s.put(KeyConversationHistory, cs)
	s.metrics.RecordStoreOp("save_history", err)
	return err
}

// LoadSelected returns the stored selected conversation. ok is false when
// nothing is stored or the stored value cannot be cleaned.
func (s *TranscriptStore) LoadSelected() (c model.Conversation, ok bool, err error) {
	raw, found, err := s.kv.Get(KeySelectedConversation)
	s.metrics.RecordStoreOp("load_selected", err)
	if err != nil || !found {
		return model.Conversation{}, false, err
	}

	c, err = CleanConversation(raw, s.settings)
	if err != nil {
		s.log.Warn().Err(err).Str("key", KeySelectedConversation).Msg("discarding corrupt selected conversation")
		return model.Conversation{}, false, nil
	}
	return c, true, nil
}

// LoadHistory returns the stored conversation history, cleaned. A missing
// key yields an empty history.
func (s *TranscriptStore) LoadHistory() (model.Conversations, error) {
	raw, found, err := s.kv.Get(KeyConversationHistory)
	s.metrics.RecordStoreOp("load_history", err)
	if err != nil {
		return nil, err
	}
	if !found {
		return model.Conversations{}, nil
	}

	history, report := CleanHistory(raw, s.settings)
	if report.Discarded != nil {
		s.log.Warn().Err(report.Discarded).Msg("history is not an array, returning an empty history")
	}
	for _, skipErr := range report.Skipped {
		s.log.Warn().Err(skipErr).Msg("error while cleaning conversation history, removing record")
	}
	s.metrics.RecordSkipped(len(report.Skipped))
	return history, nil
}

// Find returns the stored conversation with the given ID.
func (s *TranscriptStore) Find(id string) (model.Conversation, error) {
	history, err := s.LoadHistory()
	if err != nil {
		return model.Conversation{}, err
	}
	c, ok := history.Find(id)
	if !ok {
		if sel, found, _ := s.LoadSelected(); found && sel.ID == id {
			return sel, nil
		}
		return model.Conversation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Clear removes both keys.
func (s *TranscriptStore) Clear() error {
	if err := s.kv.Delete(KeySelectedConversation); err != nil {
		return err
	}
	return s.kv.Delete(KeyConversationHistory)
}

// Close closes the underlying store.
func (s *TranscriptStore) Close() error {
	return s.kv.Close()
}

func (s *TranscriptStore) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(key, data); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("persist failed")
		return err
	}
	return nil
}
