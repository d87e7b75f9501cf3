// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// OpenAIModel is the model a conversation is bound to.
// The JSON shape matches what is stored in conversation history.
type OpenAIModel struct {
	// ID is the model identifier sent to the backend
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// MaxLength is the maximum prompt length in characters
	MaxLength int `json:"maxLength"`

	// TokenLimit is the context window size in tokens
	TokenLimit int `json:"tokenLimit"`
}

// IsZero reports whether the model is unset.
func (m OpenAIModel) IsZero() bool {
	return m.ID == ""
}

// String returns "Name (id)".
func (m OpenAIModel) String() string {
	if m.Name == "" {
		return m.ID
	}
	return fmt.Sprintf("%s (%s)", m.Name, m.ID)
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Known model identifiers.
const (
	GPT35    = "gpt-3.5-turbo"
	GPT4     = "gpt-4"
	GPT4_32K = "gpt-4-32k"
)

// Models is the registry of known models keyed by ID.
var Models = map[string]OpenAIModel{
	GPT35: {
		ID:         GPT35,
		Name:       "GPT-3.5",
		MaxLength:  12000,
		TokenLimit: 4000,
	},
	GPT4: {
		ID:         GPT4,
		Name:       "GPT-4",
		MaxLength:  24000,
		TokenLimit: 8000,
	},
	GPT4_32K: {
		ID:         GPT4_32K,
		Name:       "GPT-4-32K",
		MaxLength:  96000,
		TokenLimit: 32000,
	},
}

// LookupModel returns the registry entry for id.
// Unknown IDs (local or proxied models) get a generic entry sized like GPT-3.5
// so the transcript stays usable.
func LookupModel(id string) (OpenAIModel, bool) {
	id = strings.TrimSpace(id)
	if m, ok := Models[id]; ok {
		return m, true
	}
	base := Models[GPT35]
	return OpenAIModel{ID: id, Name: id, MaxLength: base.MaxLength, TokenLimit: base.TokenLimit}, false
}

// ListModels returns the registry sorted by token limit, smallest first.
func ListModels() []OpenAIModel {
	out := make([]OpenAIModel, 0, len(Models))
	for _, m := range Models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TokenLimit == out[j].TokenLimit {
			return out[i].ID < out[j].ID
		}
		return out[i].TokenLimit < out[j].TokenLimit
	})
	return out
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultSystemPrompt is the prompt new conversations start with.
	DefaultSystemPrompt = "You are ChatGPT, a large language model trained by OpenAI. Follow the user's instructions carefully. Respond using markdown."

	// DefaultTemperature is the sampling temperature new conversations start with.
	DefaultTemperature = 1.0

	// DefaultModelID is the model new conversations are bound to.
	DefaultModelID = GPT35
)

// Settings holds the defaults applied to new conversations and to stored
// records that are missing fields.
type Settings struct {
	Model       OpenAIModel
	Prompt      string
	Temperature float64
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Model:       Models[DefaultModelID],
		Prompt:      DefaultSystemPrompt,
		Temperature: DefaultTemperature,
	}
}

// SettingsFor builds Settings from configured values, falling back to the
// built-in defaults for anything empty.
func SettingsFor(modelID, prompt string, temperature float64) Settings {
	s := DefaultSettings()
	if modelID != "" {
		s.Model, _ = LookupModel(modelID)
	}
	if prompt != "" {
		s.Prompt = prompt
	}
	if temperature > 0 {
		s.Temperature = temperature
	}
	return s
}
