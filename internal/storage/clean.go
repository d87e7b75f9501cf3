// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jeranaias/streamchat/internal/model"
)

// ErrHistoryNotArray is reported when the stored history is not a JSON array.
var ErrHistoryNotArray = errors.New("history is not an array")

// storedConversation mirrors model.Conversation with every field optional,
// so missing fields can be told apart from zero values.
type storedConversation struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Messages    []model.Message    `json:"messages"`
	Model       *model.OpenAIModel `json:"model"`
	Prompt      string             `json:"prompt"`
	Temperature float64            `json:"temperature"`
	FolderID    *string            `json:"folderId"`
}

// CleanReport describes what cleaning had to fix.
type CleanReport struct {
	// Discarded is set when the whole value had to be thrown away.
	Discarded error
	// Skipped lists one error per history record that was dropped.
	Skipped []error
}

// CleanConversation decodes a single stored conversation and fills every
// missing or empty field independently from s. It fails only when the record
// is not a JSON object or a field has the wrong type.
func CleanConversation(raw []byte, s model.Settings) (model.Conversation, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return model.Conversation{}, errors.New("conversation is not an object")
	}

	var sc storedConversation
	if err := json.Unmarshal(trimmed, &sc); err != nil {
		return model.Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}

	c := model.Conversation{
		ID:          sc.ID,
		Name:        sc.Name,
		Messages:    sc.Messages,
		Prompt:      sc.Prompt,
		Temperature: sc.Temperature,
		FolderID:    sc.FolderID,
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Name == "" {
		c.Name = model.NewConversationName
	}
	if sc.Model == nil || sc.Model.ID == "" {
		c.Model = s.Model
	} else {
		c.Model = *sc.Model
		if known, ok := model.Models[c.Model.ID]; ok {
			if c.Model.Name == "" {
				c.Model.Name = known.Name
			}
			if c.Model.MaxLength == 0 {
				c.Model.MaxLength = known.MaxLength
			}
			if c.Model.TokenLimit == 0 {
				c.Model.TokenLimit = known.TokenLimit
			}
		}
	}
	if c.Prompt == "" {
		c.Prompt = s.Prompt
	}
	if c.Temperature == 0 {
		c.Temperature = s.Temperature
	}
	if c.FolderID != nil && *c.FolderID == "" {
		c.FolderID = nil
	}
	if c.Messages == nil {
		c.Messages = []model.Message{}
	}
	return c, nil
}

// CleanHistory decodes stored history. A value that is not an array yields an
// empty history; each record is cleaned on its own and a record that cannot
// be cleaned is dropped without affecting its siblings.
func CleanHistory(raw []byte, s model.Settings) (model.Conversations, CleanReport) {
	var report CleanReport

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		report.Discarded = ErrHistoryNotArray
		return model.Conversations{}, report
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		report.Discarded = fmt.Errorf("%w: %v", ErrHistoryNotArray, err)
		return model.Conversations{}, report
	}

	out := make(model.Conversations, 0, len(records))
	for i, rec := range records {
		c, err := CleanConversation(rec, s)
		if err != nil {
			report.Skipped = append(report.Skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		out = append(out, c)
	}
	return out, report
}
