// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"time"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is a chat message in Ollama's wire format.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is the request body for /api/chat.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options contains model parameters for inference.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"` // 0.0-2.0
	NumCtx      int     `json:"num_ctx,omitempty"`     // context window size
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatChunk is one NDJSON line of a streaming /api/chat response.
type ChatChunk struct {
	Model      string  `json:"model"`
	Message    Message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason,omitempty"`
	Error      string  `json:"error,omitempty"`

	EvalCount    int   `json:"eval_count,omitempty"`
	EvalDuration int64 `json:"eval_duration,omitempty"` // nanoseconds
}

// TokensPerSecond returns the generation speed reported on the final chunk.
func (c ChatChunk) TokensPerSecond() float64 {
	if c.EvalDuration <= 0 {
		return 0
	}
	return float64(c.EvalCount) / time.Duration(c.EvalDuration).Seconds()
}

// ModelInfo describes an installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// ListModelsResponse is the response from /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// OllamaError is the error body Ollama returns on failure.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERSION
// =============================================================================

// BuildRequest converts a conversation into a streaming chat request. The
// conversation prompt becomes the leading system message.
func BuildRequest(modelName string, conv model.Conversation) ChatRequest {
	msgs := make([]Message, 0, len(conv.Messages)+1)
	if conv.Prompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: conv.Prompt})
	}
	for _, m := range conv.Messages {
		msgs = append(msgs, Message{Role: m.Role.String(), Content: m.Content})
	}

	req := ChatRequest{
		Model:    modelName,
		Messages: msgs,
		Stream:   true,
	}
	if conv.Temperature > 0 || conv.Model.TokenLimit > 0 {
		req.Options = &Options{
			Temperature: conv.Temperature,
			NumCtx:      conv.Model.TokenLimit,
		}
	}
	return req
}
