// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "github.com/jeranaias/streamchat/internal/model"

// Snapshot is what the rendering layer sees while a response arrives:
// the committed transcript plus the in-progress assistant draft.
type Snapshot struct {
	Conversation model.Conversation
	// Draft is the assistant message being streamed, nil before the first chunk.
	Draft *model.Message
	// Streaming is false for the final snapshot of a stream.
	Streaming bool
}

// Messages returns the committed messages followed by the draft, if any.
func (s Snapshot) Messages() []model.Message {
	out := make([]model.Message, 0, len(s.Conversation.Messages)+1)
	out = append(out, s.Conversation.Messages...)
	if s.Draft != nil {
		out = append(out, *s.Draft)
	}
	return out
}

// StreamingIndex returns the index of the draft in Messages, or -1.
func (s Snapshot) StreamingIndex() int {
	if s.Draft == nil {
		return -1
	}
	return len(s.Conversation.Messages)
}
