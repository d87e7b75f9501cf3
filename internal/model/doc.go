// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations, their transcripts and the model
// catalogue a conversation can be bound to.
//
// # Key Types
//
//   - Conversation: a chat session with its transcript and generation settings
//   - Message: a single role/content pair
//   - OpenAIModel: catalogue entry (ID, name, length and token limits)
//   - Conversations: ordered collection keyed by conversation ID
//
// # Usage
//
// Values are copied, never shared. Every mutating helper returns a new value:
//
//	conv := model.NewConversation(model.DefaultSettings())
//	conv = conv.WithMessage(model.UserMessage("Hello!"))
//	history = history.Upsert(conv)
package model
