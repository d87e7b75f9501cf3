// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives a chat: it owns the conversation operations the
// user triggers and wires the state store, the transcript store, the
// producer and the stream consumer together.
//
// # Key Types
//
//   - Controller: send, regenerate, edit, stop and conversation management
//   - Observer: receives a snapshot per streamed chunk
//
// # Usage
//
//	ctl := session.New(store, transcripts, prod, session.WithObserver(func(s stream.Snapshot) {
//	    program.Send(chat.SnapshotMsg{Snapshot: s})
//	}))
//	if err := ctl.Bootstrap(); err != nil {
//	    return err
//	}
//	res, err := ctl.Send(ctx, model.UserMessage("hello"), 0)
//
// Only one stream runs at a time. Send blocks until the stream ends; call
// Stop from another goroutine to end it early.
package session
