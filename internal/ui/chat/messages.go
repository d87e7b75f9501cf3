// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/state"
	"github.com/jeranaias/streamchat/internal/stream"
)

// =============================================================================
// EXTERNAL MESSAGES
// =============================================================================

// SnapshotMsg carries one published stream snapshot.
type SnapshotMsg struct {
	Snapshot stream.Snapshot
}

// StateMsg carries the reducer state after a dispatch.
type StateMsg struct {
	State state.State
}

// HistoryChangedMsg reports that stored history changed outside this process.
type HistoryChangedMsg struct {
	Key string
}

// =============================================================================
// INTERNAL MESSAGES
// =============================================================================

// sendRequestMsg asks the model to start a stream for content.
type sendRequestMsg struct {
	content string
}

type regenerateMsg struct{}

type jumpMsg struct{}

type stopMsg struct{}

// sendDoneMsg is returned by the send command when the stream has ended.
type sendDoneMsg struct {
	result stream.Result
	err    error
}

// scrollTickMsg retries a rate-limited autoscroll.
type scrollTickMsg struct{}

// statusMsg replaces the status line.
type statusMsg struct {
	text    string
	isError bool
}

// conversationMsg reports the result of a new/select command.
type conversationMsg struct {
	conv model.Conversation
	err  error
}
