// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "sync"

// =============================================================================
// CANCELLATION TOKEN
// =============================================================================

// Token is the stop signal for one response stream. The UI calls Request;
// the consumer checks IsRequested before every read. A read already in
// progress is allowed to finish and its chunk is kept. The owner of the
// stream calls Clear once the stream has finished, never on a timer.
//
// A nil *Token is valid: Request is a no-op and IsRequested is false.
type Token struct {
	mu        sync.Mutex
	requested bool
}

// NewToken creates a token in the not-requested state.
func NewToken() *Token {
	return &Token{}
}

// Request asks the stream to stop. Safe to call many times and from any goroutine.
func (t *Token) Request() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requested = true
}

// IsRequested reports whether Request has been called since the last Clear.
func (t *Token) IsRequested() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Clear resets the token after its stream finished.
func (t *Token) Clear() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requested = false
}
