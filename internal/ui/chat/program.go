// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/state"
	"github.com/jeranaias/streamchat/internal/stream"
)

// ProgramRef forwards messages to a tea.Program that may not exist yet.
// Messages sent before Set are dropped.
//
// Send blocks until the program's event loop accepts the message, so it
// must not be called from inside Update.
type ProgramRef struct {
	mu sync.RWMutex
	p  *tea.Program
}

// NewProgramRef creates an empty reference.
func NewProgramRef() *ProgramRef {
	return &ProgramRef{}
}

// Set attaches the program.
func (r *ProgramRef) Set(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

// Send delivers msg and reports whether a program was attached.
func (r *ProgramRef) Send(msg tea.Msg) bool {
	r.mu.RLock()
	p := r.p
	r.mu.RUnlock()
	if p == nil {
		return false
	}
	p.Send(msg)
	return true
}

// Snapshot returns an observer that forwards stream snapshots as SnapshotMsg.
func (r *ProgramRef) Snapshot() func(s stream.Snapshot) {
	return func(s stream.Snapshot) { r.Send(SnapshotMsg{Snapshot: s}) }
}

// State returns a store subscriber that forwards state as StateMsg.
func (r *ProgramRef) State() func(st state.State) {
	return func(st state.State) { r.Send(StateMsg{State: st}) }
}
