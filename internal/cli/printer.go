// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/streamchat/internal/stream"
)

// Printer writes streamed answers to a terminal as they arrive. Each
// snapshot carries the full draft, so only the unseen suffix is written.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	convID  string
	printed string
	done    bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Observe consumes one snapshot. It is a session.Observer.
func (p *Printer) Observe(s stream.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.Conversation.ID != p.convID || p.done {
		p.convID = s.Conversation.ID
		p.printed = ""
		p.done = false
	}

	if s.Draft != nil {
		text := s.Draft.Content
		if strings.HasPrefix(text, p.printed) {
			fmt.Fprint(p.w, text[len(p.printed):])
		} else {
			// replaced rather than extended, e.g. by an error message
			fmt.Fprint(p.w, "\n"+text)
		}
		p.printed = text
	}

	if !s.Streaming {
		if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
			fmt.Fprintln(p.w)
		}
		p.done = true
	}
}

// Text returns what has been printed for the current stream.
func (p *Printer) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}
