// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders message content for the terminal with glamour.
//
// A Renderer keeps one glamour.TermRenderer per wrap width and caches the
// rendered output of finished messages, so redrawing a long transcript on
// every streamed chunk only renders the draft.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWrap is used when a non-positive width is requested.
const DefaultWrap = 80

// maxCached bounds the output cache; it is dropped wholesale when full.
const maxCached = 512

type cacheKey struct {
	width   int
	content string
}

// Renderer renders markdown with a fixed glamour style.
type Renderer struct {
	style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
	cache     map[cacheKey]string
}

// New creates a renderer. style is "dark", "light" or "auto".
func New(style string) *Renderer {
	return &Renderer{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     make(map[cacheKey]string),
	}
}

// Render renders content wrapped at width. Content that glamour cannot
// render is returned unchanged.
func (r *Renderer) Render(content string, width int) string {
	if width <= 0 {
		width = DefaultWrap
	}
	if strings.TrimSpace(content) == "" {
		return content
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cacheKey{width: width, content: content}
	if out, ok := r.cache[key]; ok {
		return out
	}

	tr, err := r.rendererFor(width)
	if err != nil {
		return content
	}
	out, err := tr.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")

	if len(r.cache) >= maxCached {
		r.cache = make(map[cacheKey]string)
	}
	r.cache[key] = out
	return out
}

// RenderDraft renders content without caching it. Used for the message
// that is still streaming, whose content changes on every chunk.
func (r *Renderer) RenderDraft(content string, width int) string {
	if width <= 0 {
		width = DefaultWrap
	}
	if strings.TrimSpace(content) == "" {
		return content
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tr, err := r.rendererFor(width)
	if err != nil {
		return content
	}
	out, err := tr.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func (r *Renderer) rendererFor(width int) (*glamour.TermRenderer, error) {
	if tr, ok := r.renderers[width]; ok {
		return tr, nil
	}
	styleOpt := glamour.WithAutoStyle()
	switch r.style {
	case "dark", "light":
		styleOpt = glamour.WithStandardStyle(r.style)
	}
	tr, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	r.renderers[width] = tr
	return tr, nil
}
