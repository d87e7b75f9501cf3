// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// InputCallbacks are the actions an input surface can trigger. Each returns
// a command for the chat model to run.
type InputCallbacks struct {
	Send       func(content string) tea.Cmd
	ScrollDown func() tea.Cmd
	Regenerate func() tea.Cmd
	Stop       func() tea.Cmd
}

// InputRenderer renders the input surface and turns key presses into
// callbacks. A custom renderer can be passed in Options.
type InputRenderer interface {
	// Update handles a message that the chat model did not consume.
	Update(msg tea.Msg, streaming bool, cb InputCallbacks) tea.Cmd
	// View renders the surface.
	View(streaming bool) string
	// SetWidth sets the available width in cells.
	SetWidth(width int)
	// Height returns the rendered height in rows.
	Height() int
	// Focus focuses the surface.
	Focus() tea.Cmd
}

// =============================================================================
// TEXTAREA INPUT
// =============================================================================

const inputRows = 3

// TextareaInput is the default InputRenderer, backed by a bubbles textarea.
type TextareaInput struct {
	ta    textarea.Model
	keys  KeyMap
	theme *styles.Theme
	width int
}

// NewTextareaInput creates the default input surface.
func NewTextareaInput(keys KeyMap, theme *styles.Theme) *TextareaInput {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputRows)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	return &TextareaInput{ta: ta, keys: keys, theme: theme}
}

// Value returns the text typed so far.
func (in *TextareaInput) Value() string {
	return in.ta.Value()
}

// SetValue replaces the typed text.
func (in *TextareaInput) SetValue(s string) {
	in.ta.SetValue(s)
}

// Update implements InputRenderer.
func (in *TextareaInput) Update(msg tea.Msg, streaming bool, cb InputCallbacks) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, in.keys.Submit):
			if streaming {
				return nil
			}
			content := in.ta.Value()
			cmd := cb.Send(content)
			if strings.TrimSpace(content) != "" {
				in.ta.Reset()
			}
			return cmd
		case key.Matches(k, in.keys.Stop):
			if cb.Stop == nil {
				return nil
			}
			return cb.Stop()
		case key.Matches(k, in.keys.Regenerate):
			if streaming {
				return nil
			}
			return cb.Regenerate()
		case key.Matches(k, in.keys.Jump):
			return cb.ScrollDown()
		}
	}

	var cmd tea.Cmd
	in.ta, cmd = in.ta.Update(msg)
	return cmd
}

// View implements InputRenderer.
func (in *TextareaInput) View(streaming bool) string {
	box := in.ta.View()
	if in.theme == nil {
		return box
	}
	hint := "Enter to send"
	if streaming {
		hint = "Esc to stop"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		in.theme.InputContainer.Width(max(in.width-2, 1)).Render(box),
		in.theme.InputHint.Render(hint),
	)
}

// SetWidth implements InputRenderer.
func (in *TextareaInput) SetWidth(width int) {
	in.width = width
	// border and padding of the container
	in.ta.SetWidth(max(width-6, 10))
}

// Height implements InputRenderer.
func (in *TextareaInput) Height() int {
	if in.theme == nil {
		return inputRows
	}
	// rounded border plus the hint line
	return inputRows + 3
}

// Focus implements InputRenderer.
func (in *TextareaInput) Focus() tea.Cmd {
	return in.ta.Focus()
}
