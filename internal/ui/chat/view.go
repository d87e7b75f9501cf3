// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/util"
)

const (
	jumpHint       = "v jump to bottom (C-g)"
	streamingGlyph = "▌"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	body := m.viewport.View()
	if m.scroll.ShowJump() {
		body = m.overlayJumpHint(body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.input.View(m.Streaming()),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := "New Conversation"
	meta := ""
	if sel := m.state.SelectedConversation; sel != nil {
		if sel.Name != "" {
			title = sel.Name
		}
		meta = sel.Model.Name
		if meta == "" {
			meta = sel.Model.ID
		}
	}
	if n := len(m.state.Conversations); n > 0 {
		meta = fmt.Sprintf("%s  %d chats", meta, n)
	}
	if m.badge != "" {
		meta = m.badge + "  " + meta
	}

	left := m.theme.HeaderTitle.Render(util.TruncateWidth(title, max(m.width/2, 10)))
	right := m.theme.HeaderMeta.Render(meta)
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return m.theme.Header.Width(max(m.width, 1)).Render(left + strings.Repeat(" ", gap) + right)
}

// overlayJumpHint replaces the last viewport line with the jump hint,
// right aligned.
func (m Model) overlayJumpHint(body string) string {
	lines := strings.Split(body, "\n")
	if len(lines) == 0 {
		return body
	}
	hint := m.theme.JumpHint.Render(jumpHint)
	pad := max(m.width-lipgloss.Width(hint), 0)
	lines[len(lines)-1] = strings.Repeat(" ", pad) + hint
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.status != "" && m.statusErr:
		left = m.theme.StatusError.Render(m.status)
	case m.Streaming():
		left = m.spinner.View() + " Streaming..."
		if m.status != "" {
			left = m.spinner.View() + " " + m.status
		}
	case m.status != "":
		left = m.status
	default:
		left = m.help.View(m.keys)
	}
	return m.theme.StatusBar.Width(max(m.width, 1)).Render(left)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders msgs for the viewport. streamingIdx marks the
// draft, which is rendered without caching and with a cursor.
func (m Model) renderTranscript(msgs []model.Message, streamingIdx int) string {
	if len(msgs) == 0 {
		return m.theme.EmptyState.Render("No messages yet. Type below and press Enter.")
	}

	width := max(m.viewport.Width-4, 20)
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width, i == streamingIdx))
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message, width int, streaming bool) string {
	label := m.theme.UserLabel.Render(msg.Role.DisplayName())
	bubble := m.theme.UserBubble
	if msg.IsAssistant() {
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		bubble = m.theme.AssistantBubble
	}

	var content string
	switch {
	case msg.IsAssistant() && m.md != nil && streaming:
		content = m.md.RenderDraft(msg.Content, width)
	case msg.IsAssistant() && m.md != nil:
		content = m.md.Render(msg.Content, width)
	default:
		content = lipgloss.NewStyle().Width(width).Render(msg.Content)
	}
	if streaming {
		content += m.theme.StreamingCursor.Render(streamingGlyph)
	}

	return label + "\n" + bubble.Render(content)
}
