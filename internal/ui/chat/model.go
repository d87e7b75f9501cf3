// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/streamchat/internal/autoscroll"
	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/offline"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/state"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/ui/markdown"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// DefaultRowHeight converts viewport rows into autoscroll units.
const DefaultRowHeight = 16

// emptyMessage is shown when the send key is pressed with no text.
const emptyMessage = "Please enter a message"

// =============================================================================
// MODEL
// =============================================================================

// Options configures a Model. Controller is required.
type Options struct {
	Controller *session.Controller
	Theme      *styles.Theme
	Autoscroll *autoscroll.Controller
	// Input replaces the default textarea input.
	Input InputRenderer
	// Markdown renders assistant messages; nil renders plain text.
	Markdown *markdown.Renderer
	Keys     *KeyMap
	// RowHeight is the number of scroll units per viewport row.
	RowHeight int
	Logger    zerolog.Logger
	// Context is the parent of every stream started by the view.
	Context context.Context
	// Offline shows the offline badge in the header.
	Offline bool
	// Clipboard writes copied text. Defaults to the system clipboard.
	Clipboard func(string) error
	// Check reports whether the backend is reachable. It runs once at startup.
	Check func(context.Context) error
}

// Model is the chat view.
type Model struct {
	ctl    *session.Controller
	theme  *styles.Theme
	scroll *autoscroll.Controller
	input  InputRenderer
	md     *markdown.Renderer
	keys   KeyMap
	log    zerolog.Logger
	ctx    context.Context
	now    func() time.Time
	badge  string
	copy   func(string) error
	check  func(context.Context) error

	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	state    state.State
	snapshot *stream.Snapshot
	sending  bool

	status    string
	statusErr bool

	width, height int
	rowHeight     int
	atBottom      bool
	scrollPending bool
	ready         bool
}

// New creates the chat view. It reads the controller's current state, so
// Bootstrap should run first.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	keys := DefaultKeyMap()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	scroll := opts.Autoscroll
	if scroll == nil {
		scroll = autoscroll.New(autoscroll.DefaultTolerance, autoscroll.DefaultInterval)
	}
	input := opts.Input
	if input == nil {
		input = NewTextareaInput(keys, theme)
	}
	rowHeight := opts.RowHeight
	if rowHeight <= 0 {
		rowHeight = DefaultRowHeight
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	h := help.New()
	h.Styles.ShortKey = theme.ShortcutKey
	h.Styles.ShortDesc = theme.ShortcutDesc
	h.Styles.FullKey = theme.ShortcutKey
	h.Styles.FullDesc = theme.ShortcutDesc

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = false

	m := Model{
		ctl:       opts.Controller,
		theme:     theme,
		scroll:    scroll,
		input:     input,
		md:        opts.Markdown,
		keys:      keys,
		log:       opts.Logger,
		ctx:       ctx,
		now:       time.Now,
		viewport:  vp,
		spinner:   sp,
		help:      h,
		rowHeight: rowHeight,
		atBottom:  true,
		badge:     offline.StatusBadge(opts.Offline),
		copy:      copyFn,
		check:     opts.Check,
	}
	if m.ctl != nil {
		m.state = m.ctl.Store().State()
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.input.Focus(), m.checkCmd())
}

// checkTimeout bounds the startup backend check.
const checkTimeout = 3 * time.Second

func (m Model) checkCmd() tea.Cmd {
	if m.check == nil {
		return nil
	}
	check, parent := m.check, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, checkTimeout)
		defer cancel()
		if err := check(ctx); err != nil {
			return statusMsg{text: err.Error(), isError: true}
		}
		return nil
	}
}

// Streaming reports whether the view is waiting on a stream.
func (m Model) Streaming() bool {
	return m.sending || m.state.MessageIsStreaming
}

// Status returns the status line text and whether it is an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseWheelUp:
			m.viewport.LineUp(3)
			m.afterUserScroll()
		case tea.MouseWheelDown:
			m.viewport.LineDown(3)
			m.afterUserScroll()
		}
		return m, nil

	case StateMsg:
		m.state = msg.State
		m.refresh()
		return m, nil

	case SnapshotMsg:
		s := msg.Snapshot
		m.snapshot = &s
		m.refresh()
		cmd := m.autoscroll()
		return m, cmd

	case scrollTickMsg:
		m.scrollPending = false
		cmd := m.autoscroll()
		return m, cmd

	case sendRequestMsg:
		return m.startSend(msg.content)

	case regenerateMsg:
		return m.startRegenerate()

	case stopMsg:
		if m.Streaming() {
			m.ctl.Stop()
			m.setStatus("Stopping...", false)
		}
		return m, nil

	case jumpMsg:
		m.scroll.JumpToBottom()
		m.viewport.GotoBottom()
		m.atBottom = true
		return m, nil

	case sendDoneMsg:
		return m.handleSendDone(msg)

	case conversationMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.snapshot = nil
		m.scroll.Reset()
		m.refresh()
		m.viewport.GotoBottom()
		m.atBottom = true
		m.setStatus("", false)
		return m, nil

	case HistoryChangedMsg:
		if m.Streaming() {
			return m, nil
		}
		return m, m.reloadHistoryCmd()

	case statusMsg:
		m.setStatus(msg.text, msg.isError)
		return m, nil

	case spinner.TickMsg:
		if !m.Streaming() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	cmd := m.input.Update(msg, m.Streaming(), m.callbacks())
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	const (
		headerHeight    = 1
		statusBarHeight = 1
	)
	m.input.SetWidth(m.width)
	m.help.Width = m.width

	vpHeight := m.height - headerHeight - statusBarHeight - m.input.Height()
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(vpHeight, 1)

	m.refresh()
	if m.scroll.Enabled() {
		m.viewport.GotoBottom()
	}
	m.atBottom = m.viewport.AtBottom()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if msg.String() == "ctrl+c" && m.Streaming() {
			m.ctl.Stop()
			m.setStatus("Stopping...", false)
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.NewConversation):
		if m.Streaming() {
			return m, nil
		}
		return m, m.newConversationCmd()

	case key.Matches(msg, m.keys.CycleConversation):
		if m.Streaming() {
			return m, nil
		}
		return m, m.cycleConversationCmd()

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLastAnswerCmd()

	case key.Matches(msg, m.keys.DeleteExchange):
		if m.Streaming() {
			return m, nil
		}
		return m, m.deleteLastExchangeCmd()

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.LineUp(1)
		m.afterUserScroll()
		return m, nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.LineDown(1)
		m.afterUserScroll()
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		m.afterUserScroll()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		m.afterUserScroll()
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		m.afterUserScroll()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		m.afterUserScroll()
		return m, nil
	}

	cmd := m.input.Update(msg, m.Streaming(), m.callbacks())
	return m, cmd
}

// callbacks returns the input callbacks for the current streaming state.
// They only emit messages; all state changes happen in Update.
func (m Model) callbacks() InputCallbacks {
	streaming := m.Streaming()
	return InputCallbacks{
		Send: func(content string) tea.Cmd {
			if streaming {
				return nil
			}
			if strings.TrimSpace(content) == "" {
				return func() tea.Msg { return statusMsg{text: emptyMessage, isError: true} }
			}
			return func() tea.Msg { return sendRequestMsg{content: content} }
		},
		ScrollDown: func() tea.Cmd {
			return func() tea.Msg { return jumpMsg{} }
		},
		Regenerate: func() tea.Cmd {
			return func() tea.Msg { return regenerateMsg{} }
		},
		Stop: func() tea.Cmd {
			return func() tea.Msg { return stopMsg{} }
		},
	}
}

// =============================================================================
// STREAMING
// =============================================================================

func (m Model) startSend(content string) (tea.Model, tea.Cmd) {
	if m.Streaming() {
		return m, nil
	}
	m.sending = true
	m.setStatus("", false)

	ctl, ctx := m.ctl, m.ctx
	send := func() tea.Msg {
		res, err := ctl.Send(ctx, model.UserMessage(content), 0)
		return sendDoneMsg{result: res, err: err}
	}
	return m, tea.Batch(send, m.spinner.Tick)
}

func (m Model) startRegenerate() (tea.Model, tea.Cmd) {
	if m.Streaming() {
		return m, nil
	}
	if m.state.CurrentMessage == nil {
		m.setStatus("Nothing to regenerate", false)
		return m, nil
	}
	m.sending = true
	m.setStatus("", false)

	ctl, ctx := m.ctl, m.ctx
	regen := func() tea.Msg {
		res, err := ctl.Regenerate(ctx)
		return sendDoneMsg{result: res, err: err}
	}
	return m, tea.Batch(regen, m.spinner.Tick)
}

func (m Model) handleSendDone(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	m.sending = false
	m.snapshot = nil

	switch {
	case errors.Is(msg.err, session.ErrStreaming):
	case errors.Is(msg.err, session.ErrThrottled):
		m.setStatus("Regenerate is throttled, try again in a moment", false)
	case msg.err != nil:
		m.log.Error().Err(msg.err).Msg("stream failed")
		m.setStatus(msg.err.Error(), true)
	case msg.result.Outcome == metrics.OutcomeCancelled:
		m.setStatus("Stopped", false)
	}

	m.refresh()
	cmd := m.autoscroll()
	return m, cmd
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (m Model) newConversationCmd() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		conv, err := ctl.NewConversation()
		return conversationMsg{conv: conv, err: err}
	}
}

// cycleConversationCmd selects the conversation after the selected one,
// wrapping around.
func (m Model) cycleConversationCmd() tea.Cmd {
	all := m.state.Conversations
	if len(all) == 0 {
		return nil
	}
	next := all[0]
	if sel := m.state.SelectedConversation; sel != nil {
		if i := all.Index(sel.ID); i >= 0 {
			next = all[(i+1)%len(all)]
		}
	}

	ctl := m.ctl
	return func() tea.Msg {
		err := ctl.SelectConversation(next)
		return conversationMsg{conv: next, err: err}
	}
}

func (m Model) reloadHistoryCmd() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		if err := ctl.ReloadHistory(); err != nil {
			return statusMsg{text: "reload history: " + err.Error(), isError: true}
		}
		return nil
	}
}

// deleteLastExchangeCmd removes the last user message and its reply.
func (m Model) deleteLastExchangeCmd() tea.Cmd {
	sel := m.state.SelectedConversation
	if sel == nil {
		return nil
	}
	idx := sel.LastUserIndex()
	if idx < 0 {
		return func() tea.Msg { return statusMsg{text: "Nothing to delete"} }
	}
	ctl := m.ctl
	return func() tea.Msg {
		conv, err := ctl.DeleteMessage(idx)
		return conversationMsg{conv: conv, err: err}
	}
}

// =============================================================================
// CLIPBOARD
// =============================================================================

// copyLastAnswerCmd copies the last assistant response to the clipboard.
func (m Model) copyLastAnswerCmd() tea.Cmd {
	sel := m.state.SelectedConversation
	if sel == nil {
		return func() tea.Msg { return statusMsg{text: "No conversation to copy from"} }
	}
	answer, ok := sel.LastAssistantMessage()
	if !ok {
		return func() tea.Msg { return statusMsg{text: "No response to copy"} }
	}
	write := m.copy
	return func() tea.Msg {
		if err := write(answer.Content); err != nil {
			return statusMsg{text: "Failed to copy: " + err.Error(), isError: true}
		}
		return statusMsg{text: "Copied response to clipboard (" + sizeInfo(len(answer.Content)) + ")"}
	}
}

func sizeInfo(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d chars", n)
	}
	return fmt.Sprintf("%.1fK chars", float64(n)/1000)
}

// =============================================================================
// SCROLLING
// =============================================================================

// afterUserScroll reports a user-driven viewport move to the autoscroll
// controller: the bottom sentinel first when its visibility changed, then
// the scroll position.
func (m *Model) afterUserScroll() {
	at := m.viewport.AtBottom()
	if at != m.atBottom {
		m.atBottom = at
		m.scroll.OnSentinel(at)
	}
	rh := m.rowHeight
	m.scroll.OnScroll(m.viewport.YOffset*rh, m.viewport.Height*rh, m.viewport.TotalLineCount()*rh)
}

// autoscroll follows new content when autoscroll is enabled. A scroll
// rejected by the rate limit is retried once after the returned delay.
func (m *Model) autoscroll() tea.Cmd {
	if !m.scroll.Enabled() {
		return nil
	}
	ok, retry := m.scroll.ShouldScroll(m.now())
	if ok {
		m.viewport.GotoBottom()
		m.atBottom = true
		return nil
	}
	if retry <= 0 || m.scrollPending {
		return nil
	}
	m.scrollPending = true
	return tea.Tick(retry, func(time.Time) tea.Msg { return scrollTickMsg{} })
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) setStatus(text string, isError bool) {
	m.status = text
	m.statusErr = isError
}

// transcript returns the messages to render and the index of the message
// still streaming, or -1.
func (m Model) transcript() ([]model.Message, int) {
	sel := m.state.SelectedConversation
	if m.snapshot != nil && (sel == nil || m.snapshot.Conversation.ID == sel.ID) {
		return m.snapshot.Messages(), m.snapshot.StreamingIndex()
	}
	if sel != nil {
		return sel.Messages, -1
	}
	return nil, -1
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	msgs, streamingIdx := m.transcript()
	m.viewport.SetContent(m.renderTranscript(msgs, streamingIdx))
}
