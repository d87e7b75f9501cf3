// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/producer"
	"github.com/jeranaias/streamchat/internal/state"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/stream"
)

// =============================================================================
// HELPERS
// =============================================================================

// chunkReader returns each chunk from a separate Read call.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

func chunks(parts ...string) producer.Producer {
	return producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		return &chunkReader{chunks: append([]string(nil), parts...)}, nil
	})
}

type harness struct {
	ctl         *Controller
	store       *state.Store
	transcripts *storage.TranscriptStore

	mu        sync.Mutex
	snapshots []stream.Snapshot
}

func newHarness(t *testing.T, p producer.Producer, opts ...Option) *harness {
	t.Helper()
	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)
	ts := storage.NewTranscriptStore(kv)
	t.Cleanup(func() { ts.Close() })

	h := &harness{store: state.NewStore(state.Initial()), transcripts: ts}
	opts = append([]Option{WithObserver(func(s stream.Snapshot) {
		h.mu.Lock()
		h.snapshots = append(h.snapshots, s)
		h.mu.Unlock()
	})}, opts...)
	h.ctl = New(h.store, ts, p, opts...)
	require.NoError(t, h.ctl.Bootstrap())
	return h
}

func (h *harness) selected(t *testing.T) model.Conversation {
	t.Helper()
	sel := h.store.State().SelectedConversation
	require.NotNil(t, sel)
	return *sel
}

func (h *harness) stored(t *testing.T) (model.Conversation, model.Conversations) {
	t.Helper()
	sel, ok, err := h.transcripts.LoadSelected()
	require.NoError(t, err)
	require.True(t, ok)
	history, err := h.transcripts.LoadHistory()
	require.NoError(t, err)
	return sel, history
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

func TestBootstrap_Fresh(t *testing.T) {
	h := newHarness(t, chunks())
	sel := h.selected(t)

	assert.Equal(t, model.NewConversationName, sel.Name)
	assert.Empty(t, sel.Messages)
	assert.Equal(t, model.GPT35, sel.Model.ID)
	assert.Equal(t, model.DefaultSystemPrompt, sel.Prompt)
	assert.Equal(t, model.DefaultTemperature, sel.Temperature)
	assert.Nil(t, sel.FolderID)
	assert.Empty(t, h.store.State().Conversations)
}

func TestBootstrap_InheritsTemperatureAndRestores(t *testing.T) {
	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)
	ts := storage.NewTranscriptStore(kv)
	defer ts.Close()

	old := model.NewConversation(model.DefaultSettings())
	old.Temperature = 0.3
	require.NoError(t, ts.SaveConversations(model.Conversations{old}))

	store := state.NewStore(state.Initial())
	require.NoError(t, New(store, ts, chunks()).Bootstrap())
	sel := store.State().SelectedConversation
	require.NotNil(t, sel)
	assert.NotEqual(t, old.ID, sel.ID)
	assert.Equal(t, 0.3, sel.Temperature)
	assert.Len(t, store.State().Conversations, 1)

	// With a stored selection it is restored as is.
	require.NoError(t, ts.SaveConversation(old))
	store = state.NewStore(state.Initial())
	require.NoError(t, New(store, ts, chunks()).Bootstrap())
	assert.Equal(t, old.ID, store.State().SelectedConversation.ID)
}

// =============================================================================
// SEND
// =============================================================================

func TestSend_StreamsAndPersists(t *testing.T) {
	h := newHarness(t, chunks("Hel", "lo", ", world"))

	res, err := h.ctl.Send(context.Background(), model.UserMessage("hi there"), 0)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeCompleted, res.Outcome)

	sel := h.selected(t)
	require.Len(t, sel.Messages, 2)
	assert.Equal(t, model.UserMessage("hi there"), sel.Messages[0])
	assert.Equal(t, model.AssistantMessage("Hello, world"), sel.Messages[1])
	assert.Equal(t, "hi there", sel.Name, "first message names the conversation")

	st := h.store.State()
	assert.False(t, st.MessageIsStreaming)
	assert.False(t, st.Loading)
	require.Len(t, st.Conversations, 1)
	assert.Equal(t, sel.ID, st.Conversations[0].ID)
	require.NotNil(t, st.CurrentMessage)
	assert.Equal(t, "hi there", st.CurrentMessage.Content)

	storedSel, history := h.stored(t)
	assert.Equal(t, sel, storedSel)
	require.Len(t, history, 1)
	assert.Equal(t, sel, history[0])

	// One pre-stream snapshot, one per chunk, one final.
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.snapshots, 5)
	assert.True(t, h.snapshots[0].Streaming)
	assert.Nil(t, h.snapshots[0].Draft)
	assert.Equal(t, "Hel", h.snapshots[1].Draft.Content)
	assert.Equal(t, "Hello", h.snapshots[2].Draft.Content)
	assert.False(t, h.snapshots[4].Streaming)
}

func TestSend_LongFirstMessageNameIsTruncated(t *testing.T) {
	h := newHarness(t, chunks("ok"))
	long := strings.Repeat("abcdefghij", 4)

	_, err := h.ctl.Send(context.Background(), model.UserMessage(long), 0)
	require.NoError(t, err)
	assert.Equal(t, long[:30]+"...", h.selected(t).Name)

	_, err = h.ctl.Send(context.Background(), model.UserMessage("second"), 0)
	require.NoError(t, err)
	assert.Equal(t, long[:30]+"...", h.selected(t).Name, "only the first message names it")
}

func TestSend_DeleteCountReplacesLastExchange(t *testing.T) {
	replies := []string{"first answer", "second answer"}
	call := 0
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		r := replies[call]
		call++
		return io.NopCloser(strings.NewReader(r)), nil
	})
	h := newHarness(t, p)

	_, err := h.ctl.Send(context.Background(), model.UserMessage("question"), 0)
	require.NoError(t, err)
	before := h.selected(t)
	require.Len(t, before.Messages, 2)

	_, err = h.ctl.Send(context.Background(), model.UserMessage("question"), 2)
	require.NoError(t, err)

	after := h.selected(t)
	require.Len(t, after.Messages, 2)
	assert.Equal(t, "question", after.Messages[0].Content)
	assert.Equal(t, model.AssistantMessage("second answer"), after.Messages[1])

	_, history := h.stored(t)
	require.Len(t, history, 1)
	assert.Equal(t, after, history[0])
}

func TestSend_CancelBeforeFirstChunkStillPersists(t *testing.T) {
	var h *harness
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		h.ctl.Stop()
		return io.NopCloser(strings.NewReader("never read")), nil
	})
	h = newHarness(t, p)

	res, err := h.ctl.Send(context.Background(), model.UserMessage("hi"), 0)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeCancelled, res.Outcome)

	sel := h.selected(t)
	require.Len(t, sel.Messages, 1)
	assert.True(t, sel.Messages[0].IsUser())

	storedSel, history := h.stored(t)
	assert.Equal(t, sel, storedSel)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Messages, 1)

	assert.False(t, h.ctl.Token().IsRequested(), "token is cleared when the stream ends")
	assert.False(t, h.store.State().MessageIsStreaming)
}

func TestSend_AcquisitionFailureBecomesMessage(t *testing.T) {
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		return nil, errors.New("boom")
	})
	h := newHarness(t, p)

	res, err := h.ctl.Send(context.Background(), model.UserMessage("hi"), 0)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeFailedAcquire, res.Outcome)

	sel := h.selected(t)
	require.Len(t, sel.Messages, 2)
	assert.Equal(t,
		`Something went wrong. Error: "boom". Please contact support@askcodebase.com if you need help.`,
		sel.Messages[1].Content)
}

func TestSend_ReadErrorKeepsPartialText(t *testing.T) {
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		return io.NopCloser(io.MultiReader(strings.NewReader("partial"), iotestErrReader{})), nil
	})
	h := newHarness(t, p)

	res, err := h.ctl.Send(context.Background(), model.UserMessage("hi"), 0)
	require.Error(t, err)
	assert.Equal(t, metrics.OutcomeReadError, res.Outcome)
	assert.Equal(t, "partial", h.selected(t).Messages[1].Content)

	_, history := h.stored(t)
	assert.Len(t, history[0].Messages, 2)
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSend_RejectsWhileStreaming(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		close(started)
		<-release
		return io.NopCloser(strings.NewReader("done")), nil
	})
	h := newHarness(t, p)

	errc := make(chan error, 1)
	go func() {
		_, err := h.ctl.Send(context.Background(), model.UserMessage("one"), 0)
		errc <- err
	}()
	<-started

	assert.True(t, h.ctl.Streaming())
	_, err := h.ctl.Send(context.Background(), model.UserMessage("two"), 0)
	assert.ErrorIs(t, err, ErrStreaming)
	_, err = h.ctl.NewConversation()
	assert.ErrorIs(t, err, ErrStreaming)
	assert.NoError(t, h.ctl.ReloadHistory(), "reload is a no-op while streaming")

	close(release)
	require.NoError(t, <-errc)
	assert.False(t, h.ctl.Streaming())
}

// gatedReader blocks its first Read until release is closed, then returns
// chunk. Later reads report EOF.
type gatedReader struct {
	ctx      context.Context
	chunk    string
	reading  chan struct{}
	release  chan struct{}
	reads    int
	ctxErrAt error
}

func (r *gatedReader) Read(p []byte) (int, error) {
	r.reads++
	if r.reads > 1 {
		return 0, io.EOF
	}
	close(r.reading)
	<-r.release
	r.ctxErrAt = r.ctx.Err()
	return copy(p, r.chunk), nil
}

func (r *gatedReader) Close() error { return nil }

func TestSend_StopKeepsInFlightChunk(t *testing.T) {
	r := &gatedReader{chunk: "late", reading: make(chan struct{}), release: make(chan struct{})}
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		r.ctx = ctx
		return r, nil
	})
	h := newHarness(t, p)

	done := make(chan stream.Result, 1)
	go func() {
		res, _ := h.ctl.Send(context.Background(), model.UserMessage("hi"), 0)
		done <- res
	}()

	<-r.reading
	h.ctl.Stop()
	close(r.release)

	select {
	case res := <-done:
		assert.Equal(t, metrics.OutcomeCancelled, res.Outcome)
		assert.Equal(t, 1, res.Chunks)
		assert.Equal(t, 1, r.reads, "no read after the stop request")
		assert.NoError(t, r.ctxErrAt, "stop must not cancel the read in flight")

		sel := h.selected(t)
		require.Len(t, sel.Messages, 2)
		assert.Equal(t, model.RoleAssistant, sel.Messages[1].Role)
		assert.Equal(t, "late", sel.Messages[1].Content)

		_, history := h.stored(t)
		require.Len(t, history, 1)
		assert.Len(t, history[0].Messages, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the in-flight read")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var published bool
	for _, snap := range h.snapshots {
		if snap.Draft != nil && snap.Draft.Content == "late" {
			published = true
		}
	}
	assert.True(t, published, "the in-flight chunk is published as a draft")
}

func TestStop_WhenIdleDoesNotAffectNextSend(t *testing.T) {
	h := newHarness(t, chunks("fine"))
	h.ctl.Stop()

	res, err := h.ctl.Send(context.Background(), model.UserMessage("hi"), 0)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeCompleted, res.Outcome)
}

func TestSend_NoConversation(t *testing.T) {
	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)
	ctl := New(state.NewStore(state.Initial()), storage.NewTranscriptStore(kv), chunks("x"))

	_, err = ctl.Send(context.Background(), model.UserMessage("hi"), 0)
	assert.ErrorIs(t, err, ErrNoConversation)
}

// =============================================================================
// REGENERATE AND EDIT
// =============================================================================

func TestRegenerate(t *testing.T) {
	n := 0
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		n++
		return io.NopCloser(strings.NewReader(strings.Repeat("!", n))), nil
	})
	h := newHarness(t, p, WithRegenerateInterval(time.Hour))

	res, err := h.ctl.Regenerate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res, "no current message, nothing to do")

	_, err = h.ctl.Send(context.Background(), model.UserMessage("q"), 0)
	require.NoError(t, err)

	_, err = h.ctl.Regenerate(context.Background())
	require.NoError(t, err)
	sel := h.selected(t)
	require.Len(t, sel.Messages, 2)
	assert.Equal(t, "q", sel.Messages[0].Content)
	assert.Equal(t, "!!", sel.Messages[1].Content)

	_, err = h.ctl.Regenerate(context.Background())
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestRegenerate_AfterStoppedSend(t *testing.T) {
	var h *harness
	calls := 0
	p := producer.Func(func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
		calls++
		switch calls {
		case 1:
			return io.NopCloser(strings.NewReader("A1")), nil
		case 2:
			h.ctl.Stop()
			return io.NopCloser(strings.NewReader("never read")), nil
		default:
			return io.NopCloser(strings.NewReader("A2")), nil
		}
	})
	h = newHarness(t, p, WithRegenerateInterval(0))

	_, err := h.ctl.Send(context.Background(), model.UserMessage("U1"), 0)
	require.NoError(t, err)
	res, err := h.ctl.Send(context.Background(), model.UserMessage("U2"), 0)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeCancelled, res.Outcome)

	cur := h.store.State().CurrentMessage
	require.NotNil(t, cur)
	assert.Equal(t, model.RoleUser, cur.Role)
	assert.Equal(t, "U2", cur.Content)

	_, err = h.ctl.Regenerate(context.Background())
	require.NoError(t, err)

	sel := h.selected(t)
	var got []string
	for _, m := range sel.Messages {
		got = append(got, string(m.Role)+":"+m.Content)
	}
	assert.Equal(t, []string{"user:U1", "assistant:A1", "user:U2", "assistant:A2"}, got)
}

func TestDeleteMessage(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  []string
	}{
		{"user with reply", 2, []string{"one", "a", "three", "a"}},
		{"assistant alone", 1, []string{"one", "two", "a", "three", "a"}},
		{"first exchange", 0, []string{"two", "a", "three", "a"}},
		{"last reply", 5, []string{"one", "a", "two", "a", "three"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, chunks("a"), WithRegenerateInterval(0))
			for _, q := range []string{"one", "two", "three"} {
				_, err := h.ctl.Send(context.Background(), model.UserMessage(q), 0)
				require.NoError(t, err)
			}

			updated, err := h.ctl.DeleteMessage(tt.index)
			require.NoError(t, err)

			var got []string
			for _, m := range updated.Messages {
				got = append(got, m.Content)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, updated, h.selected(t))

			storedSel, history := h.stored(t)
			assert.Equal(t, updated, storedSel)
			require.Len(t, history, 1)
			assert.Equal(t, updated, history[0])
		})
	}
}

func TestDeleteMessage_Errors(t *testing.T) {
	h := newHarness(t, chunks("a"))
	_, err := h.ctl.DeleteMessage(0)
	assert.ErrorIs(t, err, ErrMessageIndex)

	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)
	ctl := New(state.NewStore(state.Initial()), storage.NewTranscriptStore(kv), chunks("x"))
	_, err = ctl.DeleteMessage(0)
	assert.ErrorIs(t, err, ErrNoConversation)
}

func TestDeleteMessage_UpdatesCurrentMessage(t *testing.T) {
	h := newHarness(t, chunks("a"))
	for _, q := range []string{"one", "two"} {
		_, err := h.ctl.Send(context.Background(), model.UserMessage(q), 0)
		require.NoError(t, err)
	}
	_, err := h.ctl.DeleteMessage(2)
	require.NoError(t, err)

	cur := h.store.State().CurrentMessage
	require.NotNil(t, cur)
	assert.Equal(t, "one", cur.Content)
}

func TestEdit(t *testing.T) {
	h := newHarness(t, chunks("a"), WithRegenerateInterval(0))
	for _, q := range []string{"one", "two"} {
		_, err := h.ctl.Send(context.Background(), model.UserMessage(q), 0)
		require.NoError(t, err)
	}
	require.Len(t, h.selected(t).Messages, 4)

	_, err := h.ctl.Edit(context.Background(), 2, "two, edited")
	require.NoError(t, err)

	sel := h.selected(t)
	require.Len(t, sel.Messages, 4)
	assert.Equal(t, "one", sel.Messages[0].Content)
	assert.Equal(t, "two, edited", sel.Messages[2].Content)

	_, err = h.ctl.Edit(context.Background(), 9, "nope")
	assert.ErrorIs(t, err, ErrMessageIndex)
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

func TestNewConversation_InheritsFromLast(t *testing.T) {
	h := newHarness(t, chunks("a"))
	sel := h.selected(t)

	gpt4, _ := model.LookupModel(model.GPT4)
	_, err := h.ctl.UpdateConversation(sel, "model", gpt4)
	require.NoError(t, err)
	upd, err := h.ctl.UpdateConversation(h.selected(t), "temperature", 0.2)
	require.NoError(t, err)
	assert.Equal(t, 0.2, upd.Temperature)

	conv, err := h.ctl.NewConversation()
	require.NoError(t, err)
	assert.Equal(t, model.GPT4, conv.Model.ID)
	assert.Equal(t, 0.2, conv.Temperature)
	assert.Equal(t, model.DefaultSystemPrompt, conv.Prompt)
	assert.Equal(t, conv.ID, h.selected(t).ID)

	_, history := h.stored(t)
	assert.Len(t, history, 2)
}

func TestUpdateConversation_Keys(t *testing.T) {
	h := newHarness(t, chunks())
	sel := h.selected(t)

	upd, err := h.ctl.UpdateConversation(sel, "name", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", upd.Name)

	upd, err = h.ctl.UpdateConversation(upd, "folderId", "f1")
	require.NoError(t, err)
	require.NotNil(t, upd.FolderID)
	assert.Equal(t, "f1", *upd.FolderID)

	upd, err = h.ctl.UpdateConversation(upd, "folderId", nil)
	require.NoError(t, err)
	assert.Nil(t, upd.FolderID)

	upd, err = h.ctl.UpdateConversation(upd, "messages", []model.Message{model.UserMessage("x")})
	require.NoError(t, err)
	assert.Len(t, upd.Messages, 1)

	_, err = h.ctl.UpdateConversation(upd, "color", "red")
	assert.ErrorIs(t, err, ErrUnknownKey)
	_, err = h.ctl.UpdateConversation(upd, "name", 42)
	assert.Error(t, err)

	storedSel, history := h.stored(t)
	assert.Equal(t, "Renamed", storedSel.Name)
	require.Len(t, history, 1)
	assert.Equal(t, upd, history[0])
}

func TestSelectConversation(t *testing.T) {
	h := newHarness(t, chunks("a"))
	first := h.selected(t)
	_, err := h.ctl.Send(context.Background(), model.UserMessage("q"), 0)
	require.NoError(t, err)
	_, err = h.ctl.NewConversation()
	require.NoError(t, err)

	history := h.store.State().Conversations
	back, ok := history.Find(first.ID)
	require.True(t, ok)
	require.NoError(t, h.ctl.SelectConversation(back))

	assert.Equal(t, first.ID, h.selected(t).ID)
	require.NotNil(t, h.store.State().CurrentMessage)
	assert.Equal(t, "q", h.store.State().CurrentMessage.Content)

	storedSel, _ := h.stored(t)
	assert.Equal(t, first.ID, storedSel.ID)
}

func TestReloadHistory(t *testing.T) {
	h := newHarness(t, chunks())

	other := model.NewConversation(model.DefaultSettings())
	require.NoError(t, h.transcripts.SaveConversations(model.Conversations{other}))
	require.NoError(t, h.ctl.ReloadHistory())

	cs := h.store.State().Conversations
	require.Len(t, cs, 1)
	assert.Equal(t, other.ID, cs[0].ID)
}
