// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/producer"
	"github.com/jeranaias/streamchat/internal/state"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/stream"
)

// DefaultRegenerateInterval is the minimum time between regenerations.
const DefaultRegenerateInterval = time.Second

var (
	// ErrStreaming is returned for operations that cannot run during a stream.
	ErrStreaming = errors.New("a response is still streaming")

	// ErrNoConversation is returned when no conversation is selected.
	ErrNoConversation = errors.New("no conversation selected")

	// ErrThrottled is returned when Regenerate is called too often.
	ErrThrottled = errors.New("regenerate throttled")

	// ErrMessageIndex is returned by Edit and DeleteMessage for an index outside the transcript.
	ErrMessageIndex = errors.New("message index out of range")

	// ErrUnknownKey is returned by UpdateConversation for an unknown field.
	ErrUnknownKey = errors.New("unknown conversation field")
)

// Observer receives stream snapshots. It is called on the goroutine running Send.
type Observer func(stream.Snapshot)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs chat operations against a state store. Safe for
// concurrent use; at most one Send runs at a time.
type Controller struct {
	store       *state.Store
	transcripts *storage.TranscriptStore
	producer    producer.Producer
	consumer    *stream.Consumer
	observer    Observer
	log         zerolog.Logger
	regenerate  *rate.Limiter

	token *stream.Token

	mu   sync.Mutex
	busy bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver sets the snapshot observer.
func WithObserver(fn Observer) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithConsumer replaces the default stream consumer.
func WithConsumer(sc *stream.Consumer) Option {
	return func(c *Controller) { c.consumer = sc }
}

// WithLogger sets the controller's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithRegenerateInterval sets the minimum time between regenerations.
// Zero disables the throttle.
func WithRegenerateInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d <= 0 {
			c.regenerate = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.regenerate = rate.NewLimiter(rate.Every(d), 1)
	}
}

// New creates a controller.
func New(store *state.Store, transcripts *storage.TranscriptStore, p producer.Producer, opts ...Option) *Controller {
	c := &Controller{
		store:       store,
		transcripts: transcripts,
		producer:    p,
		consumer:    stream.NewConsumer(),
		log:         zerolog.Nop(),
		regenerate:  rate.NewLimiter(rate.Every(DefaultRegenerateInterval), 1),
		token:       stream.NewToken(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the state store.
func (c *Controller) Store() *state.Store {
	return c.store
}

// Token returns the cancellation token shared by all streams.
func (c *Controller) Token() *stream.Token {
	return c.token
}

// Streaming reports whether a stream is in progress.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// Bootstrap loads the stored history and selected conversation. Without a
// stored selection a fresh conversation is selected, using the default
// model and prompt and the temperature of the last stored conversation.
func (c *Controller) Bootstrap() error {
	history, err := c.transcripts.LoadHistory()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	selected, ok, err := c.transcripts.LoadSelected()
	if err != nil {
		return fmt.Errorf("load selected conversation: %w", err)
	}
	if !ok {
		s := c.transcripts.Settings()
		if last := history.Last(); last != nil {
			s.Temperature = last.Temperature
		}
		selected = model.NewConversation(s)
	}

	c.log.Debug().
		Int("conversations", len(history)).
		Str("selected", selected.ID).
		Bool("restored", ok).
		Msg("bootstrapped")

	return c.store.DispatchAll(
		state.Action{Field: state.FieldConversations, Value: history},
		state.Action{Field: state.FieldSelectedConversation, Value: selected},
		state.Action{Field: state.FieldCurrentMessage, Value: lastPrompt(selected)},
	)
}

// NewConversation appends and selects a new conversation. It inherits the
// model and temperature of the last conversation in the collection.
func (c *Controller) NewConversation() (model.Conversation, error) {
	if c.Streaming() {
		return model.Conversation{}, ErrStreaming
	}

	st := c.store.State()
	conv := model.NewConversationAfter(c.transcripts.Settings(), st.Conversations.Last())
	all := append(st.Conversations[:len(st.Conversations):len(st.Conversations)], conv)

	if err := c.store.DispatchAll(
		state.Action{Field: state.FieldSelectedConversation, Value: conv},
		state.Action{Field: state.FieldConversations, Value: all},
		state.Action{Field: state.FieldCurrentMessage, Value: nil},
	); err != nil {
		return model.Conversation{}, err
	}

	err := errors.Join(
		c.transcripts.SaveConversation(conv),
		c.transcripts.SaveConversations(all),
	)
	c.store.Dispatch(state.Action{Field: state.FieldLoading, Value: false})
	return conv, err
}

// SelectConversation makes conv the selected conversation and persists it.
func (c *Controller) SelectConversation(conv model.Conversation) error {
	if c.Streaming() {
		return ErrStreaming
	}
	if err := c.store.DispatchAll(
		state.Action{Field: state.FieldSelectedConversation, Value: conv},
		state.Action{Field: state.FieldCurrentMessage, Value: lastPrompt(conv)},
	); err != nil {
		return err
	}
	return c.transcripts.SaveConversation(conv)
}

// UpdateConversation replaces one field of conv, reconciles it into the
// collection, selects it and persists both. Keys use the stored JSON names.
func (c *Controller) UpdateConversation(conv model.Conversation, key string, value any) (model.Conversation, error) {
	updated, err := setField(conv.Clone(), key, value)
	if err != nil {
		return conv, err
	}

	all := c.store.State().Conversations.Upsert(updated)
	if err := c.store.DispatchAll(
		state.Action{Field: state.FieldSelectedConversation, Value: updated},
		state.Action{Field: state.FieldConversations, Value: all},
	); err != nil {
		return conv, err
	}

	return updated, errors.Join(
		c.transcripts.SaveConversation(updated),
		c.transcripts.SaveConversations(all),
	)
}

func setField(conv model.Conversation, key string, value any) (model.Conversation, error) {
	typeErr := fmt.Errorf("%s: unexpected value type %T", key, value)

	switch key {
	case "name":
		v, ok := value.(string)
		if !ok {
			return conv, typeErr
		}
		conv.Name = v
	case "prompt":
		v, ok := value.(string)
		if !ok {
			return conv, typeErr
		}
		conv.Prompt = v
	case "temperature":
		switch v := value.(type) {
		case float64:
			conv.Temperature = v
		case float32:
			conv.Temperature = float64(v)
		case int:
			conv.Temperature = float64(v)
		default:
			return conv, typeErr
		}
	case "model":
		switch v := value.(type) {
		case model.OpenAIModel:
			conv.Model = v
		case string:
			m, _ := model.LookupModel(v)
			conv.Model = m
		default:
			return conv, typeErr
		}
	case "folderId":
		switch v := value.(type) {
		case nil:
			conv.FolderID = nil
		case *string:
			conv.FolderID = v
		case string:
			if v == "" {
				conv.FolderID = nil
			} else {
				conv.FolderID = &v
			}
		default:
			return conv, typeErr
		}
	case "messages":
		v, ok := value.([]model.Message)
		if !ok {
			return conv, typeErr
		}
		conv.Messages = append([]model.Message(nil), v...)
	default:
		return conv, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return conv, nil
}

// ReloadHistory re-reads the stored history, for example after another
// process changed it. It does nothing while a stream is running.
func (c *Controller) ReloadHistory() error {
	if c.Streaming() {
		return nil
	}
	history, err := c.transcripts.LoadHistory()
	if err != nil {
		return err
	}
	return c.store.Dispatch(state.Action{Field: state.FieldConversations, Value: history})
}

// =============================================================================
// STREAMING
// =============================================================================

// Send appends msg to the selected conversation after dropping deleteCount
// trailing messages, streams the response into it and persists the result.
// It blocks until the stream ends. The returned error is a read failure or a
// persistence failure; acquisition failures are rendered as the assistant
// message instead.
func (c *Controller) Send(ctx context.Context, msg model.Message, deleteCount int) (stream.Result, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return stream.Result{}, ErrStreaming
	}
	st := c.store.State()
	if st.SelectedConversation == nil {
		c.mu.Unlock()
		return stream.Result{}, ErrNoConversation
	}
	c.busy = true
	c.token.Clear()
	c.mu.Unlock()

	// Stop only sets the token. The producer's context ends once the
	// stream has been consumed, so a read in flight still delivers its chunk.
	streamCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.token.Clear()
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	conv := st.SelectedConversation.DropLast(deleteCount).WithMessage(msg)
	c.store.DispatchAll(
		state.Action{Field: state.FieldCurrentMessage, Value: msg},
		state.Action{Field: state.FieldSelectedConversation, Value: conv},
		state.Action{Field: state.FieldLoading, Value: true},
		state.Action{Field: state.FieldMessageIsStreaming, Value: true},
	)
	if len(conv.Messages) == 1 {
		conv = conv.WithDerivedName()
	}
	c.store.Dispatch(state.Action{Field: state.FieldLoading, Value: false})

	c.publish(stream.Snapshot{Conversation: conv, Streaming: true})

	res, readErr := c.consumer.Consume(streamCtx, stream.Request{
		Conversation: conv,
		Acquire: func(ctx context.Context) (io.ReadCloser, error) {
			return c.producer.Stream(ctx, conv, msg)
		},
		Token:   c.token,
		Publish: c.publish,
	})

	final := res.Conversation
	saveErr := c.transcripts.SaveConversation(final)

	all := c.store.State().Conversations.Upsert(final)
	c.store.DispatchAll(
		state.Action{Field: state.FieldSelectedConversation, Value: final},
		state.Action{Field: state.FieldCurrentMessage, Value: lastPrompt(final)},
		state.Action{Field: state.FieldConversations, Value: all},
	)
	saveErr = errors.Join(saveErr, c.transcripts.SaveConversations(all))
	c.store.Dispatch(state.Action{Field: state.FieldMessageIsStreaming, Value: false})

	if saveErr != nil {
		c.log.Error().Err(saveErr).Str("conversation", final.ID).Msg("failed to persist conversation")
	}
	return res, errors.Join(readErr, saveErr)
}

// Regenerate resends the current message, replacing the last exchange: the
// last user message and the reply after it, if any. It is a no-op without a
// current message and returns ErrThrottled when called again within the
// regenerate interval.
func (c *Controller) Regenerate(ctx context.Context) (stream.Result, error) {
	st := c.store.State()
	cur := st.CurrentMessage
	if cur == nil {
		return stream.Result{}, nil
	}
	if !c.regenerate.Allow() {
		return stream.Result{}, ErrThrottled
	}
	deleteCount := 0
	if st.SelectedConversation != nil {
		deleteCount = lastExchangeLen(*st.SelectedConversation)
	}
	return c.Send(ctx, *cur, deleteCount)
}

// Edit replaces the message at index and everything after it with a new
// user message and streams a fresh response.
func (c *Controller) Edit(ctx context.Context, index int, content string) (stream.Result, error) {
	sel := c.store.State().SelectedConversation
	if sel == nil {
		return stream.Result{}, ErrNoConversation
	}
	if index < 0 || index >= len(sel.Messages) {
		return stream.Result{}, fmt.Errorf("%w: %d", ErrMessageIndex, index)
	}
	return c.Send(ctx, model.UserMessage(content), len(sel.Messages)-index)
}

// DeleteMessage removes the message at index from the selected
// conversation, together with the assistant reply directly after it, then
// reconciles and persists the result.
func (c *Controller) DeleteMessage(index int) (model.Conversation, error) {
	if c.Streaming() {
		return model.Conversation{}, ErrStreaming
	}
	sel := c.store.State().SelectedConversation
	if sel == nil {
		return model.Conversation{}, ErrNoConversation
	}
	if index < 0 || index >= len(sel.Messages) {
		return *sel, fmt.Errorf("%w: %d", ErrMessageIndex, index)
	}

	n := 1
	if index+1 < len(sel.Messages) && sel.Messages[index+1].Role == model.RoleAssistant {
		n = 2
	}
	msgs := make([]model.Message, 0, len(sel.Messages)-n)
	msgs = append(msgs, sel.Messages[:index]...)
	msgs = append(msgs, sel.Messages[index+n:]...)

	updated, err := c.UpdateConversation(*sel, "messages", msgs)
	if dispatchErr := c.store.Dispatch(state.Action{Field: state.FieldCurrentMessage, Value: lastPrompt(updated)}); dispatchErr != nil {
		err = errors.Join(err, dispatchErr)
	}
	c.log.Debug().Str("conversation", updated.ID).Int("index", index).Int("removed", n).Msg("message deleted")
	return updated, err
}

// Stop asks the running stream to end before its next read. It does
// nothing when no stream is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.busy {
		return
	}
	c.log.Debug().Msg("stop requested")
	c.token.Request()
}

func (c *Controller) publish(s stream.Snapshot) {
	if c.observer != nil {
		c.observer(s)
	}
}

// lastPrompt returns the last user message, the prompt that a regenerate
// would resend, or nil.
func lastPrompt(conv model.Conversation) any {
	msg, ok := conv.LastUserMessage()
	if !ok {
		return nil
	}
	return msg
}

// lastExchangeLen returns the number of trailing messages starting at the
// last user message: 2 after an answered prompt, 1 when the reply never
// arrived.
func lastExchangeLen(conv model.Conversation) int {
	i := conv.LastUserIndex()
	if i < 0 {
		return 0
	}
	return len(conv.Messages) - i
}
