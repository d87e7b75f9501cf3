// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/model"
)

// DefaultReadSize is the buffer handed to each Read call.
const DefaultReadSize = 4096

// Acquire opens the response stream for one request.
type Acquire func(ctx context.Context) (io.ReadCloser, error)

// Request is one stream to consume.
type Request struct {
	// Conversation is the transcript the response will be appended to.
	Conversation model.Conversation
	// Acquire opens the stream. An error is rendered as an assistant message.
	Acquire Acquire
	// Token stops consumption before the next read. May be nil.
	Token *Token
	// Publish receives a snapshot per decoded chunk and a final one. May be nil.
	Publish func(Snapshot)
}

// Result describes how a stream ended.
type Result struct {
	// Conversation is the input transcript plus the committed assistant
	// message, or unchanged when no text arrived.
	Conversation model.Conversation
	Outcome      string
	Chunks       int
	Bytes        int
	Duration     time.Duration
}

// =============================================================================
// CONSUMER
// =============================================================================

// Consumer reads response streams and publishes the growing assistant message.
type Consumer struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	readSize int
	now      func() time.Time
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the consumer's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Consumer) { c.log = l }
}

// WithMetrics records stream metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

// WithReadSize sets the read buffer size.
func WithReadSize(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// NewConsumer creates a consumer.
func NewConsumer(opts ...Option) *Consumer {
	c := &Consumer{
		log:      zerolog.Nop(),
		readSize: DefaultReadSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume acquires the stream and reads it until EOF, a read error, or a
// stop request on the token. The first decoded text opens the assistant
// draft; each later chunk replaces the draft with the full text so far. On
// return the draft is committed as exactly one assistant message.
//
// Acquisition failures never surface as errors. The returned error is a read
// failure after the stream started; the text received before it is kept.
func (c *Consumer) Consume(ctx context.Context, req Request) (Result, error) {
	start := c.now()
	res := Result{Conversation: req.Conversation, Outcome: metrics.OutcomeCompleted}
	lg := c.log.With().Str("conversation", req.Conversation.ID).Logger()

	c.metrics.StreamStarted()
	lg.Debug().Msg("stream started")

	body, err := req.Acquire(ctx)
	if err == nil && body == nil {
		err = ErrNoStream
	}
	if err != nil {
		lg.Warn().Err(err).Msg("stream acquisition failed, rendering error message")
		body = ErrorStream(err)
		res.Outcome = metrics.OutcomeFailedAcquire
	}
	defer body.Close()

	var (
		dec     = NewDecoder()
		text    strings.Builder
		draft   *model.Message
		buf     = make([]byte, c.readSize)
		readErr error
	)

	publish := func(s string) {
		if s == "" {
			return
		}
		text.WriteString(s)
		res.Bytes += len(s)
		if draft == nil {
			draft = &model.Message{Role: model.RoleAssistant, Content: s}
			c.metrics.RecordFirstChunk(c.now().Sub(start))
		} else {
			draft.Content = text.String()
		}
		c.metrics.RecordChunk(len(s))
		if req.Publish != nil {
			d := *draft
			req.Publish(Snapshot{Conversation: req.Conversation, Draft: &d, Streaming: true})
		}
	}

	for {
		if req.Token.IsRequested() || ctx.Err() != nil {
			if res.Outcome == metrics.OutcomeCompleted {
				res.Outcome = metrics.OutcomeCancelled
			}
			break
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			res.Chunks++
			publish(dec.Decode(buf[:n]))
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			// A cancelled parent context may surface as a read error.
			if req.Token.IsRequested() || ctx.Err() != nil {
				res.Outcome = metrics.OutcomeCancelled
			} else {
				readErr = rerr
				res.Outcome = metrics.OutcomeReadError
			}
			break
		}
	}
	publish(dec.Flush())

	if draft != nil {
		res.Conversation = req.Conversation.WithMessage(*draft)
	}
	res.Duration = c.now().Sub(start)
	c.metrics.StreamFinished(res.Outcome, res.Duration)

	ev := lg.Info()
	if readErr != nil {
		ev = lg.Error().Err(readErr)
	}
	ev.Str("outcome", res.Outcome).
		Int("chunks", res.Chunks).
		Int("bytes", res.Bytes).
		Dur("duration", res.Duration).
		Msg("stream finished")

	if req.Publish != nil {
		req.Publish(Snapshot{Conversation: res.Conversation})
	}
	return res, readErr
}
