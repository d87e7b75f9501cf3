// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/streamchat/internal/model"
)

// Stream opens a streaming completion for conv and returns the concatenated
// deltas as a byte stream. Rate limits and 5xx responses are retried with
// backoff before the first byte; once streaming has begun, failures surface
// as read errors.
func (c *Client) Stream(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
	_ = msg // already the last message of conv

	req := BuildRequest(c.ModelFor(conv), conv)

	var (
		stream *openai.ChatCompletionStream
		err    error
	)
	for attempt := 0; ; attempt++ {
		stream, err = c.api.CreateChatCompletionStream(ctx, req)
		if err == nil {
			break
		}
		err = classifyError(err)
		if attempt >= c.maxRetries || !isRetryable(err) {
			return nil, err
		}
		if serr := c.sleep(ctx, calculateBackoff(attempt)); serr != nil {
			return nil, serr
		}
	}

	pr, pw := io.Pipe()
	go pump(stream, pw)
	return &deltaReader{PipeReader: pr, stream: stream}, nil
}

type deltaReader struct {
	*io.PipeReader
	stream *openai.ChatCompletionStream
}

// Close stops the pump and releases the connection.
func (r *deltaReader) Close() error {
	r.PipeReader.Close()
	return r.stream.Close()
}

func pump(stream *openai.ChatCompletionStream, pw *io.PipeWriter) {
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			pw.Close()
			return
		}
		if err != nil {
			pw.CloseWithError(classifyError(err))
			return
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if _, err := io.WriteString(pw, choice.Delta.Content); err != nil {
				return
			}
		}
	}
}
