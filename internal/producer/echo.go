// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package producer

import (
	"context"
	"io"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
)

// Echo streams the user's message back in fixed-size byte chunks. Chunks
// may split multi-byte characters.
type Echo struct {
	// ChunkSize is the number of bytes per write. Zero means 4.
	ChunkSize int
	// Delay is the pause before each chunk.
	Delay time.Duration
	// Prefix is written before the echoed text.
	Prefix string
}

// Stream implements Producer.
func (e *Echo) Stream(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := e.ChunkSize
	if size <= 0 {
		size = 4
	}
	text := []byte(e.Prefix + msg.Content)

	pr, pw := io.Pipe()
	go func() {
		var timer *time.Timer
		if e.Delay > 0 {
			timer = time.NewTimer(e.Delay)
			defer timer.Stop()
		}

		for len(text) > 0 {
			if timer != nil {
				select {
				case <-ctx.Done():
					pw.CloseWithError(ctx.Err())
					return
				case <-timer.C:
					timer.Reset(e.Delay)
				}
			} else if err := ctx.Err(); err != nil {
				pw.CloseWithError(err)
				return
			}

			n := min(size, len(text))
			if _, err := pw.Write(text[:n]); err != nil {
				return
			}
			text = text[n:]
		}
		pw.Close()
	}()
	return pr, nil
}
