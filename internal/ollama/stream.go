// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 1 << 20

// chunkReader turns an NDJSON chat response into the bare generated text.
type chunkReader struct {
	*io.PipeReader
	body io.Closer
}

func newChunkReader(body io.ReadCloser, log zerolog.Logger) *chunkReader {
	pr, pw := io.Pipe()
	go pump(body, pw, log)
	return &chunkReader{PipeReader: pr, body: body}
}

// Close stops the pump and releases the connection.
func (r *chunkReader) Close() error {
	r.PipeReader.Close()
	return r.body.Close()
}

// pump copies message content from body into pw until the final chunk,
// EOF, or an error. An error line from the server fails the stream. The
// final chunk's generation stats are logged.
func pump(body io.ReadCloser, pw *io.PipeWriter, log zerolog.Logger) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Skip malformed lines
			continue
		}
		if chunk.Error != "" {
			pw.CloseWithError(&ClientError{Type: ErrTypeUnknown, Message: chunk.Error})
			return
		}
		if chunk.Message.Content != "" {
			if _, err := io.WriteString(pw, chunk.Message.Content); err != nil {
				// Reader closed.
				return
			}
		}
		if chunk.Done {
			log.Debug().
				Str("done_reason", chunk.DoneReason).
				Int("eval_count", chunk.EvalCount).
				Float64("tokens_per_second", chunk.TokensPerSecond()).
				Msg("generation finished")
			pw.Close()
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		pw.CloseWithError(&ClientError{Type: ErrTypeInvalidResponse, Message: "stream interrupted", Cause: err})
		return
	}
	pw.Close()
}
