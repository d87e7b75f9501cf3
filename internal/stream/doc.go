// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes a model's response stream and turns it into an
// evolving assistant message.
//
// # Key Types
//
//   - Consumer: reads, decodes and publishes one stream at a time
//   - Token: explicit stop signal checked before every read
//   - Decoder: incremental UTF-8 decoding across chunk boundaries
//   - Snapshot: committed transcript plus the in-progress draft
//
// # Usage
//
//	tok := stream.NewToken()
//	res, err := consumer.Consume(ctx, stream.Request{
//	    Conversation: conv,
//	    Acquire:      func(ctx context.Context) (io.ReadCloser, error) { return p.Stream(ctx, conv, msg) },
//	    Token:        tok,
//	    Publish:      func(s stream.Snapshot) { program.Send(s) },
//	})
//	tok.Clear()
package stream
