// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama streams chat completions from a local Ollama server.
//
// The server answers /api/chat with newline-delimited JSON. Client.Stream
// parses those lines and exposes only the generated text as a plain byte
// stream, which is what the stream consumer reads:
//
//	client := ollama.NewClient()
//	body, err := client.Stream(ctx, conv, msg)
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
//	io.Copy(os.Stdout, body)
package ollama
