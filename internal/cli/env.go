// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/producer"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/ui/markdown"
)

// Env is what the command handlers run against. main builds one per run.
type Env struct {
	Config      *config.Config
	Transcripts *storage.TranscriptStore
	Producer    producer.Producer
	Consumer    *stream.Consumer
	// Controller drives the REPL. It must be built with the Printer's
	// Observe as its observer.
	Controller *session.Controller
	Printer    *Printer
	Markdown   *markdown.Renderer
	Log        zerolog.Logger
	// Clipboard writes copied text. Defaults to the system clipboard.
	Clipboard func(string) error

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Env) errOut() io.Writer {
	if e.Err == nil {
		return os.Stderr
	}
	return e.Err
}

func (e *Env) in() io.Reader {
	if e.In == nil {
		return os.Stdin
	}
	return e.In
}

func (e *Env) clipboard() func(string) error {
	if e.Clipboard == nil {
		return clipboard.WriteAll
	}
	return e.Clipboard
}
