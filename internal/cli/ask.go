// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// The answer streams to stdout as it arrives. On a terminal the streamed
// text is then replaced by its markdown rendering.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/stream"
)

// ErrStreamFailed is returned when the answer stream could not be opened.
// The failure text has already been printed as the answer.
var ErrStreamFailed = errors.New("response stream could not be opened")

// HandleAsk streams one answer. Without a question argument the question is
// read from stdin, unless stdin is a terminal.
func HandleAsk(ctx context.Context, env *Env, args Args) error {
	out := env.out()

	question := strings.TrimSpace(args.Query)
	if question == "" && (env.In != nil || !IsTTY()) {
		data, err := io.ReadAll(io.LimitReader(env.in(), maxContextFileSize))
		if err != nil {
			return fmt.Errorf("read question: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return ErrMissingArgument("question", `streamchat ask "question"`)
	}

	if args.File != "" {
		content, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		question = withFileContext(question, args.File, content)
	}

	settings := env.Config.Settings()
	if args.Model != "" {
		settings.Model, _ = model.LookupModel(args.Model)
	}
	msg := model.UserMessage(question)
	conv := model.NewConversation(settings).WithMessage(msg).WithDerivedName()

	printer := NewPrinter(out)
	res, err := env.Consumer.Consume(ctx, stream.Request{
		Conversation: conv,
		Acquire: func(ctx context.Context) (io.ReadCloser, error) {
			return env.Producer.Stream(ctx, conv, msg)
		},
		Publish: printer.Observe,
	})

	answer, hasAnswer := res.Conversation.LastMessage()
	if hasAnswer && answer.IsAssistant() && shouldRender(env, args, out) {
		width := TerminalWidth(out)
		clearRows(out, RowsFor(strings.TrimSuffix(printer.Text(), "\n"), width)+1)
		fmt.Fprintln(out, env.Markdown.Render(answer.Content, width))
	}

	if args.Save {
		if saveErr := saveExchange(env, res.Conversation); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}

	if !args.Quiet {
		fmt.Fprintln(env.errOut(), DimStyle.Render(fmt.Sprintf("[%s, %d chunks, %s, %s]",
			res.Outcome, res.Chunks, formatBytes(res.Bytes), formatDurationShort(res.Duration))))
	}

	if err == nil && res.Outcome == metrics.OutcomeFailedAcquire {
		return ErrStreamFailed
	}
	return err
}

func shouldRender(env *Env, args Args, out io.Writer) bool {
	return !args.Plain && env.Markdown != nil && env.Config.UI.Markdown && IsTerminal(out)
}

// saveExchange adds conv to the stored history.
func saveExchange(env *Env, conv model.Conversation) error {
	history, err := env.Transcripts.LoadHistory()
	if err != nil {
		return err
	}
	return env.Transcripts.SaveConversations(history.Upsert(conv))
}
