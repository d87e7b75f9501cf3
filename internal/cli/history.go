// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Stored conversation commands.
//
// Examples:
//   streamchat history                         List conversations
//   streamchat history show 3f2a               Print a conversation
//   streamchat history export 3f2a --format json --output chat.json
//   streamchat history export 3f2a --format html --dir ./exports
//   streamchat history clear --yes             Delete everything

package cli

import (
	"fmt"

	"github.com/jeranaias/streamchat/internal/export"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/util"
)

// HistoryEntry is the JSON shape of one listed conversation.
type HistoryEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Messages int    `json:"messages"`
	Model    string `json:"model"`
	Selected bool   `json:"selected"`
}

// HandleHistory dispatches the history subcommands.
func HandleHistory(env *Env, args Args) error {
	p := NewArgParser(args.Raw)

	switch p.Subcommand() {
	case "", "list", "ls":
		return historyList(env, args)
	case "show":
		return historyShow(env, p)
	case "export":
		return historyExport(env, p)
	case "clear":
		return historyClear(env, p)
	default:
		return &UsageError{
			Reason: "unknown history subcommand " + p.Subcommand(),
			Usage:  "streamchat history [list|show|export|clear]",
		}
	}
}

func historyList(env *Env, args Args) error {
	history, err := env.Transcripts.LoadHistory()
	if err != nil {
		return err
	}
	selectedID := ""
	if sel, ok, err := env.Transcripts.LoadSelected(); err == nil && ok {
		selectedID = sel.ID
	}

	if args.JSON {
		entries := make([]HistoryEntry, 0, len(history))
		for _, c := range history {
			entries = append(entries, HistoryEntry{
				ID:       c.ID,
				Name:     c.Name,
				Messages: len(c.Messages),
				Model:    c.Model.ID,
				Selected: c.ID == selectedID,
			})
		}
		return NewJSONResponse("history list", entries).Write(env.out())
	}

	fmt.Fprintln(env.out(), storage.FormatHistory(history, selectedID))
	return nil
}

func historyShow(env *Env, p *ArgParser) error {
	id := p.Positional(1)
	if id == "" {
		return ErrMissingArgument("conversation id", "streamchat history show <id>")
	}
	conv, err := resolveConversation(env.Transcripts, id)
	if err != nil {
		return err
	}

	data, err := export.NewMarkdownExporter(&export.Options{IncludeMetadata: true}).Export(conv)
	if err != nil {
		return err
	}
	md := string(data)
	out := env.out()
	if env.Markdown != nil && env.Config.UI.Markdown && IsTerminal(out) {
		md = env.Markdown.Render(md, TerminalWidth(out))
	}
	fmt.Fprintln(out, md)
	return nil
}

func historyExport(env *Env, p *ArgParser) error {
	const usage = "streamchat history export <id> [--format md|json|html] [--output PATH | --dir DIR]"

	id := p.Positional(1)
	if id == "" {
		return ErrMissingArgument("conversation id", usage)
	}
	format := p.FlagOrDefault("format", "md")

	opts := export.DefaultOptions()
	if env.Config != nil && env.Config.UI.Theme == "light" {
		opts.Theme = "light"
	}
	exporter, err := export.For(format, opts)
	if err != nil {
		return ErrUnsupportedFormat(format, export.Formats...)
	}

	conv, err := resolveConversation(env.Transcripts, id)
	if err != nil {
		return err
	}

	if dir := p.Flag("dir", "d"); dir != "" {
		path, err := export.ExportToFile(conv, exporter, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.errOut(), "%s exported %s to %s\n", SuccessStyle.Render("[OK]"), shortID(conv.ID), path)
		return nil
	}

	data, err := exporter.Export(conv)
	if err != nil {
		return err
	}

	path := p.Flag("output", "o")
	if path == "" {
		_, err := env.out().Write(data)
		return err
	}
	if err := util.WriteFile(path, data, util.WriteOptions{}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(env.errOut(), "%s exported %s to %s\n", SuccessStyle.Render("[OK]"), shortID(conv.ID), path)
	return nil
}

func historyClear(env *Env, p *ArgParser) error {
	if !p.BoolFlag("yes", "y") {
		return &UsageError{Reason: "refusing to delete history without --yes", Usage: "streamchat history clear --yes"}
	}
	if err := env.Transcripts.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(env.out(), SuccessStyle.Render("[OK]")+" history cleared")
	return nil
}
