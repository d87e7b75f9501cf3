// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat.
//
// Command: chat
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /new, /clear        Start a new conversation
//   /list               List conversations
//   /select <n|id>      Switch conversation
//   /show               Print the selected conversation
//   /regen, /r          Regenerate the last answer
//   /edit <n> <text>    Replace message n and everything after it
//   /delete <n>         Delete message n and the reply after it
//   /copy               Copy the last answer to the clipboard
//   /models             List the models the backend offers
//   /model [id]         Show or set the model of the conversation
//   /temp <value>       Set the temperature of the conversation
//   /quit, /q           Exit chat
//   Ctrl+C              Stop the current answer
//   Ctrl+D              Exit chat

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/metrics"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ollama"
	"github.com/jeranaias/streamchat/internal/producer"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI that keeps its history in historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history (0600) and restores the terminal.
func (c *ChatCLI) Close() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err == nil {
		util.WriteFile(c.historyFile, buf.Bytes(), util.WriteOptions{})
	}
	c.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the REPL until the user quits.
func HandleChat(ctx context.Context, env *Env, args Args) error {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	input := NewChatCLI(filepath.Join(dir, "chat_history"))
	defer input.Close()

	// First Ctrl+C while streaming stops the answer; at the prompt liner
	// reports it as ErrPromptAborted.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if env.Controller.Streaming() {
				env.Controller.Stop()
			}
		}
	}()

	return runREPL(ctx, env, input, args)
}

func runREPL(ctx context.Context, env *Env, input lineReader, args Args) error {
	out := env.out()
	if !args.Quiet {
		printWelcome(env)
	}
	if err := producer.Check(ctx, env.Producer); err != nil {
		fmt.Fprintf(env.errOut(), "%s %v\n", WarningStyle.Render("[Warning]"), err)
	}

	for {
		line, err := input.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := handleSlashCommand(ctx, env, line)
			if err != nil {
				fmt.Fprintf(env.errOut(), "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		streamAnswer(env, func() (stream.Result, error) {
			return env.Controller.Send(ctx, model.UserMessage(line), 0)
		})
	}
}

// streamAnswer runs one controller stream; the Printer writes the text.
func streamAnswer(env *Env, run func() (stream.Result, error)) {
	out := env.out()
	fmt.Fprint(out, TitleStyle.Render("assistant> "))

	res, err := run()
	switch {
	case errors.Is(err, session.ErrThrottled):
		fmt.Fprintln(out, WarningStyle.Render("regenerate is throttled, try again in a moment"))
	case err != nil:
		fmt.Fprintln(out)
		fmt.Fprintf(env.errOut(), "%s %v\n", ErrorStyle.Render("[Error]"), err)
	case res.Outcome == metrics.OutcomeCancelled:
		fmt.Fprintln(out, WarningStyle.Render("[stopped]"))
	case res.Chunks == 0 && res.Outcome == metrics.OutcomeCompleted:
		fmt.Fprintln(out, DimStyle.Render("(empty response)"))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs one REPL command and reports whether to continue.
func handleSlashCommand(ctx context.Context, env *Env, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, rest := strings.ToLower(fields[0]), fields[1:]
	ctl := env.Controller
	out := env.out()

	switch cmd {
	case "/quit", "/q", "/exit":
		return false, nil

	case "/help", "/h", "/?":
		printHelp(out)

	case "/new", "/clear", "/c":
		conv, err := ctl.NewConversation()
		if err != nil {
			return true, err
		}
		fmt.Fprintln(out, SuccessStyle.Render("New conversation "+shortID(conv.ID)))

	case "/list", "/history", "/ls":
		st := ctl.Store().State()
		selected := ""
		if st.SelectedConversation != nil {
			selected = st.SelectedConversation.ID
		}
		fmt.Fprintln(out, storage.FormatHistory(st.Conversations, selected))

	case "/select", "/s":
		if len(rest) == 0 {
			return true, ErrMissingArgument("conversation", "/select <n|id>")
		}
		conv, err := pickConversation(ctl.Store().State().Conversations, rest[0])
		if err != nil {
			return true, err
		}
		if err := ctl.SelectConversation(conv); err != nil {
			return true, err
		}
		fmt.Fprintf(out, "Selected %s\n", TitleStyle.Render(conv.Name))
		printTranscript(out, conv)

	case "/show":
		if sel := ctl.Store().State().SelectedConversation; sel != nil {
			printTranscript(out, *sel)
		}

	case "/regen", "/regenerate", "/r":
		if ctl.Store().State().CurrentMessage == nil {
			fmt.Fprintln(out, DimStyle.Render("Nothing to regenerate"))
			return true, nil
		}
		streamAnswer(env, func() (stream.Result, error) { return ctl.Regenerate(ctx) })

	case "/edit", "/e":
		if len(rest) < 2 {
			return true, ErrMissingArgument("message number and text", "/edit <n> <text>")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return true, &UsageError{Reason: "message number must be an integer", Usage: "/edit <n> <text>"}
		}
		text := strings.Join(rest[1:], " ")
		streamAnswer(env, func() (stream.Result, error) { return ctl.Edit(ctx, n-1, text) })

	case "/delete", "/d":
		if len(rest) == 0 {
			return true, ErrMissingArgument("message number", "/delete <n>")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return true, &UsageError{Reason: "message number must be an integer", Usage: "/delete <n>"}
		}
		before := 0
		if sel := ctl.Store().State().SelectedConversation; sel != nil {
			before = len(sel.Messages)
		}
		conv, err := ctl.DeleteMessage(n - 1)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(out, SuccessStyle.Render(fmt.Sprintf("Deleted %d message(s)", before-len(conv.Messages))))

	case "/copy", "/y":
		sel := ctl.Store().State().SelectedConversation
		if sel == nil {
			return true, session.ErrNoConversation
		}
		answer, ok := sel.LastAssistantMessage()
		if !ok {
			fmt.Fprintln(out, DimStyle.Render("No response to copy"))
			return true, nil
		}
		if err := env.clipboard()(answer.Content); err != nil {
			return true, fmt.Errorf("copy to clipboard: %w", err)
		}
		fmt.Fprintln(out, SuccessStyle.Render(fmt.Sprintf("Copied response to clipboard (%d chars)", len(answer.Content))))

	case "/models":
		return true, printModels(ctx, env)

	case "/model", "/m":
		sel := ctl.Store().State().SelectedConversation
		if sel == nil {
			return true, session.ErrNoConversation
		}
		if len(rest) == 0 {
			fmt.Fprintf(out, "Model: %s\n", sel.Model)
			return true, nil
		}
		conv, err := ctl.UpdateConversation(*sel, "model", rest[0])
		if err != nil {
			return true, err
		}
		fmt.Fprintf(out, "Model set to %s\n", conv.Model)

	case "/temp", "/temperature", "/t":
		sel := ctl.Store().State().SelectedConversation
		if sel == nil {
			return true, session.ErrNoConversation
		}
		if len(rest) == 0 {
			fmt.Fprintf(out, "Temperature: %g\n", sel.Temperature)
			return true, nil
		}
		v, err := strconv.ParseFloat(rest[0], 64)
		if err != nil || v < 0 || v > 2 {
			return true, &UsageError{Reason: "temperature must be a number between 0 and 2", Usage: "/temp <value>"}
		}
		if _, err := ctl.UpdateConversation(*sel, "temperature", v); err != nil {
			return true, err
		}
		fmt.Fprintf(out, "Temperature set to %g\n", v)

	default:
		return true, &UsageError{Reason: "unknown command " + cmd, Usage: "/help"}
	}
	return true, nil
}

// printModels lists the models installed in Ollama, or the built-in
// catalogue for other producers.
func printModels(ctx context.Context, env *Env) error {
	out := env.out()
	current := ""
	if sel := env.Controller.Store().State().SelectedConversation; sel != nil {
		current = sel.Model.ID
	}

	if oc, ok := env.Producer.(*ollama.Client); ok {
		models, err := oc.ListModels(ctx)
		if err != nil {
			if ollama.IsNotRunning(err) {
				return producer.Check(ctx, oc)
			}
			return fmt.Errorf("list models: %w", err)
		}
		if len(models) == 0 {
			fmt.Fprintln(out, DimStyle.Render("No models installed (run `ollama pull <model>`)"))
			return nil
		}
		fmt.Fprintln(out, TitleStyle.Render("Installed models"))
		for _, m := range models {
			fmt.Fprintf(out, "  %s %s\n", util.PadRight(m.Name, 28), DimStyle.Render(formatBytes(int(m.Size))))
		}
		return nil
	}

	fmt.Fprintln(out, TitleStyle.Render("Models"))
	for _, m := range model.ListModels() {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s %s\n", marker, util.PadRight(m.ID, 16), DimStyle.Render(m.Name))
	}
	return nil
}

// pickConversation resolves a 1-based list index or an ID prefix.
func pickConversation(all model.Conversations, ref string) (model.Conversation, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(all) {
			return model.Conversation{}, &UsageError{Reason: fmt.Sprintf("no conversation %d (have %d)", n, len(all))}
		}
		return all[n-1], nil
	}
	for _, c := range all {
		if strings.HasPrefix(c.ID, ref) {
			return c, nil
		}
	}
	return model.Conversation{}, fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
}

// =============================================================================
// OUTPUT
// =============================================================================

func printWelcome(env *Env) {
	out := env.out()
	fmt.Fprintln(out, TitleStyle.Render("streamchat")+DimStyle.Render(" "+Version))
	if sel := env.Controller.Store().State().SelectedConversation; sel != nil {
		fmt.Fprintf(out, "Conversation: %s  Model: %s\n", sel.Name, sel.Model)
	}
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands, Ctrl+C stops an answer, Ctrl+D exits."))
	fmt.Fprintln(out)
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, TitleStyle.Render("Commands"))
	rows := [][2]string{
		{"/new", "start a new conversation"},
		{"/list", "list conversations"},
		{"/select <n|id>", "switch conversation"},
		{"/show", "print the selected conversation"},
		{"/regen", "regenerate the last answer"},
		{"/edit <n> <text>", "replace message n and everything after it"},
		{"/delete <n>", "delete message n and the reply after it"},
		{"/copy", "copy the last answer to the clipboard"},
		{"/models", "list available models"},
		{"/model [id]", "show or set the model"},
		{"/temp <value>", "set the temperature"},
		{"/quit", "exit"},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %s %s\n", util.PadRight(r[0], 18), DimStyle.Render(r[1]))
	}
}

func printTranscript(w io.Writer, conv model.Conversation) {
	for i, msg := range conv.Messages {
		fmt.Fprintf(w, "%s %s\n%s\n\n",
			DimStyle.Render(fmt.Sprintf("[%d]", i+1)),
			LabelStyle.Render(msg.Role.DisplayName()),
			msg.Content)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
