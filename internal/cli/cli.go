// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and version output.

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdHistory:
		return "history"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	JSON       bool
	Model      string
	Provider   string
	ConfigPath string
	Offline    bool

	// Command-specific
	Query string
	File  string
	Save  bool
	Plain bool
	Raw   []string
}

const usageText = `streamchat - terminal chat client with streamed responses

Usage:
  streamchat                      Start the TUI (default)
  streamchat ask "question"       Ask a single question
  streamchat chat                 Interactive line-mode chat
  streamchat history [subcommand] Stored conversations
  streamchat config [show|path|init]
                                  Configuration
  streamchat version              Version information

Global flags:
  -m, --model NAME        Model for new conversations
  -p, --provider NAME     Stream producer: http, ollama, openai, echo
  -c, --config PATH       Config file (default ~/.streamchat/config.toml)
  -q, --quiet             Minimal output
      --json              JSON output where supported
      --offline           Only connect to producers on this machine

Ask flags:
  -f, --file PATH         Prepend a file to the question
      --save              Store the exchange in history
      --plain             Do not re-render the answer as markdown

History subcommands:
  list                            List conversations (default)
  show <id>                       Print a conversation
  export <id> [--format md|json|html] [--output PATH | --dir DIR]
  clear --yes                     Delete all stored conversations

REPL commands:
  /new  /list  /select <n>  /regen  /edit <n> <text>  /help  /quit
  Ctrl+C stops the response that is streaming.

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// VersionData is the JSON shape of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion prints version information.
func HandleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	fmt.Fprintf(w, "streamchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	return nil
}

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args
	case "ask", "a":
		parseAskArgs(&args, remaining)
		return CmdAsk, args
	case "chat", "repl":
		return CmdChat, args
	case "history", "h":
		return CmdHistory, args
	case "config":
		return CmdConfig, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		// Bare text is a question.
		parseAskArgs(&args, append([]string{cmd}, remaining...))
		return CmdAsk, args
	}
}

// parseGlobalFlags extracts flags valid for every command.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "--json":
			args.JSON = true
		case "--offline":
			args.Offline = true
		case "-m", "--model", "-p", "--provider", "-c", "--config":
			if i+1 < len(argv) {
				i++
				setGlobal(&args, arg, argv[i])
			}
		default:
			if name, value, ok := strings.Cut(arg, "="); ok && isGlobalValueFlag(name) {
				setGlobal(&args, name, value)
			} else {
				remaining = append(remaining, arg)
			}
		}
	}
	return remaining, args
}

func isGlobalValueFlag(name string) bool {
	switch name {
	case "--model", "--provider", "--config":
		return true
	}
	return false
}

func setGlobal(args *Args, flag, value string) {
	switch flag {
	case "-m", "--model":
		args.Model = value
	case "-p", "--provider":
		args.Provider = value
	case "-c", "--config":
		args.ConfigPath = value
	}
}

// parseAskArgs parses ask flags; everything else is the question.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-f", "--file":
			if i+1 < len(remaining) {
				i++
				args.File = remaining[i]
			}
		case "--save":
			args.Save = true
		case "--plain", "--raw":
			args.Plain = true
		default:
			if strings.HasPrefix(arg, "--file=") {
				args.File = strings.TrimPrefix(arg, "--file=")
			} else {
				query = append(query, arg)
			}
		}
	}

	args.Query = strings.Join(query, " ")
}
