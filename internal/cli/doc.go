// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the non-TUI commands of streamchat.

# Commands

	streamchat                     Start the TUI (default)
	streamchat ask "question"      Stream one answer to stdout
	streamchat chat                Line-mode REPL with input history
	streamchat history [sub]       List, show, export or clear stored conversations
	streamchat config [show|path]  Show the effective configuration
	streamchat version             Show version information

# Output

Human-readable output goes to Env.Out. With --json, list-style commands
print a JSONResponse instead and status text moves to Env.Err. Colors are
disabled when stdout is not a terminal or NO_COLOR is set.

Handlers return errors; main maps them to exit codes with GetExitCode.
*/
package cli
