// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat view for streamchat.

The view never owns conversation state. It renders what the session
controller publishes: state changes arrive as StateMsg through a store
subscription and streamed responses as SnapshotMsg through the controller's
observer. Both are delivered with tea.Program.Send via a ProgramRef, so the
program can be created after the controller.

# Key Components

## Model (model.go)

The Model holds the viewport, spinner, help bar and input renderer. Every
controller call that dispatches state runs inside a tea.Cmd, never inside
Update, because subscribers send back into the program.

## Input (input.go)

InputRenderer is the input strategy. The default wraps a bubbles textarea:

	Enter       send
	Alt+Enter   newline
	Esc         stop the stream
	Ctrl+R      regenerate the last answer
	Ctrl+G      jump to bottom

## Autoscroll

Viewport rows are converted to scroll units (rows * RowHeight) before they
reach the autoscroll controller. Snapshot-driven scrolling is rate limited
by the controller; a rejected scroll schedules one retry tick.
*/
package chat
