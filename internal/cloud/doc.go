// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud streams chat completions from OpenAI-compatible APIs.
//
// OpenAI itself and OpenRouter are both reached through go-openai; the
// OpenRouter attribution headers are added by a wrapping transport when a
// referrer or title is configured. Client.Stream exposes the streamed
// deltas as a plain byte stream.
//
// API keys are never logged.
package cloud
