// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline checks response-stream endpoints against the offline
// policy. In offline mode only loopback hosts may be contacted, so a local
// Ollama or a self-hosted OpenAI-compatible server keeps working while
// hosted APIs are refused before any request is made.
//
// # Usage
//
//	if err := offline.ValidateURL(cfg.Ollama.URL, cfg.Offline); err != nil {
//		return err
//	}
package offline
