// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out as Markdown, JSON or HTML.
//
// # Supported Formats
//
//   - Markdown: role headings and the raw message text
//   - JSON: the stored conversation shape, indented
//   - HTML: a standalone page with message markdown rendered by goldmark
//
// # Usage
//
//	exp, err := export.For("html", export.DefaultOptions())
//	data, err := exp.Export(conv)
//
// Or write a timestamped file into a directory:
//
//	path, err := export.ExportToFile(conv, exp, "./exports")
package export
