// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations as Markdown. Message text is
// written as-is, since it usually is Markdown already.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	return &MarkdownExporter{options: normalize(opts)}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv model.Conversation) ([]byte, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Name))
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "Model: %s | Temperature: %g | Messages: %d\n\n",
			conv.Model, conv.Temperature, len(conv.Messages))
	}
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		fmt.Fprintf(&sb, "**%s**:\n\n", msg.Role.DisplayName())
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "*Exported from streamchat on %s*\n", formatTimestamp(e.options.Now()))
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// escapeMarkdown escapes characters that would start markup in a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"[", `\[`,
		"]", `\]`,
		"#", `\#`,
	)
	return r.Replace(s)
}
