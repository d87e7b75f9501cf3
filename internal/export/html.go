// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmutil "github.com/yuin/goldmark/util"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations as a standalone page with embedded CSS.
// Message text is rendered as GitHub-flavored Markdown with highlighted
// fenced code; raw HTML inside a message is dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	options := normalize(opts)
	code := newCodeRenderer(options.Theme)
	return &HTMLExporter{
		options: options,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				renderer.WithNodeRenderers(gmutil.Prioritized(code, 100)),
			),
		),
	}
}

// Export converts a conversation to HTML.
func (e *HTMLExporter) Export(conv model.Conversation) ([]byte, error) {
	var sb strings.Builder
	title := html.EscapeString(conv.Name)

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("<meta name=\"generator\" content=\"streamchat\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", title)
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", e.options.Theme)

	sb.WriteString("<header class=\"header\">\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "<div class=\"metadata\"><span>Model: %s</span><span>Temperature: %g</span><span>Messages: %d</span></div>\n",
			html.EscapeString(conv.Model.String()), conv.Temperature, len(conv.Messages))
	}
	sb.WriteString("</header>\n<main class=\"conversation\">\n")

	for _, msg := range conv.Messages {
		body, err := e.renderContent(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("render message: %w", err)
		}
		fmt.Fprintf(&sb, "<div class=\"message %s-message\">\n<div class=\"role-label\">%s</div>\n<div class=\"message-content\">\n%s</div>\n</div>\n",
			html.EscapeString(string(msg.Role)), html.EscapeString(msg.Role.DisplayName()), body)
	}

	sb.WriteString("</main>\n")
	fmt.Fprintf(&sb, "<footer class=\"footer\">Exported from streamchat on %s</footer>\n",
		html.EscapeString(formatTimestamp(e.options.Now())))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

func (e *HTMLExporter) renderContent(content string) (string, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// codeRenderer replaces goldmark's fenced code output with chroma markup
// using inline styles, so the page stays self-contained.
type codeRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newCodeRenderer(theme string) *codeRenderer {
	name := "dracula"
	if theme == "light" {
		name = "github"
	}
	style := chromaStyles.Get(name)
	if style == nil {
		style = chromaStyles.Fallback
	}
	return &codeRenderer{
		style:     style,
		formatter: chromahtml.New(chromahtml.TabWidth(4)),
	}
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeRenderer) renderFencedCode(w gmutil.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Analyse(code.String())
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code.String())
	if err == nil {
		err = r.formatter.Format(w, r.style, iterator)
	}
	if err != nil {
		// Plain escaped block
		_, _ = w.WriteString("<pre><code>")
		_, _ = w.WriteString(html.EscapeString(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
.dark-theme {
  --bg: #1a1b26; --panel: #24283b; --border: #414868;
  --text: #c0caf5; --muted: #565f89;
  --user: #1f2335; --assistant: #24283b; --code: #16161e;
  --accent-user: #7dcfff; --accent-assistant: #bb9af7;
}
.light-theme {
  --bg: #ffffff; --panel: #f7f8fa; --border: #e1e4e8;
  --text: #24292e; --muted: #6a737d;
  --user: #f1f8ff; --assistant: #ffffff; --code: #f6f8fa;
  --accent-user: #0366d6; --accent-assistant: #6f42c1;
}
body {
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
  line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px;
}
.container { max-width: 900px; margin: 0 auto; background: var(--panel); border-radius: 12px; overflow: hidden; }
.header { padding: 32px; border-bottom: 2px solid var(--border); }
.header h1 { font-size: 26px; margin-bottom: 12px; }
.metadata { display: flex; gap: 16px; font-size: 14px; color: var(--muted); }
.conversation { padding: 24px 32px; }
.message { padding: 16px 20px; margin-bottom: 16px; border-radius: 8px; border-left: 4px solid var(--border); }
.user-message { background: var(--user); border-left-color: var(--accent-user); }
.assistant-message { background: var(--assistant); border-left-color: var(--accent-assistant); }
.role-label { font-weight: 700; font-size: 14px; margin-bottom: 8px; color: var(--muted); }
.message-content p { margin-bottom: 12px; }
.message-content ul, .message-content ol { margin: 0 0 12px 24px; }
.message-content pre { background: var(--code); padding: 12px; border-radius: 6px; overflow-x: auto; margin-bottom: 12px; }
.message-content code { font-family: "SF Mono", Monaco, "Fira Code", monospace; font-size: 14px; }
.message-content table { border-collapse: collapse; margin-bottom: 12px; }
.message-content th, .message-content td { border: 1px solid var(--border); padding: 4px 8px; }
.footer { padding: 16px 32px; font-size: 13px; color: var(--muted); border-top: 1px solid var(--border); }
</style>
`
