// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/model"
)

func testConversation() model.Conversation {
	c := model.NewConversation(model.DefaultSettings())
	c.Name = "Go *pointers*"
	return c.
		WithMessage(model.UserMessage("What is a pointer?")).
		WithMessage(model.AssistantMessage("A **pointer** holds an address.\n\n```go\np := &x\n```"))
}

func fixedOptions() *Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2025, 3, 1, 15, 4, 0, 0, time.UTC) }
	return opts
}

func TestFor(t *testing.T) {
	for _, f := range append(Formats, "markdown", "HTML", "") {
		_, err := For(f, nil)
		assert.NoError(t, err, "format %q", f)
	}

	_, err := For("pdf", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestMarkdownExport(t *testing.T) {
	data, err := NewMarkdownExporter(fixedOptions()).Export(testConversation())
	require.NoError(t, err)
	md := string(data)

	assert.True(t, strings.HasPrefix(md, `# Go \*pointers\*`))
	assert.Contains(t, md, "**You**:\n\nWhat is a pointer?")
	assert.Contains(t, md, "```go\np := &x\n```")
	assert.Contains(t, md, "Messages: 2")
	assert.Contains(t, md, "March 1, 2025 at 3:04 PM")
}

func TestMarkdownExport_NoMetadata(t *testing.T) {
	data, err := NewMarkdownExporter(&Options{}).Export(testConversation())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Temperature")
	assert.NotContains(t, string(data), "Exported from")
}

func TestJSONExport(t *testing.T) {
	conv := testConversation()
	data, err := NewJSONExporter(nil).Export(conv)
	require.NoError(t, err)

	var back model.Conversation
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, conv.ID, back.ID)
	assert.Len(t, back.Messages, 2)

	empty, err := NewJSONExporter(nil).Export(model.Conversation{ID: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"messages": []`)
}

func TestHTMLExport(t *testing.T) {
	conv := testConversation()
	conv = conv.WithMessage(model.UserMessage("<script>alert(1)</script> and <b>bold</b>"))

	data, err := NewHTMLExporter(fixedOptions()).Export(conv)
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "<title>Go *pointers*</title>")
	assert.Contains(t, page, "<strong>pointer</strong>")
	assert.Contains(t, page, "<pre")
	assert.Contains(t, page, "&amp;")
	assert.NotContains(t, page, "```")
	assert.Contains(t, page, `class="message user-message"`)
	assert.Contains(t, page, `class="dark-theme"`)
	assert.NotContains(t, page, "<script>")
}

func TestHTMLExport_LightTheme(t *testing.T) {
	data, err := NewHTMLExporter(&Options{Theme: "light"}).Export(testConversation())
	require.NoError(t, err)
	assert.Contains(t, string(data), `class="light-theme"`)
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := ExportToFile(testConversation(), NewJSONExporter(nil), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "conversation_Go_-pointers-_"))
	assert.Equal(t, ".json", filepath.Ext(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello world", "hello_world"},
		{`a/b\c:d`, "a-b-c-d"},
		{"", "conversation"},
		{"???", "conversation"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "sanitizeFilename(%q)", tt.in)
	}
}
