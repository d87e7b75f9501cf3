// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
)

// maxContextFileSize limits files attached with --file.
const maxContextFileSize = 100 * 1024

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

// formatBytes formats a byte count for display.
func formatBytes(bytes int) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// readFileForContext reads a file to attach to a question.
func readFileForContext(path string) (string, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return "", &UsageError{Reason: path + " is a directory"}
	}
	if info.Size() > maxContextFileSize {
		return "", &UsageError{Reason: fmt.Sprintf("%s is too large (%s, limit %s)",
			path, formatBytes(int(info.Size())), formatBytes(maxContextFileSize))}
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	return string(data), nil
}

// withFileContext prepends a fenced file to the question.
func withFileContext(question, name, content string) string {
	return fmt.Sprintf("File: %s\n```\n%s\n```\n\n%s", filepath.Base(name), strings.TrimRight(content, "\n"), question)
}

// resolveConversation finds a stored conversation by ID or unique ID prefix.
func resolveConversation(ts *storage.TranscriptStore, id string) (model.Conversation, error) {
	c, err := ts.Find(id)
	if err == nil {
		return c, nil
	}

	history, loadErr := ts.LoadHistory()
	if loadErr != nil {
		return model.Conversation{}, loadErr
	}
	var matches model.Conversations
	for _, h := range history {
		if strings.HasPrefix(h.ID, id) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Conversation{}, err
	default:
		return model.Conversation{}, &UsageError{Reason: fmt.Sprintf("id prefix %q matches %d conversations", id, len(matches))}
	}
}
