// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"
	"testing"

	"github.com/jeranaias/streamchat/internal/model"
)

func TestFormatHistory(t *testing.T) {
	if got := FormatHistory(nil, ""); got != "No conversations found." {
		t.Errorf("empty = %q", got)
	}

	a := model.NewConversation(model.DefaultSettings())
	a.Name = "First"
	b := model.NewConversation(model.DefaultSettings())
	b.Name = "Second"
	out := FormatHistory(model.Conversations{a, b}, b.ID)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[3], "* ") || !strings.Contains(lines[3], "Second") {
		t.Errorf("selected marker missing: %q", lines[3])
	}
}
