// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"strings"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/util"
)

// FormatHistory formats conversations as a table for the history command.
func FormatHistory(cs model.Conversations, selectedID string) string {
	if len(cs) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	sb.WriteString("  " + util.PadRight("ID", 10) + " " + util.PadRight("Name", 34) + " " + util.PadRight("Messages", 8) + " Model\n")
	sb.WriteString("  " + strings.Repeat("-", 66) + "\n")

	for _, c := range cs {
		marker := "  "
		if c.ID == selectedID {
			marker = "* "
		}
		id := c.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(marker +
			util.PadRight(id, 10) + " " +
			util.PadRight(util.TruncateWidth(c.Name, 34), 34) + " " +
			util.PadRight(fmt.Sprint(len(c.Messages)), 8) + " " +
			c.Model.Name + "\n")
	}
	return sb.String()
}
