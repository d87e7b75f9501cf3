// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the streamchat packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width aware truncation (go-runewidth)
//   - FirstLine: single-line previews for list views
//
// File Operations:
//   - WriteFile: crash-safe replace via temp file, fsync and rename,
//     optionally syncing the parent directory
//   - RemoveStaleTemps: sweep temp files an interrupted write left behind
//
// # Usage
//
//	display := util.TruncateWidth(conv.Name, 40)
//	err := util.WriteFile(path, data, util.WriteOptions{SyncDir: true})
package util
