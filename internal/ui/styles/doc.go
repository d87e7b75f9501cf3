// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the streamchat TUI.

All colors are Lip Gloss AdaptiveColor values, so the same palette works on
light and dark terminals. The Theme resolves which variant applies, either
from the configured mode or by asking the terminal:

	theme := styles.NewTheme("auto")
	if theme.IsDark {
		// dark terminal detected
	}

# Colors (colors.go)

	Purple  - assistant messages, selections
	Cyan    - user highlights, key hints
	Emerald - success
	Amber   - warnings, the jump-to-bottom hint
	Rose    - errors

Status helpers (RenderSuccess, RenderError, ...) prefix an indicator so the
status reads without color.
*/
package styles
