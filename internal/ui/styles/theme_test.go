// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ExplicitModes(t *testing.T) {
	dark := NewTheme("dark")
	assert.True(t, dark.IsDark)
	assert.Equal(t, ModeDark, dark.LightMode())

	light := NewTheme(" LIGHT ")
	assert.False(t, light.IsDark)
	assert.Equal(t, ModeLight, light.Mode)
	assert.Equal(t, ModeLight, light.LightMode())
}

func TestNewTheme_UnknownModeIsAuto(t *testing.T) {
	th := NewTheme("neon")
	assert.Equal(t, ModeAuto, th.Mode)
	assert.Contains(t, []string{ModeDark, ModeLight}, th.LightMode())
}

func TestRenderStatus_Indicators(t *testing.T) {
	tests := []struct {
		render func(string) string
		want   string
	}{
		{RenderSuccess, IndicatorSuccess},
		{RenderError, IndicatorError},
		{RenderWarning, IndicatorWarning},
		{RenderInfo, IndicatorInfo},
	}
	for _, tt := range tests {
		out := tt.render("saved")
		assert.True(t, strings.Contains(out, tt.want), out)
		assert.Contains(t, out, "saved")
	}
}
