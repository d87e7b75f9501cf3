// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/config"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "*****", maskSecret("abcde"))
	assert.Equal(t, "********wxyz", maskSecret("sk-1234567890wxyz"))
}

func TestHandleConfig_InitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer
	env := &Env{Config: config.Default(), Out: &out, Err: &bytes.Buffer{}}

	require.NoError(t, HandleConfig(env, Args{Raw: []string{"init"}}, path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	err = HandleConfig(env, Args{Raw: []string{"init"}}, path)
	assert.Error(t, err, "init refuses to overwrite")

	out.Reset()
	require.NoError(t, HandleConfig(env, Args{Raw: []string{"path"}}, path))
	assert.Contains(t, out.String(), path)
}

func TestHandleConfig_ShowMasksKeys(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.APIKey = "sk-secret-value-1234"
	var out bytes.Buffer
	env := &Env{Config: cfg, Out: &out}

	require.NoError(t, HandleConfig(env, Args{Raw: []string{"show"}}, "unused"))
	assert.NotContains(t, out.String(), "sk-secret-value-1234")
	assert.Contains(t, out.String(), "1234")
}
