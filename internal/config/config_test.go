// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STREAMCHAT_HOME", dir)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.UI.ScrollTolerance != 30 {
		t.Errorf("ScrollTolerance = %d, want 30", cfg.UI.ScrollTolerance)
	}
	if cfg.UI.ScrollIntervalMs != 250 {
		t.Errorf("ScrollIntervalMs = %d, want 250", cfg.UI.ScrollIntervalMs)
	}
	if cfg.Defaults.Model != model.GPT35 {
		t.Errorf("Defaults.Model = %q, want %q", cfg.Defaults.Model, model.GPT35)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STREAMCHAT_HOME", dir)

	cfg, err := LoadFromPath(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().Provider, cfg.Provider)
}

func TestLoadFromPath_TOML(t *testing.T) {
	path := writeConfig(t, `
provider = "echo"

[storage]
backend = "sqlite"

[defaults]
model = "gpt-4"
temperature = 0.4

[ui]
scroll_tolerance = 12
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, ProviderEcho, cfg.Provider)
	require.Equal(t, BackendSQLite, cfg.Storage.Backend)
	require.Equal(t, 0.4, cfg.Defaults.Temperature)
	require.Equal(t, 12, cfg.UI.ScrollTolerance)
	// Untouched sections keep their defaults.
	require.Equal(t, model.DefaultSystemPrompt, cfg.Defaults.Prompt)
	require.Equal(t, 250, cfg.UI.ScrollIntervalMs)

	s := cfg.Settings()
	require.Equal(t, model.GPT4, s.Model.ID)
	require.Equal(t, 8000, s.Model.TokenLimit)
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `provider = "ollama"`)
	t.Setenv("STREAMCHAT_PROVIDER", "openai")
	t.Setenv("STREAMCHAT_CLOUD_API_KEY", "sk-test")
	t.Setenv("STREAMCHAT_UI_SCROLL_TOLERANCE", "5")
	t.Setenv("STREAMCHAT_METRICS_ENABLED", "true")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, cfg.Provider)
	require.Equal(t, "sk-test", cfg.Cloud.APIKey)
	require.Equal(t, 5, cfg.UI.ScrollTolerance)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromPath_DotEnv(t *testing.T) {
	path := writeConfig(t, "")
	envFile := filepath.Join(filepath.Dir(path), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STREAMCHAT_ECHO_DELAY_MS=7\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("STREAMCHAT_ECHO_DELAY_MS") })

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Echo.DelayMs)
}

func TestLoadFromPath_OpenAIKeyFallback(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "sk-fallback", cfg.Cloud.APIKey)
}

func TestLoadFromPath_BadTOML(t *testing.T) {
	path := writeConfig(t, "provider = ")
	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown provider", func(c *Config) { c.Provider = "carrier-pigeon" }, "provider"},
		{"http without url", func(c *Config) { c.Provider = ProviderHTTP }, "http.url"},
		{"bad ollama url", func(c *Config) { c.Ollama.URL = "ftp://x" }, "ollama.url"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"temperature range", func(c *Config) { c.Defaults.Temperature = 3 }, "defaults.temperature"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"negative tolerance", func(c *Config) { c.UI.ScrollTolerance = -1 }, "ui.scroll_tolerance"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidateErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want error on %s", err, tc.field)
			}
		})
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STREAMCHAT_HOME", dir)
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Provider = ProviderEcho
	cfg.UI.Theme = "dark"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, ProviderEcho, loaded.Provider)
	require.Equal(t, "dark", loaded.UI.Theme)
}

func TestDataDirAndLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STREAMCHAT_HOME", dir)

	cfg := Default()
	data, err := cfg.DataDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "data"), data)

	logFile, err := cfg.LogFile()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "streamchat.log"), logFile)

	cfg.Storage.Dir = "/tmp/elsewhere"
	data, _ = cfg.DataDir()
	require.Equal(t, "/tmp/elsewhere", data)
}

// TestConfig_ConcurrentAccess checks Global and SetGlobal under the race detector.
func TestConfig_ConcurrentAccess(t *testing.T) {
	t.Setenv("STREAMCHAT_HOME", t.TempDir())
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
