// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for streamchat.
//
// Configuration is layered: built-in defaults, then ~/.streamchat/config.toml,
// then .env files, then STREAMCHAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/jeranaias/streamchat/internal/model"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "STREAMCHAT_"

// Providers that can produce a response stream.
const (
	ProviderHTTP   = "http"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete streamchat configuration.
type Config struct {
	// Provider selects the stream producer: http, ollama, openai or echo.
	Provider string `toml:"provider" env:"PROVIDER"`
	// Offline refuses producer endpoints that are not on this machine.
	Offline bool `toml:"offline" env:"OFFLINE"`

	HTTP     HTTPConfig     `toml:"http" envPrefix:"HTTP_"`
	Ollama   OllamaConfig   `toml:"ollama" envPrefix:"OLLAMA_"`
	Cloud    CloudConfig    `toml:"cloud" envPrefix:"CLOUD_"`
	Echo     EchoConfig     `toml:"echo" envPrefix:"ECHO_"`
	Storage  StorageConfig  `toml:"storage" envPrefix:"STORAGE_"`
	Defaults DefaultsConfig `toml:"defaults" envPrefix:"DEFAULT_"`
	UI       UIConfig       `toml:"ui" envPrefix:"UI_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
	Metrics  MetricsConfig  `toml:"metrics" envPrefix:"METRICS_"`
}

// HTTPConfig configures the plain HTTP text-stream producer.
type HTTPConfig struct {
	// URL receives a POST with the conversation and answers with a text stream.
	URL    string `toml:"url" env:"URL"`
	APIKey string `toml:"api_key" env:"API_KEY"`
	// ConnectTimeoutSec bounds connection setup only. Reads never time out.
	ConnectTimeoutSec int `toml:"connect_timeout_sec" env:"CONNECT_TIMEOUT_SEC"`
}

// OllamaConfig configures the local Ollama producer.
type OllamaConfig struct {
	URL string `toml:"url" env:"URL"`
	// Model overrides the conversation's model ID when set.
	Model string `toml:"model" env:"MODEL"`
}

// CloudConfig configures the OpenAI-compatible producer (OpenAI, OpenRouter).
type CloudConfig struct {
	BaseURL string `toml:"base_url" env:"BASE_URL"`
	APIKey  string `toml:"api_key" env:"API_KEY"`
	OrgID   string `toml:"org_id" env:"ORG_ID"`
	// Model overrides the conversation's model ID when set.
	Model string `toml:"model" env:"MODEL"`
	// Referrer and Title are sent as OpenRouter attribution headers.
	Referrer string `toml:"referrer" env:"REFERRER"`
	Title    string `toml:"title" env:"TITLE"`
}

// EchoConfig configures the offline echo producer.
type EchoConfig struct {
	ChunkSize int `toml:"chunk_size" env:"CHUNK_SIZE"`
	DelayMs   int `toml:"delay_ms" env:"DELAY_MS"`
}

// StorageConfig configures transcript persistence.
type StorageConfig struct {
	// Backend is "file" (one JSON document per key) or "sqlite".
	Backend string `toml:"backend" env:"BACKEND"`
	// Dir holds the store. Empty means ~/.streamchat/data.
	Dir string `toml:"dir" env:"DIR"`
	// Watch reloads history when another process rewrites it (file backend).
	Watch bool `toml:"watch" env:"WATCH"`
}

// DefaultsConfig holds the settings new conversations start with.
type DefaultsConfig struct {
	Model       string  `toml:"model" env:"MODEL"`
	Prompt      string  `toml:"prompt" env:"PROMPT"`
	Temperature float64 `toml:"temperature" env:"TEMPERATURE"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" env:"THEME"`
	// WordWrap is the markdown wrap width
	WordWrap int `toml:"word_wrap" env:"WORD_WRAP"`
	// Markdown renders assistant messages with glamour
	Markdown bool `toml:"markdown" env:"MARKDOWN"`
	// ScrollTolerance is the distance from the bottom, in scroll units of
	// 16 per row, that still counts as "at bottom"
	ScrollTolerance int `toml:"scroll_tolerance" env:"SCROLL_TOLERANCE"`
	// ScrollIntervalMs throttles automatic scrolling while streaming
	ScrollIntervalMs int `toml:"scroll_interval_ms" env:"SCROLL_INTERVAL_MS"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
	// File is the log destination. Empty means ~/.streamchat/streamchat.log.
	File   string `toml:"file" env:"FILE"`
	Pretty bool   `toml:"pretty" env:"PRETTY"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	Listen  string `toml:"listen" env:"LISTEN"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Provider: ProviderOllama,
		HTTP: HTTPConfig{
			ConnectTimeoutSec: 10,
		},
		Ollama: OllamaConfig{
			URL:   "http://127.0.0.1:11434",
			Model: "llama3.2",
		},
		Cloud: CloudConfig{
			BaseURL: "https://api.openai.com/v1",
			Title:   "streamchat",
		},
		Echo: EchoConfig{
			ChunkSize: 4,
			DelayMs:   20,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
		},
		Defaults: DefaultsConfig{
			Model:       model.DefaultModelID,
			Prompt:      model.DefaultSystemPrompt,
			Temperature: model.DefaultTemperature,
		},
		UI: UIConfig{
			Theme:            "auto",
			WordWrap:         80,
			Markdown:         true,
			ScrollTolerance:  30,
			ScrollIntervalMs: 250,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}

// Settings returns the conversation defaults as model settings.
func (c *Config) Settings() model.Settings {
	return model.SettingsFor(c.Defaults.Model, c.Defaults.Prompt, c.Defaults.Temperature)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the streamchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".streamchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns the resolved storage directory.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// LogFile returns the resolved log file path.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "streamchat.log"), nil
}

// ensureSecurePermissions tightens config files that may hold API keys to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path. A missing file is not an error;
// the defaults are used. Environment overrides are applied last.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		}
	}

	LoadDotEnv(filepath.Dir(path))

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and from dir.
// Variables already set in the environment win. Missing files are ignored.
func LoadDotEnv(dir string) {
	candidates := []string{".env"}
	if dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", p, err)
		}
	}
}

// ApplyEnvOverrides applies STREAMCHAT_* environment variables, for example
// STREAMCHAT_PROVIDER, STREAMCHAT_CLOUD_API_KEY or STREAMCHAT_UI_SCROLL_TOLERANCE.
// OPENAI_API_KEY is honoured when no cloud key is configured.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if c.Cloud.APIKey == "" {
		c.Cloud.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// SetDefaults fills zero values left by partial config files.
func (c *Config) SetDefaults() {
	d := Default()
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.HTTP.ConnectTimeoutSec <= 0 {
		c.HTTP.ConnectTimeoutSec = d.HTTP.ConnectTimeoutSec
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = d.Cloud.BaseURL
	}
	if c.Echo.ChunkSize <= 0 {
		c.Echo.ChunkSize = d.Echo.ChunkSize
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Defaults.Model == "" {
		c.Defaults.Model = d.Defaults.Model
	}
	if c.Defaults.Prompt == "" {
		c.Defaults.Prompt = d.Defaults.Prompt
	}
	if c.Defaults.Temperature == 0 {
		c.Defaults.Temperature = d.Defaults.Temperature
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap <= 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.UI.ScrollIntervalMs <= 0 {
		c.UI.ScrollIntervalMs = d.UI.ScrollIntervalMs
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = d.Metrics.Listen
	}
}

// =============================================================================
// SAVE
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# streamchat configuration file")
	fmt.Fprintln(file, "# Environment variables (STREAMCHAT_*) override these values.")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch c.Provider {
	case ProviderHTTP:
		if c.HTTP.URL == "" {
			errs = append(errs, ValidationError{Field: "http.url", Message: "required when provider is http"})
		} else if err := validateURL(c.HTTP.URL); err != nil {
			errs = append(errs, ValidationError{Field: "http.url", Message: err.Error()})
		}
	case ProviderOllama:
		if err := validateURL(c.Ollama.URL); err != nil {
			errs = append(errs, ValidationError{Field: "ollama.url", Message: err.Error()})
		}
	case ProviderOpenAI:
		if err := validateURL(c.Cloud.BaseURL); err != nil {
			errs = append(errs, ValidationError{Field: "cloud.base_url", Message: err.Error()})
		}
	case ProviderEcho:
	default:
		errs = append(errs, ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: http, ollama, openai, echo", c.Provider),
		})
	}

	if c.Storage.Backend != BackendFile && c.Storage.Backend != BackendSQLite {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite", c.Storage.Backend),
		})
	}

	if c.Defaults.Temperature < 0 || c.Defaults.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "defaults.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %v", c.Defaults.Temperature),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.ScrollTolerance < 0 {
		errs = append(errs, ValidationError{Field: "ui.scroll_tolerance", Message: "must not be negative"})
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, ValidationError{Field: "metrics.listen", Message: "required when metrics are enabled"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access and falls back to defaults on error.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
