// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the structured logger used by every package.
//
// The TUI owns stdout, so logs go to a file by default. Until Init is called
// the global logger discards everything, which keeps tests and one-shot
// commands quiet.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level      string    // debug, info, warn, error
	Pretty     bool      // console writer instead of JSON
	File       string    // log file path; empty means Output
	Output     io.Writer // used when File is empty; nil discards
	WithCaller bool
}

var (
	mu     sync.RWMutex
	global = zerolog.Nop()
	closer io.Closer
)

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger from cfg. The returned closer releases the log file,
// if one was opened.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var (
		out io.Writer = io.Discard
		c   io.Closer
	)
	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		out, c = f, f
	case cfg.Output != nil:
		out = cfg.Output
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.File != "",
		}
	}

	ctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().
		Timestamp().
		Str("service", "streamchat")
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), c, nil
}

// Init replaces the global logger. Calling it again closes the previous file.
func Init(cfg Config) error {
	l, c, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
	}
	global, closer = l, c
	return nil
}

// Close flushes and releases the global log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	global = zerolog.Nop()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// L returns the global logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// For returns a child of the global logger tagged with a component name.
func For(component string) zerolog.Logger {
	return L().With().Str("component", component).Logger()
}

// Set installs l as the global logger. Used by tests to capture output.
func Set(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}
