// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package producer supplies the response byte stream for a chat turn.
//
// A Producer receives the conversation as it will be sent (the new user
// message already appended) and returns a stream of UTF-8 text. Any error
// returned by Stream is an acquisition failure; errors while reading the
// stream are reported through the reader.
package producer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/streamchat/internal/cloud"
	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/offline"
	"github.com/jeranaias/streamchat/internal/ollama"
)

// Producer opens the response stream for a conversation whose last message is msg.
type Producer interface {
	Stream(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error)
}

// Func adapts a function to Producer.
type Func func(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error)

// Stream calls f.
func (f Func) Stream(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
	return f(ctx, conv, msg)
}

// New builds the producer selected by cfg.Provider.
func New(cfg *config.Config) (Producer, error) {
	if endpoint := Endpoint(cfg); endpoint != "" {
		if err := offline.ValidateURL(endpoint, cfg.Offline); err != nil {
			return nil, fmt.Errorf("%s provider: %w", cfg.Provider, err)
		}
	}

	switch cfg.Provider {
	case config.ProviderHTTP:
		p, err := NewHTTP(HTTPOptions{
			URL:            cfg.HTTP.URL,
			APIKey:         cfg.HTTP.APIKey,
			ConnectTimeout: time.Duration(cfg.HTTP.ConnectTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case config.ProviderOllama:
		return ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL: cfg.Ollama.URL,
			Model:   cfg.Ollama.Model,
			Logger:  logging.For("ollama"),
		}), nil

	case config.ProviderOpenAI:
		c, err := cloud.NewClient(cloud.Options{
			APIKey:   cfg.Cloud.APIKey,
			BaseURL:  cfg.Cloud.BaseURL,
			OrgID:    cfg.Cloud.OrgID,
			Model:    cfg.Cloud.Model,
			Referrer: cfg.Cloud.Referrer,
			Title:    cfg.Cloud.Title,
		})
		if err != nil {
			return nil, err
		}
		return c, nil

	case config.ProviderEcho:
		return &Echo{
			ChunkSize: cfg.Echo.ChunkSize,
			Delay:     time.Duration(cfg.Echo.DelayMs) * time.Millisecond,
		}, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// Endpoint returns the URL the configured provider connects to, or "" for
// providers that stay in process.
func Endpoint(cfg *config.Config) string {
	switch cfg.Provider {
	case config.ProviderHTTP:
		return cfg.HTTP.URL
	case config.ProviderOllama:
		return cfg.Ollama.URL
	case config.ProviderOpenAI:
		return cfg.Cloud.BaseURL
	}
	return ""
}

// =============================================================================
// HEALTH
// =============================================================================

// checker is implemented by producers whose backend can be checked before
// the first request.
type checker interface {
	CheckRunning(ctx context.Context) error
}

// BackendError reports an unreachable backend. Error returns a hint meant
// for the user; the transport error is available through Unwrap.
type BackendError struct {
	Hint string
	Err  error
}

func (e *BackendError) Error() string {
	return e.Hint
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Check asks p's backend whether it is reachable when p supports it and returns nil otherwise.
func Check(ctx context.Context, p Producer) error {
	c, ok := p.(checker)
	if !ok {
		return nil
	}
	err := c.CheckRunning(ctx)
	if err == nil {
		return nil
	}
	if oc, ok := p.(*ollama.Client); ok && ollama.IsNotRunning(err) {
		return &BackendError{
			Hint: fmt.Sprintf("Ollama is not running at %s, start it with `ollama serve`", oc.Config().BaseURL),
			Err:  err,
		}
	}
	return err
}
