// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
)

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 1024

// HTTPOptions configure an HTTP producer.
type HTTPOptions struct {
	URL    string
	APIKey string

	// ConnectTimeout bounds the wait for response headers. Zero means 10s.
	ConnectTimeout time.Duration

	// Client replaces the default client, mostly for tests.
	Client *http.Client
}

// HTTP posts the conversation to an endpoint that answers with a raw text
// stream, and hands the response body to the consumer unchanged.
type HTTP struct {
	url    string
	apiKey string
	client *http.Client
}

// ChatRequest is the JSON body sent by the HTTP producer.
type ChatRequest struct {
	Model       model.OpenAIModel `json:"model"`
	Messages    []model.Message   `json:"messages"`
	Prompt      string            `json:"prompt"`
	Temperature float64           `json:"temperature"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Body)
	}
	return e.Status
}

// NewHTTP creates an HTTP producer.
func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("http producer: url is required")
	}

	client := opts.Client
	if client == nil {
		timeout := opts.ConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = timeout
		client = &http.Client{Transport: transport}
	}

	return &HTTP{url: opts.URL, apiKey: opts.APIKey, client: client}, nil
}

// Stream implements Producer.
func (p *HTTP) Stream(ctx context.Context, conv model.Conversation, msg model.Message) (io.ReadCloser, error) {
	_ = msg // already the last message of conv

	body, err := json.Marshal(ChatRequest{
		Model:       conv.Model,
		Messages:    conv.Messages,
		Prompt:      conv.Prompt,
		Temperature: conv.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp.Body, nil
}
