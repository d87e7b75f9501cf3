// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/streamchat/internal/model"
)

// Configuration constants.
const (
	// DefaultBaseURL is the OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// OpenRouterURL is the base URL for OpenRouter's OpenAI-compatible API.
	OpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultMaxRetries is the default number of retries when opening a stream.
	DefaultMaxRetries = 2

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second
)

// OpenRouterModels maps friendly names to full model identifiers.
var OpenRouterModels = map[string]string{
	"auto":   "openrouter/auto",
	"haiku":  "anthropic/claude-3-haiku",
	"sonnet": "anthropic/claude-3.5-sonnet",
	"gpt4o":  "openai/gpt-4o",
	"gpt4":   "openai/gpt-4-turbo",
}

// Error variables for common API errors.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// APIError is a non-success response from the API.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// Options configure a Client.
type Options struct {
	APIKey  string
	BaseURL string
	OrgID   string

	// Model overrides the conversation's model when set.
	Model string

	// Referrer and Title become OpenRouter's HTTP-Referer and X-Title headers.
	Referrer string
	Title    string

	MaxRetries int

	// HTTPClient replaces the default client, mostly for tests.
	HTTPClient *http.Client
}

// Client streams chat completions. Safe for concurrent use.
type Client struct {
	api        *openai.Client
	model      string
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// NewClient creates a client. It fails with ErrNotConfigured when no API key is given.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	config.OrgID = opts.OrgID

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Referrer != "" || opts.Title != "" {
		h := http.Header{}
		if opts.Referrer != "" {
			h.Set("HTTP-Referer", opts.Referrer)
		}
		if opts.Title != "" {
			h.Set("X-Title", opts.Title)
		}
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = headerTransport{rt: base, headers: h}
		httpClient = &wrapped
	}
	config.HTTPClient = httpClient

	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = DefaultMaxRetries
	}

	return &Client{
		api:        openai.NewClientWithConfig(config),
		model:      ResolveModel(opts.Model),
		maxRetries: retries,
		sleep:      sleepCtx,
	}, nil
}

// ResolveModel expands a friendly OpenRouter alias; other names pass through.
func ResolveModel(name string) string {
	if full, ok := OpenRouterModels[name]; ok {
		return full
	}
	return name
}

// ModelFor returns the model id sent for conv.
func (c *Client) ModelFor(conv model.Conversation) string {
	if c.model != "" {
		return c.model
	}
	if conv.Model.ID != "" {
		return conv.Model.ID
	}
	return model.DefaultModelID
}

// BuildRequest converts a conversation into a streaming completion request.
func BuildRequest(modelID string, conv model.Conversation) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(conv.Messages)+1)
	if conv.Prompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: conv.Prompt})
	}
	for _, m := range conv.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role.String(), Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    msgs,
		Temperature: float32(conv.Temperature),
		Stream:      true,
	}
}

// classifyError maps go-openai errors onto the package sentinels.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	status, code, msg := 0, "", err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		msg = apiErr.Message
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
	default:
		return err
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrInsufficientCredits, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	default:
		return &APIError{Code: code, Message: msg, Status: status}
	}
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	return false
}

// calculateBackoff returns the delay to wait before the next retry.
func calculateBackoff(attempt int) time.Duration {
	// 500ms, 1s, 2s, ...
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
