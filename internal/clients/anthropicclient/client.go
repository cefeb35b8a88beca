// Package anthropicclient implements the LM Client contract against
// the Anthropic Messages API, trimmed to the transport and
// error-mapping concerns this module cares about (no tools, vision, or
// streaming support, which nothing in this repo's Program/Adapter path
// exercises).
package anthropicclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/simbaerr"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 4096
	defaultTimeout   = 60 * time.Second
	apiVersion       = "2023-06-01"
)

// Client is an Anthropic Messages API transport implementing
// clients.Client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *retryablehttp.Client
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New builds a Client. It owns its own retryablehttp transport; the
// module's clients.RetryingClient/CircuitBreaker/RateLimitedClient
// wrappers compose around it for the outer policy layers, so this
// client's own retry loop is disabled and every request is sent once.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropicclient: API key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0 // retries are handled by clients.RetryingClient
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{apiKey: opts.APIKey, baseURL: opts.BaseURL, httpClient: retryClient}, nil
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature,omitempty"`
	System      string       `json:"system,omitempty"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Content    []apiContentBlock `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      apiUsage          `json:"usage"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Request implements clients.Client.
func (c *Client) Request(ctx context.Context, messages []clients.Message, config clients.Config) (*clients.Response, error) {
	apiMessages := make([]apiMessage, 0, len(messages))
	var system string
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		apiMessages = append(apiMessages, apiMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(apiRequest{
		Model:       config.Model,
		Messages:    apiMessages,
		MaxTokens:   maxTokens,
		Temperature: config.Temperature,
		System:      system,
	})
	if err != nil {
		return nil, simbaerr.Wrap(simbaerr.KindBadRequest, "marshal anthropic request", err)
	}

	url := c.baseURL + "/v1/messages"
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, simbaerr.Wrap(simbaerr.KindBadRequest, "build anthropic request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	if config.CorrelationID != "" {
		httpReq.Header.Set("anthropic-metadata-user-id", config.CorrelationID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, simbaerr.Wrap(simbaerr.KindNetwork, "read anthropic response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(resp.StatusCode, raw)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, simbaerr.Wrap(simbaerr.KindMalformedResponse, "decode anthropic response", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &clients.Response{
		CompletionText: text,
		Usage: clients.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return simbaerr.Wrap(simbaerr.KindTimeout, "anthropic request cancelled", ctx.Err())
	}
	return simbaerr.Wrap(simbaerr.KindNetwork, "anthropic transport error", err)
}

func classifyStatusError(status int, body []byte) error {
	var parsed apiError
	_ = json.Unmarshal(body, &parsed)
	msg := parsed.Error.Message
	if msg == "" {
		msg = string(body)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return simbaerr.New(simbaerr.KindRateLimit, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return simbaerr.New(simbaerr.KindAuth, msg)
	case status == http.StatusBadRequest:
		return simbaerr.New(simbaerr.KindBadRequest, msg)
	case status >= 500:
		return simbaerr.New(simbaerr.KindServer5xx, msg)
	default:
		return simbaerr.New(simbaerr.KindBadRequest, fmt.Sprintf("anthropic API error (status %d): %s", status, msg))
	}
}
