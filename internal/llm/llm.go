// Package llm calls an OpenAI-compatible chat-completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Completer turns a system instruction and a user prompt into model text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// StatusError is a non-2xx response from the completion service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("completion service returned %d: %s", e.Code, body)
}

// Is reports 401 and 403 responses as ErrUnauthorized.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden)
}

// ErrEmptyResponse means the service answered 2xx without any choice.
var ErrEmptyResponse = errors.New("completion response has no choices")

// ErrUnauthorized means the service rejected the credentials. Retrying with
// the same key cannot succeed.
var ErrUnauthorized = errors.New("completion service rejected credentials")

// Config configures a Client.
type Config struct {
	BaseURL     string        // e.g. https://api.openai.com/v1
	APIKey      string        // sent as a bearer token when set
	Model       string        // model name
	Temperature float64       // sampling temperature, 0 for repeatable output
	Timeout     time.Duration // per request; 0 leaves the context in charge
}

// Client is a Completer backed by resty.
type Client struct {
	http  *resty.Client
	model string
	temp  float64
}

var _ Completer = (*Client)(nil)

// New returns a client for cfg.
func New(cfg Config) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return &Client{http: c, model: cfg.Model, temp: cfg.Temperature}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: c.temp,
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}
