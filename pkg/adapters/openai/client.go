// Package openai implements ports.SuggestionService on top of any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/pkg/domain"
	"golang.org/x/time/rate"
)

// Defaults for Config.
const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultModel          = "gpt-4o-mini"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxSuggestions = 5
)

// Config configures the client.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client side rate limiting
	Burst             int
	MaxSuggestions    int
}

// Client talks to a chat completions endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client. Empty config fields take their defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = DefaultMaxSuggestions
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  logging.NewNop(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type suggestionsPayload struct {
	Suggestions []struct {
		Query       string `json:"query"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"suggestions"`
}

const suggestSystemPrompt = `You are a Prometheus expert helping a user build a PromQL query.
Answer only with a JSON object of the form
{"suggestions":[{"query":"<PromQL>","title":"<short title>","description":"<one sentence>"}]}
with at most %d suggestions, best first. Use the metric and labels given when they are relevant.`

const explainSystemPrompt = `You are a Prometheus expert. Explain what the given PromQL query computes
in two or three plain sentences for someone who is new to PromQL. Do not use markdown headings.`

// Suggest implements ports.SuggestionService for AI requests.
func (c *Client) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Request: %s\n", req.Prompt)
	if req.Query.Metric != "" {
		fmt.Fprintf(&user, "Metric: %s\n", req.Query.Metric)
		fmt.Fprintf(&user, "Current selector: %s\n", req.Query.Selector())
	}

	content, err := c.complete(ctx, chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: fmt.Sprintf(suggestSystemPrompt, c.cfg.MaxSuggestions)},
			{Role: "user", Content: user.String()},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var payload suggestionsPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("openai: decode suggestions: %w", err)
	}

	out := make([]domain.Suggestion, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		q := strings.TrimSpace(s.Query)
		if q == "" {
			continue
		}
		out = append(out, domain.Suggestion{Query: q, Title: s.Title, Description: s.Description})
		if len(out) == c.cfg.MaxSuggestions {
			break
		}
	}
	return out, nil
}

// Explain implements ports.SuggestionService.
func (c *Client) Explain(ctx context.Context, s domain.Suggestion, q domain.Query) (string, error) {
	user := "Query: " + s.Query
	if q.Metric != "" {
		user += "\nThe user is looking at the metric " + q.Metric + "."
	}
	content, err := c.complete(ctx, chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: explainSystemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) complete(ctx context.Context, body chatRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("openai: rate limit: %w", err)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != nil {
			msg = out.Error.Message
		}
		msg = truncate(msg, 200)
		return "", fmt.Errorf("openai: status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("openai: decode response: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	c.logger.Debug("Chat completion", "model", body.Model, "duration", time.Since(start))
	return out.Choices[0].Message.Content, nil
}

// stripFences removes a surrounding markdown code fence some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
