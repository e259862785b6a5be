package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"loginsight/internal/config"
	"loginsight/internal/errors"
	"loginsight/internal/util/logx"
	"loginsight/internal/version"
)

// Client talks to any OpenAI-compatible chat endpoint, including a local
// Ollama at http://localhost:11434/v1.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
}

func NewClient(apiKey string, cfg config.AI) *Client {
	return &Client{apiKey: apiKey, baseURL: cfg.BaseURL, model: cfg.Model, timeout: cfg.Timeout}
}

// Enabled reports whether a key or a custom endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && (c.apiKey != "" || c.baseURL != "")
}

type userAgent struct{ next http.RoundTripper }

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	return u.next.RoundTrip(req)
}

// Ask sends p and returns the model's answer verbatim.
func (c *Client) Ask(ctx context.Context, p Prompt) (string, error) {
	if !c.Enabled() {
		return "", errors.ErrAIDisabled
	}
	cfg := openai.DefaultConfig(c.apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Transport: userAgent{next: http.DefaultTransport}}
	cli := openai.NewClientWithConfig(cfg)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	began := time.Now()
	resp, err := cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("ai request: %w", err)
	}
	logx.Infof("ai: model=%s records=%d took=%s", c.model, p.Records, time.Since(began).Round(time.Millisecond))
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
