// Package llm adapts the Mistral chat completion API (OpenAI-compatible) to
// the single-prompt completion interface the loops consume.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.mistral.ai/v1"

// stopSequences keeps the model from fabricating observations: generation
// halts before any "Observation:" line it might try to write itself.
var stopSequences = []string{"\nObservation:"}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
	DebugHTTP   bool
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Model:   model,
		Timeout: 60 * time.Second,
	}
}

// Client implements agent.CompletionService.
type Client struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

type loggingTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	var requestData map[string]any
	if len(bodyBytes) > 0 {
		json.Unmarshal(bodyBytes, &requestData)
	}

	t.logger.Debug("completion request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Any("body", requestData))

	resp, err := t.base.RoundTrip(req)

	if resp != nil {
		t.logger.Debug("completion response",
			zap.String("status", resp.Status),
			zap.Int("statusCode", resp.StatusCode))
	}

	return resp, err
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = cfg.BaseURL

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.DebugHTTP && cfg.Logger != nil {
		httpClient.Transport = &loggingTransport{
			base:   http.DefaultTransport,
			logger: cfg.Logger,
		}
	}
	apiConfig.HTTPClient = httpClient

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client: openai.NewClientWithConfig(apiConfig),
		cfg:    cfg,
		logger: logger,
	}
}

// Complete runs one chat completion for a fully rendered prompt. There are
// no retries at this layer; transport errors propagate to the loop.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stop:        stopSequences,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("completion received",
		zap.String("model", c.cfg.Model),
		zap.Int("promptLen", len(prompt)),
		zap.Int("responseLen", len(content)))

	return content, nil
}
