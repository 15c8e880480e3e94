package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-speaker/core/llms"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultModel = "gpt-4o"

// Client completes conversations with the OpenAI chat completions API.
type Client struct {
	client *openai.Client
	model  string

	temperature float32
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL     string
	model       string
	temperature float32
	httpClient  *http.Client
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

func WithTemperature(temperature float32) ClientOption {
	return func(o *clientOptions) { o.temperature = temperature }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	options := clientOptions{model: defaultModel}
	for _, opt := range opts {
		opt(&options)
	}

	config := openai.DefaultConfig(apiKey)
	if options.baseURL != "" {
		config.BaseURL = options.baseURL
	}
	if options.httpClient != nil {
		config.HTTPClient = options.httpClient
	} else {
		config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &Client{
		client:      openai.NewClientWithConfig(config),
		model:       options.model,
		temperature: options.temperature,
	}
}

// Complete sends the whole history and returns the assistant reply.
func (c *Client) Complete(ctx context.Context, history []llms.Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(history),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response: %w", llms.ErrEmptyCompletion)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai finished with %q: %w", resp.Choices[0].FinishReason, llms.ErrEmptyCompletion)
	}
	return content, nil
}
