package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-speaker/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Client completes conversations with the Gemini API. Leading system
// messages are sent as the system instruction.
type Client struct {
	client *genai.Client
	model  string
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	options := clientOptions{
		model:      defaultModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(&options)
	}

	config := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: options.httpClient,
	}
	if options.baseURL != "" {
		config.HTTPOptions.BaseURL = options.baseURL
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{client: client, model: options.model}, nil
}

func (c *Client) Complete(ctx context.Context, history []llms.Message) (string, error) {
	instructions, conversation := llms.SplitInstructions(history)
	if len(conversation) == 0 {
		return "", errors.New("no conversation to complete")
	}

	config := &genai.GenerateContentConfig{}
	if len(instructions) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(instructions, "\n"), genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(conversation), config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", llms.ErrEmptyCompletion
	}
	return reply, nil
}

func toContents(messages []llms.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		var role genai.Role = genai.RoleUser
		if message.Role == llms.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, role))
	}
	return contents
}
