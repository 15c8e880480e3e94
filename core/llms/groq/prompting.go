package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-speaker/core/llms"
	"github.com/koscakluka/ema-speaker/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel = "llama-3.3-70b-versatile"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

// Client completes conversations with the Groq chat completions API,
// streaming the reply and returning it once it is complete.
type Client struct {
	apiKey      string
	url         string
	model       string
	temperature *float64
	client      *http.Client
}

type ClientOption func(*Client)

func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) { c.temperature = utils.Ptr(temperature) }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.client = client }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey: apiKey,
		url:    defaultURL,
		model:  defaultModel,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Complete(ctx context.Context, history []llms.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "groq complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model), attribute.Int("llm.messages", len(history)))

	reply, err := c.complete(ctx, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (c *Client) complete(ctx context.Context, history []llms.Message) (string, error) {
	messages, err := toMessages(history)
	if err != nil {
		return "", err
	}

	requestBodyBytes, err := json.Marshal(requestBody{
		Model:       c.model,
		Messages:    messages,
		Stream:      true,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errorBody errorResponseBody
		if err := json.Unmarshal(body, &errorBody); err == nil && errorBody.Error.Message != "" {
			return "", fmt.Errorf("groq returned %s: %s", resp.Status, errorBody.Error.Message)
		}
		return "", fmt.Errorf("groq returned %s", resp.Status)
	}

	var response strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))

		if len(chunk) == 0 {
			continue
		}

		if chunk == endMessage {
			break
		}

		var responseBody streamingResponseBody
		if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
			logger.Warn("error unmarshalling chunk", "error", err)
			continue
		}
		if len(responseBody.Choices) == 0 {
			continue
		}

		response.WriteString(responseBody.Choices[0].Delta.Content)
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading streamed response: %w", err)
	}

	reply := strings.TrimSpace(response.String())
	if reply == "" {
		return "", llms.ErrEmptyCompletion
	}
	return reply, nil
}
