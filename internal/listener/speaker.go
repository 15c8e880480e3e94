package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SpeakerClient calls the speaker service HTTP API.
type SpeakerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type SpeakerOption func(*SpeakerClient)

func WithAPIKey(apiKey string) SpeakerOption {
	return func(c *SpeakerClient) { c.apiKey = apiKey }
}

func WithHTTPClient(client *http.Client) SpeakerOption {
	return func(c *SpeakerClient) { c.httpClient = client }
}

// NewSpeakerClient accepts addresses with or without a scheme, plain
// host:port defaults to http.
func NewSpeakerClient(address string, opts ...SpeakerOption) *SpeakerClient {
	baseURL := strings.TrimRight(address, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	client := &SpeakerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *SpeakerClient) Submit(ctx context.Context, content string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/submit", map[string]string{"content": content}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *SpeakerClient) Interrupt(ctx context.Context) (bool, error) {
	var resp struct {
		Interrupted bool `json:"interrupted"`
	}
	if err := c.post(ctx, "/interrupt", nil, &resp); err != nil {
		return false, err
	}
	return resp.Interrupted, nil
}

func (c *SpeakerClient) CleanQueue(ctx context.Context) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	if err := c.post(ctx, "/queue/clean", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (c *SpeakerClient) post(ctx context.Context, path string, body any, out any) (err error) {
	ctx, span := tracer.Start(ctx, "call speaker")
	span.SetAttributes(attribute.String("speaker.path", path))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
