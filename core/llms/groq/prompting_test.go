package groq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/ema-speaker/core/llms"
)

func streamChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, chunk := range chunks {
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestCompleteJoinsStreamedChunks(t *testing.T) {
	var received requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		streamChunks(w, "hi", " there")
	}))
	defer server.Close()

	client := NewClient("key", WithURL(server.URL), WithHTTPClient(server.Client()), WithTemperature(0.2))
	reply, err := client.Complete(context.Background(), []llms.Message{
		llms.SystemMessage("system"),
		llms.UserMessage("hello"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("expected %q, got %q", "hi there", reply)
	}

	if !received.Stream || received.Model != defaultModel {
		t.Fatalf("unexpected request %+v", received)
	}
	if received.Temperature == nil || *received.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", received.Temperature)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != "system" || received.Messages[1].Content != "hello" {
		t.Fatalf("unexpected messages %+v", received.Messages)
	}
}

func TestCompleteReportsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"tokens"}}`))
	}))
	defer server.Close()

	_, err := NewClient("key", WithURL(server.URL), WithHTTPClient(server.Client())).
		Complete(context.Background(), []llms.Message{llms.UserMessage("hello")})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestCompleteWithEmptyStreamIsEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamChunks(w)
	}))
	defer server.Close()

	_, err := NewClient("key", WithURL(server.URL), WithHTTPClient(server.Client())).
		Complete(context.Background(), []llms.Message{llms.UserMessage("hello")})
	if !errors.Is(err, llms.ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestToMessagesCopiesRoles(t *testing.T) {
	messages, err := toMessages([]llms.Message{llms.AssistantMessage("hi")})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(messages) != 1 || messages[0].Role != "assistant" || messages[0].Content != "hi" {
		t.Fatalf("unexpected messages %+v", messages)
	}
}
