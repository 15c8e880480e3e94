package openai

import (
	"testing"

	"github.com/koscakluka/ema-speaker/core/llms"
	openai "github.com/sashabaranov/go-openai"
)

func TestToOpenAIMessagesKeepsHistoryOrder(t *testing.T) {
	history := []llms.Message{
		llms.SystemMessage("you are a voice robot"),
		llms.UserMessage("hello"),
		llms.AssistantMessage("hi there"),
		llms.UserMessage("wait\nwhat"),
	}

	messages := toOpenAIMessages(history)

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}

	expected := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "you are a voice robot"},
		{Role: openai.ChatMessageRoleUser, Content: "hello"},
		{Role: openai.ChatMessageRoleAssistant, Content: "hi there"},
		{Role: openai.ChatMessageRoleUser, Content: "wait\nwhat"},
	}
	for i := range expected {
		if messages[i].Role != expected[i].Role || messages[i].Content != expected[i].Content {
			t.Fatalf("unexpected message %d: %+v", i, messages[i])
		}
	}
}

func TestToOpenAIRoleDefaultsToUser(t *testing.T) {
	if got := toOpenAIRole(llms.MessageRole("narrator")); got != openai.ChatMessageRoleUser {
		t.Fatalf("expected unknown role to map to user, got %q", got)
	}
}
