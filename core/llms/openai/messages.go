package openai

import (
	"github.com/koscakluka/ema-speaker/core/llms"
	openai "github.com/sashabaranov/go-openai"
)

func toOpenAIMessages(history []llms.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, message := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(message.Role),
			Content: message.Content,
		})
	}
	return messages
}

func toOpenAIRole(role llms.MessageRole) string {
	switch role {
	case llms.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case llms.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
