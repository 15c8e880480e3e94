package groq

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-speaker/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponseBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func toMessages(history []llms.Message) ([]message, error) {
	messages := []message{}
	if err := copier.Copy(&messages, history); err != nil {
		return nil, fmt.Errorf("failed to convert history: %w", err)
	}
	return messages, nil
}
