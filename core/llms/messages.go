package llms

import "errors"

// ErrEmptyCompletion is returned by completion clients when the model answered
// without any text.
var ErrEmptyCompletion = errors.New("completion contained no text")

// Message is a single entry of the conversation history sent to the model.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole describes who the message is from
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

func SystemMessage(content string) Message    { return Message{Role: MessageRoleSystem, Content: content} }
func UserMessage(content string) Message      { return Message{Role: MessageRoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: MessageRoleAssistant, Content: content} }

// SplitInstructions separates leading system messages from the rest of the
// conversation. Providers that take the system instruction out of band use it.
func SplitInstructions(messages []Message) (instructions []string, conversation []Message) {
	for i, message := range messages {
		if message.Role != MessageRoleSystem {
			return instructions, messages[i:]
		}
		instructions = append(instructions, message.Content)
	}
	return instructions, nil
}
