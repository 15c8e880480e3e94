package orchestration

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-speaker/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultSystemPrompt = "Вы - голосовой робот. Вы помогаете тестировать разработку голосовых роботов. Общайтесь на любые темы, задавайте вопросы, делитесь своими мыслями."

// CompletionClient generates the assistant reply for a conversation.
type CompletionClient interface {
	Complete(ctx context.Context, history []llms.Message) (string, error)
}

// TurnSynthesizer turns drained fragments into a reply while keeping the
// running conversation history.
type TurnSynthesizer struct {
	client CompletionClient

	// timeout bounds a single completion, 0 disables it
	timeout time.Duration
	// historyLimit is the number of non-system messages kept, 0 keeps all
	historyLimit int

	mu      sync.Mutex
	history []llms.Message
}

func NewTurnSynthesizer(client CompletionClient, systemPrompt string, timeout time.Duration, historyLimit int) *TurnSynthesizer {
	synthesizer := &TurnSynthesizer{
		client:       client,
		timeout:      timeout,
		historyLimit: historyLimit,
	}
	if systemPrompt != "" {
		synthesizer.history = []llms.Message{llms.SystemMessage(systemPrompt)}
	}
	return synthesizer
}

// Synthesize asks for a reply to fragments, joined by newlines. History only
// changes when a reply is returned.
func (s *TurnSynthesizer) Synthesize(ctx context.Context, fragments []Fragment) (string, error) {
	ctx, span := tracer.Start(ctx, "synthesize reply")
	defer span.End()

	reply, err := s.synthesize(ctx, fragments)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.Int("reply.length", len(reply)))
	return reply, nil
}

func (s *TurnSynthesizer) synthesize(ctx context.Context, fragments []Fragment) (string, error) {
	if s.client == nil {
		return "", failure(ErrCompletionFailure, errors.New("no completion client configured"))
	}

	userMessage := llms.UserMessage(joinFragments(fragments))
	messages := append(s.History(), userMessage)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := s.client.Complete(ctx, messages)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		return "", failure(ErrCompletionFailure, err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", failure(ErrCompletionFailure, llms.ErrEmptyCompletion)
	}
	logger.Info("reply generated", "duration", time.Since(started), "fragments", len(fragments))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, userMessage, llms.AssistantMessage(reply))
	s.evictLocked()

	return reply, nil
}

// evictLocked drops the oldest non-system messages past the history limit.
func (s *TurnSynthesizer) evictLocked() {
	if s.historyLimit <= 0 {
		return
	}

	instructions := 0
	for instructions < len(s.history) && s.history[instructions].Role == llms.MessageRoleSystem {
		instructions++
	}
	if excess := len(s.history) - instructions - s.historyLimit; excess > 0 {
		s.history = slices.Delete(s.history, instructions, instructions+excess)
	}
}

// History returns a copy of the conversation so far, system instruction
// included.
func (s *TurnSynthesizer) History() []llms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}
