package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-speaker/core/llms"
)

func TestSynthesizeJoinsFragmentsAndRecordsHistory(t *testing.T) {
	client := &completionStub{reply: " hi there "}
	synthesizer := NewTurnSynthesizer(client, "be brief", 0, 0)

	reply, err := synthesizer.Synthesize(context.Background(), []Fragment{{Text: "hello"}, {Text: "again"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}

	sent := client.lastCall()
	if len(sent) != 2 || sent[0].Role != llms.MessageRoleSystem || sent[1].Content != "hello\nagain" {
		t.Fatalf("unexpected completion request %+v", sent)
	}

	history := synthesizer.History()
	expected := []llms.Message{
		llms.SystemMessage("be brief"),
		llms.UserMessage("hello\nagain"),
		llms.AssistantMessage("hi there"),
	}
	if len(history) != len(expected) {
		t.Fatalf("expected %d history messages, got %d", len(expected), len(history))
	}
	for i := range expected {
		if history[i] != expected[i] {
			t.Fatalf("expected history[%d] = %+v, got %+v", i, expected[i], history[i])
		}
	}
}

func TestSynthesizeFailureLeavesHistoryUnchanged(t *testing.T) {
	client := &completionStub{err: errStub}
	synthesizer := NewTurnSynthesizer(client, DefaultSystemPrompt, 0, 0)

	_, err := synthesizer.Synthesize(context.Background(), []Fragment{{Text: "hello"}})
	if !errors.Is(err, ErrCompletionFailure) || !errors.Is(err, errStub) {
		t.Fatalf("expected completion failure wrapping the cause, got %v", err)
	}
	if got := len(synthesizer.History()); got != 1 {
		t.Fatalf("expected only the system instruction in history, got %d messages", got)
	}
}

func TestSynthesizeEmptyReplyIsCompletionFailure(t *testing.T) {
	synthesizer := NewTurnSynthesizer(&completionStub{reply: "  \n"}, "", 0, 0)

	_, err := synthesizer.Synthesize(context.Background(), []Fragment{{Text: "hello"}})
	if !errors.Is(err, ErrCompletionFailure) || !errors.Is(err, llms.ErrEmptyCompletion) {
		t.Fatalf("expected empty completion failure, got %v", err)
	}
	if got := len(synthesizer.History()); got != 0 {
		t.Fatalf("expected empty history, got %d messages", got)
	}
}

func TestSynthesizeTimeoutIsCompletionFailure(t *testing.T) {
	synthesizer := NewTurnSynthesizer(&completionStub{blocked: true}, DefaultSystemPrompt, 20*time.Millisecond, 0)

	started := time.Now()
	_, err := synthesizer.Synthesize(context.Background(), []Fragment{{Text: "hello"}})
	if !errors.Is(err, ErrCompletionFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timed out completion failure, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("expected timeout to cut the completion short, took %v", elapsed)
	}
}

func TestSynthesizeWithoutClientFails(t *testing.T) {
	synthesizer := NewTurnSynthesizer(nil, DefaultSystemPrompt, 0, 0)
	if _, err := synthesizer.Synthesize(context.Background(), []Fragment{{Text: "hello"}}); !errors.Is(err, ErrCompletionFailure) {
		t.Fatalf("expected completion failure, got %v", err)
	}
}

func TestHistoryLimitKeepsSystemInstruction(t *testing.T) {
	client := &completionStub{reply: "ok"}
	synthesizer := NewTurnSynthesizer(client, "system", 0, 2)

	for _, text := range []string{"one", "two", "three"} {
		if _, err := synthesizer.Synthesize(context.Background(), []Fragment{{Text: text}}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	history := synthesizer.History()
	if len(history) != 3 {
		t.Fatalf("expected system instruction plus 2 messages, got %d", len(history))
	}
	if history[0].Content != "system" || history[1].Content != "three" || history[2].Content != "ok" {
		t.Fatalf("unexpected windowed history %+v", history)
	}

	sent := client.lastCall()
	if len(sent) != 4 || sent[1].Content != "two" {
		t.Fatalf("expected the windowed history in the last request, got %+v", sent)
	}
}
