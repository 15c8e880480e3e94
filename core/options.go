package orchestration

import (
	"time"

	"github.com/koscakluka/ema-speaker/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

type orchestratorConfig struct {
	completionClient CompletionClient
	textToSpeech     TextToSpeech
	audioOutput      AudioOutput

	voice        texttospeech.VoiceProfile
	systemPrompt string
	historyLimit int
	spoolDir     string

	completionTimeout time.Duration
	synthesisTimeout  time.Duration
}

func defaultOrchestratorConfig() orchestratorConfig {
	return orchestratorConfig{
		voice:        texttospeech.DefaultVoiceProfile(),
		systemPrompt: DefaultSystemPrompt,
	}
}

func WithCompletionClient(client CompletionClient) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.completionClient = client
	}
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.textToSpeech = client
	}
}

func WithAudioOutput(output AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.audioOutput = output
	}
}

func WithVoiceProfile(profile texttospeech.VoiceProfile) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.voice = profile
	}
}

// WithSystemPrompt replaces the instruction the conversation history is
// seeded with. An empty prompt seeds nothing.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.systemPrompt = prompt
	}
}

// WithHistoryLimit keeps only the last n user and assistant messages, the
// system instruction is always kept. 0 keeps the whole conversation.
func WithHistoryLimit(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.historyLimit = max(n, 0)
	}
}

// WithCompletionTimeout bounds every reply generation, an expired completion
// fails the turn with [ErrCompletionFailure].
func WithCompletionTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.completionTimeout = timeout
	}
}

// WithSynthesisTimeout bounds every speech synthesis, an expired synthesis
// fails the turn with [ErrSynthesisFailure].
func WithSynthesisTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.synthesisTimeout = timeout
	}
}

// WithSpoolDir sets where synthesized speech is kept while it plays, the
// default is the system temporary directory.
func WithSpoolDir(dir string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.spoolDir = dir
	}
}

type OrchestrateOption func(*OrchestrateOptions)

type OrchestrateOptions struct {
	onTurnError   func(Turn, error)
	onTurnEnd     func(Turn)
	onStateChange func(from, to State)
}

// WithTurnErrorCallback is called for every turn that ends with an error.
func WithTurnErrorCallback(callback func(turn Turn, err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTurnError = callback
	}
}

// WithTurnEndCallback is called for every finished turn, whatever the outcome.
func WithTurnEndCallback(callback func(turn Turn)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTurnEnd = callback
	}
}

func WithStateChangeCallback(callback func(from, to State)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStateChange = callback
	}
}
