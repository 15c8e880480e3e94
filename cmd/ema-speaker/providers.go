package main

import (
	"context"
	"fmt"

	orchestration "github.com/koscakluka/ema-speaker/core"
	"github.com/koscakluka/ema-speaker/core/audio"
	"github.com/koscakluka/ema-speaker/core/audio/miniaudio"
	"github.com/koscakluka/ema-speaker/core/audio/oto"
	"github.com/koscakluka/ema-speaker/core/llms/gemini"
	"github.com/koscakluka/ema-speaker/core/llms/groq"
	"github.com/koscakluka/ema-speaker/core/llms/openai"
	"github.com/koscakluka/ema-speaker/core/texttospeech"
	deepgramtts "github.com/koscakluka/ema-speaker/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-speaker/core/texttospeech/elevenlabs"
	openaitts "github.com/koscakluka/ema-speaker/core/texttospeech/openai"
	"github.com/koscakluka/ema-speaker/internal/config"
)

func newCompletionClient(ctx context.Context, cfg *config.Config) (orchestration.CompletionClient, error) {
	switch cfg.CompletionProvider {
	case config.ProviderOpenAI:
		var opts []openai.ClientOption
		if cfg.CompletionModel != "" {
			opts = append(opts, openai.WithModel(cfg.CompletionModel))
		}
		return openai.NewClient(cfg.OpenAIKey, opts...), nil

	case config.ProviderGroq:
		var opts []groq.ClientOption
		if cfg.CompletionModel != "" {
			opts = append(opts, groq.WithModel(cfg.CompletionModel))
		}
		return groq.NewClient(cfg.GroqKey, opts...), nil

	case config.ProviderGemini:
		var opts []gemini.ClientOption
		if cfg.CompletionModel != "" {
			opts = append(opts, gemini.WithModel(cfg.CompletionModel))
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	}

	return nil, fmt.Errorf("unknown completion provider %q", cfg.CompletionProvider)
}

// newTextToSpeechClient also returns the sample rate the client produces,
// the audio output has to be opened with it.
func newTextToSpeechClient(cfg *config.Config) (orchestration.TextToSpeech, int, error) {
	encoding := audio.GetDefaultEncodingInfo()

	switch cfg.SpeechProvider {
	case config.ProviderOpenAI:
		var opts []openaitts.ClientOption
		if cfg.SpeechModel != "" {
			opts = append(opts, openaitts.WithModel(cfg.SpeechModel))
		}
		return openaitts.NewTextToSpeechClient(cfg.OpenAIKey, opts...), openaitts.SampleRate, nil

	case config.ProviderDeepgram:
		client, err := deepgramtts.NewTextToSpeechClient(
			deepgramtts.WithAPIKey(cfg.DeepgramKey),
			deepgramtts.WithOptions(texttospeech.WithEncodingInfo(encoding)),
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create deepgram speech client: %w", err)
		}
		return client, encoding.SampleRate, nil

	case config.ProviderElevenLabs:
		opts := []elevenlabs.ClientOption{elevenlabs.WithOptions(texttospeech.WithEncodingInfo(encoding))}
		if cfg.SpeechModel != "" {
			opts = append(opts, elevenlabs.WithModel(cfg.SpeechModel))
		}
		client, err := elevenlabs.NewTextToSpeechClient(cfg.ElevenLabsKey, opts...)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create elevenlabs speech client: %w", err)
		}
		return client, encoding.SampleRate, nil
	}

	return nil, 0, fmt.Errorf("unknown speech provider %q", cfg.SpeechProvider)
}

func newAudioOutput(cfg *config.Config, sampleRate int) (orchestration.AudioOutput, func(), error) {
	switch cfg.AudioBackend {
	case config.AudioBackendMiniaudio:
		client, err := miniaudio.NewClient(miniaudio.WithSampleRate(sampleRate))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open miniaudio output: %w", err)
		}
		return client, client.Close, nil

	case config.AudioBackendOto:
		client, err := oto.NewClient(sampleRate)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open oto output: %w", err)
		}
		return client, func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown audio backend %q", cfg.AudioBackend)
}
