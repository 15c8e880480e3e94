// Package config loads the speaker service settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Address            string `env:"EMA_ADDRESS" envDefault:":8000"`
	APIKey             string `env:"EMA_API_KEY"`              // empty disables auth
	CorsAllowedOrigins string `env:"EMA_CORS_ALLOWED_ORIGINS"` // comma separated, empty allows all

	// Completion
	CompletionProvider string        `env:"EMA_COMPLETION_PROVIDER" envDefault:"openai"`
	CompletionModel    string        `env:"EMA_COMPLETION_MODEL"`
	CompletionTimeout  time.Duration `env:"EMA_COMPLETION_TIMEOUT" envDefault:"30s"`
	SystemPrompt       string        `env:"EMA_SYSTEM_PROMPT"`
	HistoryLimit       int           `env:"EMA_HISTORY_LIMIT" envDefault:"0"`

	// Speech synthesis
	SpeechProvider   string        `env:"EMA_SPEECH_PROVIDER" envDefault:"openai"`
	SpeechModel      string        `env:"EMA_SPEECH_MODEL"`
	SynthesisTimeout time.Duration `env:"EMA_SYNTHESIS_TIMEOUT" envDefault:"30s"`
	Voice            string        `env:"EMA_VOICE" envDefault:"ru-RU-Wavenet-A"`
	Language         string        `env:"EMA_LANGUAGE" envDefault:"ru-RU"`
	Speed            float64       `env:"EMA_SPEED" envDefault:"1.4"`
	SpoolDir         string        `env:"EMA_SPOOL_DIR"`

	// Audio output
	AudioBackend string `env:"EMA_AUDIO_BACKEND" envDefault:"miniaudio"`

	// Provider keys use the names the provider SDKs read
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	GroqKey       string `env:"GROQ_API_KEY"`
	GeminiKey     string `env:"GEMINI_API_KEY"`
	DeepgramKey   string `env:"DEEPGRAM_API_KEY"`
	ElevenLabsKey string `env:"ELEVENLABS_API_KEY"`
}

const (
	ProviderOpenAI     = "openai"
	ProviderGroq       = "groq"
	ProviderGemini     = "gemini"
	ProviderDeepgram   = "deepgram"
	ProviderElevenLabs = "elevenlabs"

	AudioBackendMiniaudio = "miniaudio"
	AudioBackendOto       = "oto"
)

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	switch c.CompletionProvider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s completion provider", c.CompletionProvider)
		}
	case ProviderGroq:
		if c.GroqKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required for the %s completion provider", c.CompletionProvider)
		}
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s completion provider", c.CompletionProvider)
		}
	default:
		return fmt.Errorf("unknown completion provider %q", c.CompletionProvider)
	}

	switch c.SpeechProvider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s speech provider", c.SpeechProvider)
		}
	case ProviderDeepgram:
		if c.DeepgramKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the %s speech provider", c.SpeechProvider)
		}
	case ProviderElevenLabs:
		if c.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required for the %s speech provider", c.SpeechProvider)
		}
	default:
		return fmt.Errorf("unknown speech provider %q", c.SpeechProvider)
	}

	switch c.AudioBackend {
	case AudioBackendMiniaudio, AudioBackendOto:
	default:
		return fmt.Errorf("unknown audio backend %q", c.AudioBackend)
	}

	if c.HistoryLimit < 0 {
		return fmt.Errorf("history limit must not be negative, got %d", c.HistoryLimit)
	}
	return nil
}

// AllowedOrigins splits CorsAllowedOrigins, an empty result means any origin.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CorsAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
