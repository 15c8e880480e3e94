package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/koscakluka/ema-speaker/core/texttospeech"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SampleRate is the fixed rate of the pcm format returned by the speech API.
const SampleRate = 24000

const defaultVoice = openai.VoiceAlloy

// TextToSpeechClient synthesizes replies with the OpenAI speech endpoint.
type TextToSpeechClient struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL    string
	model      openai.SpeechModel
	voice      openai.SpeechVoice
	httpClient *http.Client
}

func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = openai.SpeechModel(model) }
}

func WithVoice(voice string) ClientOption {
	return func(o *clientOptions) { o.voice = openai.SpeechVoice(voice) }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) *TextToSpeechClient {
	options := clientOptions{model: openai.TTSModel1, voice: defaultVoice}
	for _, opt := range opts {
		opt(&options)
	}

	config := openai.DefaultConfig(apiKey)
	if options.baseURL != "" {
		config.BaseURL = options.baseURL
	}
	if options.httpClient != nil {
		config.HTTPClient = options.httpClient
	} else {
		config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &TextToSpeechClient{
		client: openai.NewClientWithConfig(config),
		model:  options.model,
		voice:  options.voice,
	}
}

var knownVoices = map[openai.SpeechVoice]bool{
	openai.VoiceAlloy: true, openai.VoiceEcho: true, openai.VoiceFable: true,
	openai.VoiceOnyx: true, openai.VoiceNova: true, openai.VoiceShimmer: true,
}

// SynthesizeSpeech returns 24kHz linear16 mono audio.
func (c *TextToSpeechClient) SynthesizeSpeech(ctx context.Context, text string, profile texttospeech.VoiceProfile) ([]byte, error) {
	voice := c.voice
	if knownVoices[openai.SpeechVoice(profile.Voice)] {
		voice = openai.SpeechVoice(profile.Voice)
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          min(max(profile.SpeedOr(1), 0.25), 4),
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	speech, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai speech: %w", err)
	}
	if len(speech) == 0 {
		return nil, fmt.Errorf("openai returned no audio")
	}
	return speech, nil
}
