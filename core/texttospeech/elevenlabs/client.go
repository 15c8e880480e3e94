package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/koscakluka/ema-speaker/core/audio"
	"github.com/koscakluka/ema-speaker/core/texttospeech"
	"github.com/koscakluka/ema-speaker/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
	defaultVoice   = "pNInz6obpgDQGcFmaJgB"

	// ElevenLabs accepts speaking rates between these bounds only
	minSpeed = 0.7
	maxSpeed = 1.2
)

// TextToSpeechClient synthesizes replies with the ElevenLabs REST API as raw
// little-endian PCM.
type TextToSpeechClient struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	client  *http.Client
	options texttospeech.TextToSpeechOptions
}

type ClientOption func(*TextToSpeechClient)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.baseURL = baseURL }
}

func WithModel(model string) ClientOption {
	return func(c *TextToSpeechClient) { c.model = model }
}

// WithVoice sets the voice ID used when the profile does not name one.
func WithVoice(voice string) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TextToSpeechClient) { c.client = client }
}

func WithOptions(opts ...texttospeech.TextToSpeechOption) ClientOption {
	return func(c *TextToSpeechClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		voice:   defaultVoice,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		options: texttospeech.NewOptions(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key not set")
	}
	if client.options.EncodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("elevenlabs only produces linear16 pcm, got %s", client.options.EncodingInfo.Format.Name())
	}

	return client, nil
}

type speechRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	LanguageCode  string         `json:"language_code,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64  `json:"stability"`
	SimilarityBoost float64  `json:"similarity_boost"`
	Speed           *float64 `json:"speed,omitempty"`
}

func (c *TextToSpeechClient) SynthesizeSpeech(ctx context.Context, text string, profile texttospeech.VoiceProfile) ([]byte, error) {
	body := speechRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	if profile.Speed > 0 {
		body.VoiceSettings.Speed = utils.Ptr(min(max(profile.Speed, minSpeed), maxSpeed))
	}
	if len(profile.Language) >= 2 {
		body.LanguageCode = profile.Language[:2]
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal elevenlabs request: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "v1", "text-to-speech", c.voiceFor(profile))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	endpoint += "?output_format=" + url.QueryEscape(fmt.Sprintf("pcm_%d", c.options.EncodingInfo.SampleRate))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode, string(errBody))
	}

	speech, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevenlabs audio: %w", err)
	}
	if len(speech) == 0 {
		return nil, fmt.Errorf("elevenlabs returned no audio")
	}
	return speech, nil
}

// voiceFor uses the profile voice only when it looks like an ElevenLabs voice
// ID, provider prefixed names such as "ru-RU-Wavenet-A" belong to others.
func (c *TextToSpeechClient) voiceFor(profile texttospeech.VoiceProfile) string {
	if len(profile.Voice) == len(defaultVoice) && !strings.Contains(profile.Voice, "-") {
		return profile.Voice
	}
	return c.voice
}
