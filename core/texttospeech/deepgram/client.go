package deepgram

import (
	"fmt"
	"os"
	"slices"

	"github.com/koscakluka/ema-speaker/core/texttospeech"
)

type deepgramVoice string

const (
	VoiceAsteria deepgramVoice = "aura-asteria-en"
	VoiceLuna    deepgramVoice = "aura-luna-en"
	VoiceStella  deepgramVoice = "aura-stella-en"
	VoiceAthena  deepgramVoice = "aura-athena-en"
	VoiceHera    deepgramVoice = "aura-hera-en"
	VoiceOrion   deepgramVoice = "aura-orion-en"
	VoiceArcas   deepgramVoice = "aura-arcas-en"
	VoicePerseus deepgramVoice = "aura-perseus-en"
	VoiceAngus   deepgramVoice = "aura-angus-en"
	VoiceOrpheus deepgramVoice = "aura-orpheus-en"
	VoiceHelios  deepgramVoice = "aura-helios-en"
	VoiceZeus    deepgramVoice = "aura-zeus-en"

	defaultVoice = VoiceAsteria
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceAsteria, VoiceLuna, VoiceStella, VoiceAthena, VoiceHera, VoiceOrion,
		VoiceArcas, VoicePerseus, VoiceAngus, VoiceOrpheus, VoiceHelios, VoiceZeus,
	}
}

const defaultBaseURL = "wss://api.deepgram.com"

// TextToSpeechClient synthesizes whole replies over the Deepgram speak
// websocket.
type TextToSpeechClient struct {
	apiKey  string
	baseURL string
	voice   deepgramVoice
	options texttospeech.TextToSpeechOptions
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.baseURL = baseURL }
}

func WithVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithOptions(opts ...texttospeech.TextToSpeechOption) ClientOption {
	return func(c *TextToSpeechClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		baseURL: defaultBaseURL,
		voice:   defaultVoice,
		options: texttospeech.NewOptions(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}

	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}

	return client, nil
}

// voiceFor picks the profile voice when it names a Deepgram voice, the
// configured one otherwise.
func (c *TextToSpeechClient) voiceFor(profile texttospeech.VoiceProfile) deepgramVoice {
	if voice := deepgramVoice(profile.Voice); slices.Contains(GetAvailableVoices(), voice) {
		return voice
	}
	return c.voice
}
