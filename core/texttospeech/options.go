package texttospeech

import "github.com/koscakluka/ema-speaker/core/audio"

// VoiceProfile describes how a reply should sound. Empty fields fall back to
// the provider defaults.
type VoiceProfile struct {
	Voice    string
	Language string
	// Speed is the speaking rate multiplier, 1.0 is the natural rate
	Speed float64
}

// DefaultVoiceProfile is the profile the speaker service was tuned with.
func DefaultVoiceProfile() VoiceProfile {
	return VoiceProfile{Voice: "ru-RU-Wavenet-A", Language: "ru-RU", Speed: 1.4}
}

func (p VoiceProfile) IsZero() bool {
	return p.Voice == "" && p.Language == "" && p.Speed == 0
}

// SpeedOr returns the profile speed or the given fallback when it is unset.
func (p VoiceProfile) SpeedOr(fallback float64) float64 {
	if p.Speed <= 0 {
		return fallback
	}
	return p.Speed
}

// VoiceOr returns the profile voice or the given fallback when it is unset.
func (p VoiceProfile) VoiceOr(fallback string) string {
	if p.Voice == "" {
		return fallback
	}
	return p.Voice
}

type TextToSpeechOptions struct {
	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

// WithEncodingInfo sets the encoding the synthesized audio is produced in, it
// should match the audio output the speech is played on.
func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// NewOptions applies opts on top of the defaults.
func NewOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	options := TextToSpeechOptions{
		EncodingInfo: audio.EncodingInfo{SampleRate: audio.DefaultSampleRate, Format: audio.EncodingLinear16},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
