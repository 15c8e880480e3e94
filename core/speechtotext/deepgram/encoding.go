package deepgram

import (
	"fmt"
	"slices"

	"github.com/koscakluka/ema-speaker/core/audio"
)

// listenEncoding is the audio description sent as listen query parameters.
type listenEncoding struct {
	SampleRate int
	Name       string
}

var (
	linearSampleRates    = []int{8000, 16000, 24000, 32000, 48000}
	telephonySampleRates = []int{8000}
)

// convertEncoding checks the capture encoding against what the listen
// endpoint accepts for raw audio.
func convertEncoding(encoding audio.EncodingInfo) (listenEncoding, error) {
	var rates []int
	switch encoding.Format {
	case audio.EncodingLinear16:
		rates = linearSampleRates
	case audio.EncodingALaw, audio.EncodingMulaw:
		rates = telephonySampleRates
	default:
		return listenEncoding{}, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	if !slices.Contains(rates, encoding.SampleRate) {
		return listenEncoding{}, fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format.Name())
	}

	return listenEncoding{SampleRate: encoding.SampleRate, Name: encoding.Format.Name()}, nil
}
