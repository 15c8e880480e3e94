package deepgram

import (
	"testing"

	"github.com/koscakluka/ema-speaker/core/audio"
)

func TestConvertEncoding(t *testing.T) {
	tests := []struct {
		name     string
		encoding audio.EncodingInfo
		wantErr  bool
	}{
		{name: "linear16 16kHz", encoding: audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}},
		{name: "mulaw 8kHz", encoding: audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingMulaw}},
		{name: "alaw 16kHz", encoding: audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingALaw}, wantErr: true},
		{name: "linear16 44.1kHz", encoding: audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}, wantErr: true},
		{name: "unknown format", encoding: audio.EncodingInfo{SampleRate: 16000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertEncoding(tt.encoding)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.SampleRate != tt.encoding.SampleRate || got.Name != tt.encoding.Format.Name() {
				t.Fatalf("expected %d/%s, got %d/%s", tt.encoding.SampleRate, tt.encoding.Format.Name(), got.SampleRate, got.Name)
			}
		})
	}
}
