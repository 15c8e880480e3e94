package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-speaker/core/texttospeech"
)

func TestSynthesizeSpeechSendsProfile(t *testing.T) {
	var received speechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/"+defaultVoice {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_16000" {
			t.Errorf("expected pcm_16000 output, got %q", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "key" {
			t.Errorf("expected api key header, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte{0, 1, 0, 1})
	}))
	defer server.Close()

	client, err := NewTextToSpeechClient("key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	speech, err := client.SynthesizeSpeech(context.Background(), "привет", texttospeech.DefaultVoiceProfile())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !bytes.Equal(speech, []byte{0, 1, 0, 1}) {
		t.Fatalf("unexpected audio %v", speech)
	}
	if received.Text != "привет" || received.LanguageCode != "ru" {
		t.Fatalf("unexpected request %+v", received)
	}
	if received.VoiceSettings == nil || received.VoiceSettings.Speed == nil || *received.VoiceSettings.Speed != maxSpeed {
		t.Fatalf("expected speed clamped to %v, got %+v", maxSpeed, received.VoiceSettings)
	}
}

func TestSynthesizeSpeechReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewTextToSpeechClient("key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.SynthesizeSpeech(context.Background(), "hello", texttospeech.VoiceProfile{}); err == nil {
		t.Fatalf("expected an error for unauthorized response")
	}
}

func TestNewTextToSpeechClientRequiresKey(t *testing.T) {
	if _, err := NewTextToSpeechClient(""); err == nil {
		t.Fatalf("expected missing key error")
	}
}
