package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-speaker/core/texttospeech"
)

func TestSynthesizeSpeechRequestsPCM(t *testing.T) {
	var received struct {
		Input          string  `json:"input"`
		Voice          string  `json:"voice"`
		ResponseFormat string  `json:"response_format"`
		Speed          float64 `json:"speed"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write([]byte{9, 9})
	}))
	defer server.Close()

	client := NewTextToSpeechClient("key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	speech, err := client.SynthesizeSpeech(context.Background(), "hello", texttospeech.VoiceProfile{Voice: "nova", Speed: 1.4})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !bytes.Equal(speech, []byte{9, 9}) {
		t.Fatalf("unexpected audio %v", speech)
	}
	if received.Input != "hello" || received.Voice != "nova" || received.ResponseFormat != "pcm" {
		t.Fatalf("unexpected request %+v", received)
	}
	if received.Speed != 1.4 {
		t.Fatalf("expected speed 1.4, got %v", received.Speed)
	}
}

func TestSynthesizeSpeechFallsBackToConfiguredVoice(t *testing.T) {
	var voice string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Voice string `json:"voice"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		voice = body.Voice
		_, _ = w.Write([]byte{1})
	}))
	defer server.Close()

	client := NewTextToSpeechClient("key", WithBaseURL(server.URL), WithHTTPClient(server.Client()), WithVoice("onyx"))
	if _, err := client.SynthesizeSpeech(context.Background(), "hello", texttospeech.DefaultVoiceProfile()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if voice != "onyx" {
		t.Fatalf("expected onyx voice, got %q", voice)
	}
}
