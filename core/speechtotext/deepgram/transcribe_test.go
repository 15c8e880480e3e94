package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-speaker/core/speechtotext"
)

type transcriptRecorder struct {
	mu      sync.Mutex
	interim []string
	partial []string
	final   []string
	started int
	ended   int
}

func (r *transcriptRecorder) options() speechtotext.TranscriptionOptions {
	return speechtotext.TranscriptionOptions{
		InterimTranscriptionCallback: func(t string) { r.mu.Lock(); r.interim = append(r.interim, t); r.mu.Unlock() },
		PartialTranscriptionCallback: func(t string) { r.mu.Lock(); r.partial = append(r.partial, t); r.mu.Unlock() },
		TranscriptionCallback:        func(t string) { r.mu.Lock(); r.final = append(r.final, t); r.mu.Unlock() },
		SpeechStartedCallback:        func() { r.mu.Lock(); r.started++; r.mu.Unlock() },
		SpeechEndedCallback:          func() { r.mu.Lock(); r.ended++; r.mu.Unlock() },
	}
}

func (r *transcriptRecorder) finals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.final...)
}

func resultMessage(transcript string, isFinal, speechFinal bool) []byte {
	final := "false"
	if isFinal {
		final = "true"
	}
	speech := "false"
	if speechFinal {
		speech = "true"
	}
	return []byte(`{"type":"Results","is_final":` + final + `,"speech_final":` + speech +
		`,"channel":{"alternatives":[{"transcript":"` + transcript + `"}]}}`)
}

func TestProcessMessageAccumulatesSegmentsUntilSpeechFinal(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()

	client.processMessage([]byte(`{"type":"SpeechStarted"}`), options)
	client.processMessage(resultMessage("привет", false, false), options)
	client.processMessage(resultMessage("привет", true, false), options)
	client.processMessage(resultMessage("как дела", false, false), options)
	client.processMessage(resultMessage("как дела", true, true), options)

	if recorder.started != 1 {
		t.Fatalf("expected 1 speech start, got %d", recorder.started)
	}
	if len(recorder.interim) != 2 || recorder.interim[1] != "привет как дела" {
		t.Fatalf("expected interim transcripts to include accumulated text, got %#v", recorder.interim)
	}
	if len(recorder.partial) != 2 {
		t.Fatalf("expected 2 partial transcripts, got %#v", recorder.partial)
	}
	if got := recorder.finals(); len(got) != 1 || got[0] != "привет как дела" {
		t.Fatalf("expected one full transcript, got %#v", got)
	}
	if recorder.ended != 1 {
		t.Fatalf("expected 1 speech end, got %d", recorder.ended)
	}
}

func TestProcessMessageUtteranceEndFlushesUnendedSegment(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()

	client.processMessage([]byte(`{"type":"SpeechStarted"}`), options)
	client.processMessage(resultMessage("стоп", true, false), options)
	client.processMessage([]byte(`{"type":"UtteranceEnd"}`), options)
	// A second utterance end without new speech is ignored.
	client.processMessage([]byte(`{"type":"UtteranceEnd"}`), options)

	if got := recorder.finals(); len(got) != 1 || got[0] != "стоп" {
		t.Fatalf("expected one flushed transcript, got %#v", got)
	}
	if recorder.ended != 1 {
		t.Fatalf("expected 1 speech end, got %d", recorder.ended)
	}
}

func TestProcessMessageIgnoresMalformedAndEmptyResults(t *testing.T) {
	client := &TranscriptionClient{}
	recorder := &transcriptRecorder{}
	options := recorder.options()

	client.processMessage([]byte(`not json`), options)
	client.processMessage(resultMessage("  ", true, true), options)

	if len(recorder.partial) != 0 || len(recorder.final) != 0 {
		t.Fatalf("expected no transcripts, got partial %#v final %#v", recorder.partial, recorder.final)
	}
}

func TestTranscribeStreamsAudioAndReportsTranscript(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 16)
	var gotAuth, gotLanguage string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLanguage = r.URL.Query().Get("language")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				select {
				case received <- msg:
				default:
				}
				_ = conn.WriteMessage(websocket.TextMessage, resultMessage("exit", true, true))
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewTranscriptionClient(
		WithAPIKey("key"),
		WithBaseURL("ws"+strings.TrimPrefix(server.URL, "http")),
	)
	if err != nil {
		t.Fatalf("expected client, got error %v", err)
	}

	transcripts := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Transcribe(ctx, speechtotext.WithTranscriptionCallback(func(transcript string) {
		select {
		case transcripts <- transcript:
		default:
		}
	})); err != nil {
		t.Fatalf("expected transcription to start, got %v", err)
	}

	if err := client.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("expected audio to be sent, got %v", err)
	}

	select {
	case transcript := <-transcripts:
		if transcript != "exit" {
			t.Fatalf("expected transcript %q, got %q", "exit", transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected transcript before timeout")
	}

	if got := <-received; len(got) != 4 {
		t.Fatalf("expected 4 audio bytes, got %d", len(got))
	}
	if gotAuth != "Token key" {
		t.Fatalf("expected token auth header, got %q", gotAuth)
	}
	if gotLanguage != defaultLanguage {
		t.Fatalf("expected language %q, got %q", defaultLanguage, gotLanguage)
	}

	if err := client.StopStream(); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected stream to finish")
	}
}

func TestSendAudioWithoutConnectionFails(t *testing.T) {
	client := &TranscriptionClient{}
	if err := client.SendAudio([]byte{0}); err != errNotConnected {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
}
