package deepgram

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseURL  = "wss://api.deepgram.com"
	defaultModel    = "nova-2"
	defaultLanguage = "ru-RU"
)

// TranscriptionClient streams microphone audio to Deepgram and reports
// transcripts through callbacks.
type TranscriptionClient struct {
	apiKey   string
	baseURL  string
	model    string
	language string

	conn      *websocket.Conn
	connMu    sync.Mutex
	lastMsgTs time.Time
	done      chan struct{}

	stateMu               sync.Mutex
	accumulatedTranscript string
	unendedSegment        bool
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *TranscriptionClient) { c.baseURL = baseURL }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

// WithLanguage sets the BCP-47 language tag to recognize.
func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) { c.language = language }
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		baseURL:  defaultBaseURL,
		model:    defaultModel,
		language: defaultLanguage,
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

	return client, nil
}

// Done is closed once the transcription stream has ended.
func (s *TranscriptionClient) Done() <-chan struct{} {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}

// Close drops the connection without waiting for pending results.
func (s *TranscriptionClient) Close() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
