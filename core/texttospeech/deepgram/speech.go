package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-speaker/core/texttospeech"
)

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

// SynthesizeSpeech speaks text in a single Speak/Flush exchange and returns
// the raw audio received until Deepgram confirms the flush.
func (c *TextToSpeechClient) SynthesizeSpeech(ctx context.Context, text string, profile texttospeech.VoiceProfile) ([]byte, error) {
	conn, err := c.connectWebsocket(ctx, c.voiceFor(profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblocks ReadMessage
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
		return nil, fmt.Errorf("failed to send text to deepgram through websocket: %w", err)
	}
	if err := conn.WriteJSON(flushMsg); err != nil {
		return nil, fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err)
	}

	var speech []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("websocket read error: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			speech = append(speech, msg...)
		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Warn("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				if err := conn.WriteJSON(closeMsg); err != nil {
					logger.Debug("failed to send close message to deepgram websocket", "error", err)
				}
				if len(speech) == 0 {
					return nil, errors.New("deepgram returned no audio")
				}
				return speech, nil
			case "Warning", "Error":
				logger.Warn("deepgram reported a problem", "message", string(msg))
			}
		}
	}
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, voice deepgramVoice) (*websocket.Conn, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", c.options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.options.EncodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	base.Path = "/v1/speak"
	base.RawQuery = urlValues.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, base.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}
