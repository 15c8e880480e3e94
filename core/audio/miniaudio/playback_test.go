package miniaudio

import (
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-speaker/core/audio"
)

func waitDone(t *testing.T, p *playback) error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- p.Wait() }()
	select {
	case err := <-result:
		return err
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for playback")
		return nil
	}
}

func TestPlaybackFinishesWhenAudioIsConsumed(t *testing.T) {
	client := &playbackClient{}
	p := client.enqueue([]byte{1, 2, 3, 4, 5, 6})
	process := client.processAudio(2)

	out := make([]byte, 4)
	process(out, nil, 2)
	select {
	case <-p.done:
		t.Fatalf("expected playback to still be running")
	default:
	}
	if out[0] != 1 || out[3] != 4 {
		t.Fatalf("unexpected output %v", out)
	}

	out = []byte{9, 9, 9, 9}
	process(out, nil, 2)
	if out[0] != 5 || out[1] != 6 || out[2] != 0 || out[3] != 0 {
		t.Fatalf("expected tail then silence, got %v", out)
	}

	if err := waitDone(t, p); err != nil {
		t.Fatalf("expected completed playback, got %v", err)
	}
}

func TestPlaybackStopClearsQueuedAudio(t *testing.T) {
	client := &playbackClient{}
	p := client.enqueue([]byte{1, 2, 3, 4})

	if err := p.Stop(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := waitDone(t, p); !errors.Is(err, audio.ErrPlaybackStopped) {
		t.Fatalf("expected ErrPlaybackStopped, got %v", err)
	}
	if len(client.leftoverAudio) != 0 {
		t.Fatalf("expected buffer to be cleared, got %d bytes", len(client.leftoverAudio))
	}

	// stopping twice is a no-op
	if err := p.Stop(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestEnqueueReplacesPreviousPlayback(t *testing.T) {
	client := &playbackClient{}
	first := client.enqueue([]byte{1, 2})
	second := client.enqueue([]byte{3, 4})

	if err := waitDone(t, first); err != nil {
		t.Fatalf("expected replaced playback to finish, got %v", err)
	}
	if len(client.leftoverAudio) != 2 || client.leftoverAudio[0] != 3 {
		t.Fatalf("expected only the second playback queued, got %v", client.leftoverAudio)
	}

	client.processAudio(2)(make([]byte, 4), nil, 2)
	if err := waitDone(t, second); err != nil {
		t.Fatalf("expected second playback to finish, got %v", err)
	}
}
