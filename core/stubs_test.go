package orchestration

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-speaker/core/audio"
	"github.com/koscakluka/ema-speaker/core/llms"
	"github.com/koscakluka/ema-speaker/core/texttospeech"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type completionStub struct {
	mu      sync.Mutex
	reply   string
	err     error
	panics  bool
	blocked bool
	calls   [][]llms.Message
}

func (s *completionStub) Complete(ctx context.Context, history []llms.Message) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, slices.Clone(history))
	reply, err, panics, blocked := s.reply, s.err, s.panics, s.blocked
	s.mu.Unlock()

	if panics {
		panic("completion exploded")
	}
	if blocked {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (s *completionStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *completionStub) lastCall() []llms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

func (s *completionStub) setPanics(panics bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics = panics
}

type speechStub struct {
	mu      sync.Mutex
	speech  []byte
	err     error
	blocked bool
	texts   []string
	profile texttospeech.VoiceProfile
}

func (s *speechStub) SynthesizeSpeech(ctx context.Context, text string, profile texttospeech.VoiceProfile) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.profile = profile
	speech, err, blocked := s.speech, s.err, s.blocked
	s.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return speech, err
}

// recordingAudioOutput hands out playbacks that finish when the test says so,
// or on their own after autoFinish.
type recordingAudioOutput struct {
	mu         sync.Mutex
	played     [][]byte
	playbacks  []*fakePlayback
	playErr    error
	waitErr    error
	autoFinish time.Duration

	playing    int
	maxPlaying int
}

func (o *recordingAudioOutput) Play(_ context.Context, speech io.Reader) (audio.Playback, error) {
	data, err := io.ReadAll(speech)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playErr != nil {
		return nil, o.playErr
	}

	o.played = append(o.played, data)
	o.playing++
	o.maxPlaying = max(o.maxPlaying, o.playing)

	playback := &fakePlayback{output: o, done: make(chan struct{}), waitErr: o.waitErr}
	o.playbacks = append(o.playbacks, playback)
	if o.autoFinish > 0 {
		time.AfterFunc(o.autoFinish, playback.finish)
	}
	return playback, nil
}

func (o *recordingAudioOutput) playCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.played)
}

func (o *recordingAudioOutput) playingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

func (o *recordingAudioOutput) lastPlayback() *fakePlayback {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.playbacks) == 0 {
		return nil
	}
	return o.playbacks[len(o.playbacks)-1]
}

func (o *recordingAudioOutput) lastPlayed() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.played) == 0 {
		return nil
	}
	return o.played[len(o.played)-1]
}

type fakePlayback struct {
	output  *recordingAudioOutput
	once    sync.Once
	done    chan struct{}
	waitErr error

	mu      sync.Mutex
	stopped bool
}

func (p *fakePlayback) finish() {
	p.once.Do(func() {
		p.output.mu.Lock()
		p.output.playing--
		p.output.mu.Unlock()
		close(p.done)
	})
}

func (p *fakePlayback) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return audio.ErrPlaybackStopped
	}
	return p.waitErr
}

func (p *fakePlayback) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.finish()
	return nil
}

func (p *fakePlayback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

var errStub = errors.New("stub failure")

func speechBytes() []byte { return bytes.Repeat([]byte{1, 0}, 8) }
