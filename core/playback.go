package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/koscakluka/ema-speaker/core/audio"
	"github.com/koscakluka/ema-speaker/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
)

// TextToSpeech turns a whole reply into raw audio.
type TextToSpeech interface {
	SynthesizeSpeech(ctx context.Context, text string, profile texttospeech.VoiceProfile) ([]byte, error)
}

// AudioOutput plays audio until it is drained or stopped.
type AudioOutput interface {
	Play(ctx context.Context, speech io.Reader) (audio.Playback, error)
}

type PlaybackOutcome int

const (
	OutcomeCompleted PlaybackOutcome = iota
	OutcomeInterrupted
	OutcomeFailed
)

func (o PlaybackOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// PlaybackController speaks replies, each as one cancellable unit.
type PlaybackController struct {
	textToSpeech     TextToSpeech
	audioOutput      AudioOutput
	voice            texttospeech.VoiceProfile
	synthesisTimeout time.Duration
	spoolDir         string
	encoding         audio.EncodingInfo
}

func NewPlaybackController(textToSpeech TextToSpeech, audioOutput AudioOutput, voice texttospeech.VoiceProfile, synthesisTimeout time.Duration, spoolDir string) *PlaybackController {
	controller := &PlaybackController{
		textToSpeech:     textToSpeech,
		audioOutput:      audioOutput,
		voice:            voice,
		synthesisTimeout: synthesisTimeout,
		spoolDir:         spoolDir,
		encoding:         audio.GetDefaultEncodingInfo(),
	}
	if output, ok := audioOutput.(interface{ EncodingInfo() audio.EncodingInfo }); ok {
		controller.encoding = output.EncodingInfo()
	}
	return controller
}

// PlaybackUnit is a single synthesis and playback attempt.
type PlaybackUnit struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	finished  bool
	playback  audio.Playback

	outcome PlaybackOutcome
	err     error
}

// Start begins speaking replyText and returns without waiting for it.
func (c *PlaybackController) Start(ctx context.Context, replyText string) *PlaybackUnit {
	unitCtx, cancel := context.WithCancel(ctx)
	unit := &PlaybackUnit{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer cancel()

		var outcome PlaybackOutcome
		var speakErr error
		err := panicSafeNamedWorker("playback unit", func(ctx context.Context) error {
			outcome, speakErr = c.speak(ctx, unit, replyText)
			return nil
		})(unitCtx)
		if err != nil {
			outcome, speakErr = OutcomeFailed, failure(ErrPlaybackFailure, err)
		}
		unit.finish(outcome, speakErr)
	}()

	return unit
}

func (c *PlaybackController) speak(ctx context.Context, unit *PlaybackUnit, text string) (PlaybackOutcome, error) {
	ctx, span := tracer.Start(ctx, "speak reply")
	defer span.End()

	outcome, err := c.synthesizeAndPlay(ctx, unit, text)
	span.SetAttributes(attribute.String("playback.outcome", outcome.String()))
	if err != nil {
		recordSpanError(span, err)
	}
	return outcome, err
}

func (c *PlaybackController) synthesizeAndPlay(ctx context.Context, unit *PlaybackUnit, text string) (PlaybackOutcome, error) {
	if c.textToSpeech == nil {
		return OutcomeFailed, failure(ErrSynthesisFailure, errors.New("no text to speech client configured"))
	} else if c.audioOutput == nil {
		return OutcomeFailed, failure(ErrPlaybackFailure, errors.New("no audio output configured"))
	}

	started := time.Now()
	speech, err := c.synthesize(ctx, text)
	if ctx.Err() != nil {
		return OutcomeInterrupted, nil
	} else if err != nil {
		return OutcomeFailed, failure(ErrSynthesisFailure, err)
	}
	logger.Info("speech synthesized",
		"duration", time.Since(started),
		"size", humanize.Bytes(uint64(len(speech))),
		"length", c.encoding.Duration(len(speech)))

	spool, release, err := spoolSpeech(c.spoolDir, speech)
	if err != nil {
		return OutcomeFailed, failure(ErrPlaybackFailure, err)
	}
	defer release()

	playback, err := c.audioOutput.Play(ctx, spool)
	if ctx.Err() != nil {
		if playback != nil {
			_ = playback.Stop()
		}
		return OutcomeInterrupted, nil
	} else if err != nil {
		return OutcomeFailed, failure(ErrPlaybackFailure, err)
	}

	if !unit.attach(playback) {
		_ = playback.Stop()
		return OutcomeInterrupted, nil
	}

	if err := playback.Wait(); errors.Is(err, audio.ErrPlaybackStopped) || ctx.Err() != nil {
		return OutcomeInterrupted, nil
	} else if err != nil {
		return OutcomeFailed, failure(ErrPlaybackFailure, err)
	}
	return OutcomeCompleted, nil
}

func (c *PlaybackController) synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.synthesisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.synthesisTimeout)
		defer cancel()
	}

	speech, err := c.textToSpeech.SynthesizeSpeech(ctx, text, c.voice)
	if err != nil {
		return nil, err
	} else if len(speech) == 0 {
		return nil, errors.New("no audio synthesized")
	}
	return speech, nil
}

// spoolSpeech keeps synthesized audio in a temporary file until it has been
// played. release closes and removes the file.
func spoolSpeech(dir string, speech []byte) (*os.File, func(), error) {
	file, err := os.CreateTemp(dir, "ema-speech-*.pcm")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create speech spool: %w", err)
	}
	release := func() {
		_ = file.Close()
		if err := os.Remove(file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove speech spool", "path", file.Name(), "error", err)
		}
	}

	if _, err := file.Write(speech); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to write speech spool: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to rewind speech spool: %w", err)
	}
	return file, release, nil
}

// Wait blocks until the unit has ended.
func (u *PlaybackUnit) Wait() (PlaybackOutcome, error) {
	<-u.done
	return u.outcome, u.err
}

// Done is closed once the unit has ended.
func (u *PlaybackUnit) Done() <-chan struct{} {
	return u.done
}

// Cancel stops the unit, it is a no-op for ended or already cancelled units.
func (u *PlaybackUnit) Cancel() {
	u.requestCancel()
}

// requestCancel reports whether this call is the one that cancelled the unit.
func (u *PlaybackUnit) requestCancel() bool {
	u.mu.Lock()
	if u.cancelled || u.finished {
		u.mu.Unlock()
		return false
	}
	u.cancelled = true
	playback := u.playback
	u.mu.Unlock()

	u.cancel()
	if playback != nil {
		if err := playback.Stop(); err != nil {
			logger.Warn("failed to stop playback", "error", err)
		}
	}
	return true
}

func (u *PlaybackUnit) attach(playback audio.Playback) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancelled {
		return false
	}
	u.playback = playback
	return true
}

func (u *PlaybackUnit) finish(outcome PlaybackOutcome, err error) {
	u.mu.Lock()
	u.finished = true
	if u.cancelled {
		outcome, err = OutcomeInterrupted, nil
	}
	u.outcome, u.err = outcome, err
	u.mu.Unlock()

	close(u.done)
}
