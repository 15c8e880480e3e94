// Package listener turns microphone speech into speaker service calls.
package listener

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-speaker/core/audio"
	"github.com/koscakluka/ema-speaker/core/speechtotext"
	"golang.org/x/time/rate"
)

var exitPattern = regexp.MustCompile(`(?i)\b(exit|quit)\b`)

type Speaker interface {
	Submit(ctx context.Context, content string) (string, error)
	Interrupt(ctx context.Context) (bool, error)
	CleanQueue(ctx context.Context) (int, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStream() error
	Done() <-chan struct{}
}

type Microphone interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	CaptureEncodingInfo() audio.EncodingInfo
}

type Listener struct {
	speaker     Speaker
	transcriber Transcriber
	microphone  Microphone

	interruptLimiter *rate.Limiter
	silence          *silenceWatcher
	requestTimeout   time.Duration

	transcripts chan string
	exitOnce    sync.Once
	exit        chan struct{}
}

type Option func(*Listener)

// WithInterruptInterval limits how often interim transcripts may interrupt
// the speaker.
func WithInterruptInterval(interval time.Duration) Option {
	return func(l *Listener) { l.interruptLimiter = rate.NewLimiter(rate.Every(interval), 1) }
}

// WithSilenceThreshold sets how long no speech has to be heard before the
// current time is logged.
func WithSilenceThreshold(threshold time.Duration) Option {
	return func(l *Listener) { l.silence = newSilenceWatcher(threshold) }
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(l *Listener) { l.requestTimeout = timeout }
}

func New(speaker Speaker, transcriber Transcriber, microphone Microphone, opts ...Option) *Listener {
	l := &Listener{
		speaker:          speaker,
		transcriber:      transcriber,
		microphone:       microphone,
		interruptLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		silence:          newSilenceWatcher(2 * time.Second),
		requestTimeout:   10 * time.Second,
		transcripts:      make(chan string, 32),
		exit:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run listens until ctx is cancelled, the user says exit or quit, or the
// transcription stream ends.
func (l *Listener) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cleanCtx, cleanCancel := context.WithTimeout(ctx, l.requestTimeout)
	removed, err := l.speaker.CleanQueue(cleanCtx)
	cleanCancel()
	if err != nil {
		return fmt.Errorf("failed to clean speaker queue: %w", err)
	}
	logger.Info("speaker queue cleaned", "removed", removed)

	if err := l.transcriber.Transcribe(ctx,
		speechtotext.WithEncodingInfo(l.microphone.CaptureEncodingInfo()),
		speechtotext.WithInterimTranscriptionCallback(l.onInterimTranscript),
		speechtotext.WithTranscriptionCallback(l.onTranscript),
	); err != nil {
		return fmt.Errorf("failed to start transcription: %w", err)
	}

	submitterDone := make(chan struct{})
	go func() {
		defer close(submitterDone)
		l.submitTranscripts(ctx)
	}()
	go l.silence.run(ctx)

	if err := l.microphone.StartCapture(ctx, func(audio []byte) {
		if err := l.transcriber.SendAudio(audio); err != nil {
			logger.Debug("failed to send audio", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	logger.Info("listening, say exit or quit to stop")

	select {
	case <-ctx.Done():
	case <-l.exit:
		logger.Info("exit requested")
	case <-l.transcriber.Done():
		logger.Warn("transcription stream ended")
	}

	if err := l.microphone.StopCapture(); err != nil {
		logger.Warn("failed to stop capture", "error", err)
	}
	if err := l.transcriber.StopStream(); err != nil {
		logger.Debug("failed to stop transcription stream", "error", err)
	}
	cancel()
	<-submitterDone

	return nil
}

func (l *Listener) onInterimTranscript(transcript string) {
	l.silence.observe()
	if !l.interruptLimiter.Allow() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.requestTimeout)
		defer cancel()
		interrupted, err := l.speaker.Interrupt(ctx)
		if err != nil {
			logger.Warn("failed to interrupt speaker", "error", err)
			return
		}
		if interrupted {
			logger.Info("speaker interrupted", "transcript", transcript)
		}
	}()
}

func (l *Listener) onTranscript(transcript string) {
	l.silence.observe()
	if strings.TrimSpace(transcript) == "" {
		return
	}
	logger.Info("heard", "transcript", transcript)

	select {
	case l.transcripts <- transcript:
	default:
		logger.Warn("dropping transcript, speaker is not keeping up", "transcript", transcript)
	}

	// the exit phrase is still submitted, Run drains pending submissions
	// before it returns
	if exitPattern.MatchString(transcript) {
		l.exitOnce.Do(func() { close(l.exit) })
	}
}

// submitTranscripts keeps submissions in the order they were heard. Once ctx
// is done it still submits whatever was heard before returning.
func (l *Listener) submitTranscripts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case transcript := <-l.transcripts:
					l.submit(context.WithoutCancel(ctx), transcript)
				default:
					return
				}
			}
		case transcript := <-l.transcripts:
			l.submit(ctx, transcript)
		}
	}
}

func (l *Listener) submit(ctx context.Context, transcript string) {
	ctx, cancel := context.WithTimeout(ctx, l.requestTimeout)
	defer cancel()

	id, err := l.speaker.Submit(ctx, transcript)
	if err != nil {
		logger.Warn("failed to submit transcript", "error", err)
		return
	}
	logger.Debug("transcript submitted", "id", id)
}
