package oto

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	otov3 "github.com/ebitengine/oto/v3"
	"github.com/koscakluka/ema-speaker/core/audio"
)

const pollInterval = 10 * time.Millisecond

// Client plays 16 bit mono PCM through oto.
type Client struct {
	context    *otov3.Context
	sampleRate int
	newPlayer  func(io.Reader) player
}

type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Err() error
}

func NewClient(sampleRate int) (*Client, error) {
	ctx, readyChan, err := otov3.NewContext(&otov3.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       otov3.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	return &Client{
		context:    ctx,
		sampleRate: sampleRate,
		newPlayer:  func(r io.Reader) player { return ctx.NewPlayer(r) },
	}, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: c.sampleRate, Format: audio.EncodingLinear16}
}

func (c *Client) Play(ctx context.Context, r io.Reader) (audio.Playback, error) {
	p := &playback{player: c.newPlayer(r), done: make(chan struct{})}
	p.player.Play()
	go p.watch(ctx)
	return p, nil
}

type playback struct {
	player player

	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	err     error
}

func (p *playback) watch(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			playing := p.player.IsPlaying()
			p.mu.Unlock()
			if playing {
				continue
			}
			if err := p.player.Err(); err != nil {
				p.err = fmt.Errorf("oto player failed: %w", err)
			}
			p.finish()
			return
		}
	}
}

func (p *playback) finish() {
	p.once.Do(func() { close(p.done) })
}

func (p *playback) Wait() error {
	<-p.done
	if p.stopped.Load() {
		return audio.ErrPlaybackStopped
	}
	return p.err
}

func (p *playback) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	p.stopped.Store(true)
	p.mu.Lock()
	p.player.Pause()
	p.mu.Unlock()
	p.finish()
	return nil
}
