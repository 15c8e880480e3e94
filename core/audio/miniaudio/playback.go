package miniaudio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-speaker/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	leftoverAudio []byte
	marks         []playbackMark

	mu      sync.Mutex
	audioMu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(sampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(sampleRate) / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

// Play queues the whole reader for playback and returns a handle that
// finishes once the last byte has been handed to the device.
func (c *playbackClient) Play(ctx context.Context, r io.Reader) (audio.Playback, error) {
	c.mu.Lock()
	ready := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !ready {
		return nil, fmt.Errorf("playback device not started")
	}

	speech, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}

	p := c.enqueue(speech)
	go func() {
		select {
		case <-ctx.Done():
			_ = p.Stop()
		case <-p.done:
		}
	}()
	return p, nil
}

func (c *playbackClient) enqueue(speech []byte) *playback {
	p := &playback{client: c, done: make(chan struct{})}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.clearLocked()
	c.leftoverAudio = append(c.leftoverAudio, speech...)
	c.marks = append(c.marks, playbackMark{
		position: len(c.leftoverAudio),
		callback: p.finish,
	})
	return p
}

func (c *playbackClient) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.clearLocked()
}

// clearLocked drops queued audio, pending marks fire so their waiters do not
// hang.
func (c *playbackClient) clearLocked() {
	pending := c.marks
	c.leftoverAudio = nil
	c.marks = nil
	for _, mark := range pending {
		go mark.callback()
	}
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	c.ClearBuffer()
	return nil
}

type playbackMark struct {
	position int
	callback func()
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		defer c.audioMu.Unlock()

		c.processMarks(need)

		n := copy(pOutput[:min(need, len(pOutput))], c.leftoverAudio)
		c.leftoverAudio = c.leftoverAudio[n:]
		clear(pOutput[n:min(need, len(pOutput))])
	}
}

// processMarks fires marks that fall inside the next until bytes. Callers
// hold audioMu.
func (c *playbackClient) processMarks(until int) {
	passedMarks := 0
	for i, mark := range c.marks {
		if mark.position > until {
			c.marks[i].position -= until
		} else {
			passedMarks++
		}
	}
	if passedMarks > 0 {
		toCall := c.marks[:passedMarks]
		c.marks = c.marks[passedMarks:]
		go func() {
			for _, mark := range toCall {
				mark.callback()
			}
		}()
	}
}

type playback struct {
	client  *playbackClient
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

func (p *playback) finish() {
	p.once.Do(func() { close(p.done) })
}

func (p *playback) Wait() error {
	<-p.done
	if p.stopped.Load() {
		return audio.ErrPlaybackStopped
	}
	return nil
}

func (p *playback) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	p.stopped.Store(true)
	p.client.ClearBuffer()
	p.finish()
	return nil
}
