package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-speaker/core/audio"
)

var errCaptureNotInitialized = errors.New("capture device not initialized")

// captureClient records the microphone for speech recognition. Chunks are
// copied before they are handed out, malgo reuses its input buffer.
type captureClient struct {
	device   *malgo.Device
	encoding audio.EncodingInfo

	onAudio  atomic.Pointer[func(audio []byte)]
	captured atomic.Int64

	mu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.encoding = audio.GetDefaultEncodingInfo()
	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16)

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(c.encoding.SampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	// 30ms periods at 16kHz
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			size := int(frameCount) * bytesPerFrame
			if size == 0 || len(input) < size {
				return
			}

			onAudio := c.onAudio.Load()
			if onAudio == nil {
				return
			}
			chunk := make([]byte, size)
			copy(chunk, input[:size])
			c.captured.Add(int64(size))
			(*onAudio)(chunk)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	c.device = device

	return nil
}

func (c *captureClient) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errCaptureNotInitialized
	}

	c.onAudio.Store(&onAudio)
	if c.device.IsStarted() {
		return nil
	}

	c.captured.Store(0)
	if err := c.device.Start(); err != nil {
		c.onAudio.Store(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	logger.Debug("capture started", "sample_rate", c.encoding.SampleRate)
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errCaptureNotInitialized
	}

	c.onAudio.Store(nil)
	if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	logger.Debug("capture stopped", "captured", c.encoding.Duration(int(c.captured.Load())))
	return nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onAudio.Store(nil)
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}
