package audio

import "errors"

// ErrPlaybackStopped is returned by [Playback.Wait] when the playback was
// stopped before all audio was played.
var ErrPlaybackStopped = errors.New("playback stopped")

// Playback is a handle to audio that an output device is playing.
type Playback interface {
	// Wait blocks until the playback ends. It returns nil when all audio was
	// played, [ErrPlaybackStopped] when Stop ended it early, or a device error.
	Wait() error
	// Stop asks the device to stop playing as soon as possible. It does not
	// wait for the device to go silent. Repeated calls are ignored.
	Stop() error
}
