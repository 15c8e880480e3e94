package orchestration

import (
	"errors"
	"fmt"
)

var (
	// ErrCompletionFailure marks turns whose reply could not be generated,
	// including timeouts and empty replies.
	ErrCompletionFailure = errors.New("completion failure")
	// ErrSynthesisFailure marks turns whose reply could not be turned into
	// speech.
	ErrSynthesisFailure = errors.New("synthesis failure")
	// ErrPlaybackFailure marks turns whose speech could not be played.
	ErrPlaybackFailure = errors.New("playback failure")

	ErrInvalidTransition = errors.New("invalid transition")
)

func failure(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
