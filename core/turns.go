package orchestration

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type TurnState int

const (
	TurnPending TurnState = iota
	TurnSynthesizing
	TurnSpeaking
	TurnCompleted
	TurnInterrupted
	TurnFailed
)

func (s TurnState) String() string {
	switch s {
	case TurnPending:
		return "pending"
	case TurnSynthesizing:
		return "synthesizing"
	case TurnSpeaking:
		return "speaking"
	case TurnCompleted:
		return "completed"
	case TurnInterrupted:
		return "interrupted"
	case TurnFailed:
		return "failed"
	}
	return fmt.Sprintf("turn_state(%d)", int(s))
}

func (s TurnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s TurnState) IsFinished() bool {
	return s == TurnCompleted || s == TurnInterrupted || s == TurnFailed
}

var turnTransitions = map[TurnState][]TurnState{
	TurnPending:      {TurnSynthesizing},
	TurnSynthesizing: {TurnSpeaking, TurnFailed},
	TurnSpeaking:     {TurnCompleted, TurnInterrupted, TurnFailed},
}

// Turn is one drain, synthesize, speak cycle.
type Turn struct {
	ID                string
	SourceFragmentIDs []string
	Prompt            string
	ReplyText         string
	State             TurnState
	Err               error

	StartedAt time.Time
	EndedAt   time.Time
}

func newTurn(fragments []Fragment) *Turn {
	return &Turn{
		ID:                uuid.NewString(),
		SourceFragmentIDs: fragmentIDs(fragments),
		Prompt:            joinFragments(fragments),
		State:             TurnPending,
		StartedAt:         time.Now(),
	}
}

func (t *Turn) advance(next TurnState) error {
	if !slices.Contains(turnTransitions[t.State], next) {
		return fmt.Errorf("%w: turn %s -> %s", ErrInvalidTransition, t.State, next)
	}
	t.State = next
	if next.IsFinished() {
		t.EndedAt = time.Now()
	}
	return nil
}

func (t *Turn) fail(err error) error {
	t.Err = err
	return t.advance(TurnFailed)
}

func (t *Turn) Duration() time.Duration {
	if t.EndedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.EndedAt.Sub(t.StartedAt)
}

func (t *Turn) clone() *Turn {
	if t == nil {
		return nil
	}
	clone := *t
	clone.SourceFragmentIDs = slices.Clone(t.SourceFragmentIDs)
	return &clone
}
