package orchestration

import (
	"fmt"
	"slices"
	"sync"
)

// State is the global phase of the orchestrator. Exactly one turn can be
// outside of StateIdle at a time.
type State int

const (
	StateIdle State = iota
	StateDraining
	StateSynthesizing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateSynthesizing:
		return "synthesizing"
	case StateSpeaking:
		return "speaking"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var stateTransitions = map[State][]State{
	StateIdle:         {StateDraining},
	StateDraining:     {StateSynthesizing, StateIdle},
	StateSynthesizing: {StateSpeaking, StateIdle},
	StateSpeaking:     {StateIdle},
}

type stateMachine struct {
	mu    sync.Mutex
	state State

	onChange func(from, to State)
}

func (m *stateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) advance(next State) error {
	m.mu.Lock()
	from := m.state
	if !slices.Contains(stateTransitions[from], next) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	m.state = next
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(from, next)
	}
	return nil
}

// compareAndAdvance moves to next only when the machine is in expected.
func (m *stateMachine) compareAndAdvance(expected, next State) bool {
	m.mu.Lock()
	if m.state != expected || !slices.Contains(stateTransitions[expected], next) {
		m.mu.Unlock()
		return false
	}
	m.state = next
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(expected, next)
	}
	return true
}

func (m *stateMachine) setOnChange(onChange func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = onChange
}
