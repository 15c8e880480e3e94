package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-speaker/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator runs conversation turns one at a time: it drains submitted
// fragments, generates a reply and speaks it, while interrupts may cut the
// speech short.
type Orchestrator struct {
	config orchestratorConfig

	buffer      *PendingInputBuffer
	synthesizer *TurnSynthesizer
	playback    *PlaybackController
	state       stateMachine

	activeMu sync.Mutex
	active   *PlaybackUnit

	lastTurnMu sync.Mutex
	lastTurn   *Turn

	wake chan struct{}

	lifecycleMu        sync.Mutex
	started            bool
	closed             bool
	cancelCoordinator  context.CancelFunc
	coordinatorDone    chan struct{}
	orchestrateOptions OrchestrateOptions
}

// Ack confirms a submission, processing continues asynchronously.
type Ack struct {
	FragmentID string
}

type InterruptResult struct {
	Interrupted bool
}

type Status struct {
	State         State
	Pending       int
	HistoryLength int
	Speaking      bool
	LastTurn      *Turn
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		config:          defaultOrchestratorConfig(),
		buffer:          NewPendingInputBuffer(),
		wake:            make(chan struct{}, 1),
		coordinatorDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.synthesizer = NewTurnSynthesizer(
		o.config.completionClient,
		o.config.systemPrompt,
		o.config.completionTimeout,
		o.config.historyLimit,
	)
	o.playback = NewPlaybackController(
		o.config.textToSpeech,
		o.config.audioOutput,
		o.config.voice,
		o.config.synthesisTimeout,
		o.config.spoolDir,
	)

	return o
}

// Orchestrate starts the coordinator that runs turns in the background.
//
// ctx is the base context for every turn, cancelling it closes the
// orchestrator. Calling Orchestrate more than once or after Close is a no-op.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	o.lifecycleMu.Lock()
	if o.closed {
		o.lifecycleMu.Unlock()
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	} else if o.started {
		o.lifecycleMu.Unlock()
		logger.Warn("orchestrator already running, skipping Orchestrate")
		return
	}

	o.orchestrateOptions = OrchestrateOptions{}
	for _, opt := range opts {
		opt(&o.orchestrateOptions)
	}
	o.state.setOnChange(o.orchestrateOptions.onStateChange)

	coordinatorCtx, cancel := context.WithCancel(ctx)
	o.started = true
	o.cancelCoordinator = cancel
	o.lifecycleMu.Unlock()

	go func() {
		defer close(o.coordinatorDone)
		if err := panicSafeNamedWorker("coordinator", o.coordinate)(coordinatorCtx); err != nil {
			logger.Error("coordinator stopped", "error", err)
		}
	}()

	withContextCancelHook(ctx, o.Close)
}

// Close stops the coordinator, cancels any active speech and waits for the
// running turn to end.
func (o *Orchestrator) Close() {
	o.lifecycleMu.Lock()
	if o.closed {
		started := o.started
		o.lifecycleMu.Unlock()
		if started {
			<-o.coordinatorDone
		}
		return
	}
	o.closed = true
	started := o.started
	cancel := o.cancelCoordinator
	o.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.Interrupt()

	if started {
		<-o.coordinatorDone
	}
	// a Submit racing with Close may have woken a coordinator that is gone
	o.state.compareAndAdvance(StateDraining, StateIdle)
}

func (o *Orchestrator) isClosed() bool {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()
	return o.closed
}

// Submit queues text for the next turn and starts one if the orchestrator is
// idle. It never waits for a running turn.
func (o *Orchestrator) Submit(text string) Ack {
	fragment := o.buffer.Append(text)
	submissionCounter.Add(context.Background(), 1)

	if o.isClosed() {
		return Ack{FragmentID: fragment.ID}
	}
	if o.state.compareAndAdvance(StateIdle, StateDraining) {
		select {
		case o.wake <- struct{}{}:
		default:
		}
	}

	return Ack{FragmentID: fragment.ID}
}

// Interrupt cancels the speech in progress. It reports false when there was
// nothing to interrupt.
func (o *Orchestrator) Interrupt() InterruptResult {
	o.activeMu.Lock()
	unit := o.active
	o.activeMu.Unlock()

	interrupted := unit != nil && unit.requestCancel()
	interruptCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("interrupted", interrupted)))
	if interrupted {
		logger.Info("speech interrupted")
	}

	return InterruptResult{Interrupted: interrupted}
}

// ResetQueue discards every fragment that has not been drained yet and
// returns how many were dropped. A turn in progress is not affected.
func (o *Orchestrator) ResetQueue() int {
	removed := len(o.buffer.DrainAll())
	logger.Info("queue cleaned", "removed", removed)
	return removed
}

func (o *Orchestrator) State() State { return o.state.Current() }

// History returns a copy of the conversation history.
func (o *Orchestrator) History() []llms.Message { return o.synthesizer.History() }

func (o *Orchestrator) Status() Status {
	o.activeMu.Lock()
	speaking := o.active != nil
	o.activeMu.Unlock()

	o.lastTurnMu.Lock()
	lastTurn := o.lastTurn.clone()
	o.lastTurnMu.Unlock()

	return Status{
		State:         o.state.Current(),
		Pending:       o.buffer.Len(),
		HistoryLength: len(o.synthesizer.History()),
		Speaking:      speaking,
		LastTurn:      lastTurn,
	}
}

func (o *Orchestrator) coordinate(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.wake:
		}

		if err := panicSafeNamedWorker("turn", o.runTurn)(ctx); err != nil {
			logger.Error("turn aborted", "error", err)
			o.abortToIdle()
		}
	}
}

func (o *Orchestrator) runTurn(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "run turn")
	defer span.End()

	fragments := o.drain(ctx)
	if len(fragments) == 0 {
		return o.transition(ctx, StateIdle)
	}

	turn := newTurn(fragments)
	span.SetAttributes(
		attribute.String("turn.id", turn.ID),
		attribute.Int("turn.fragments", len(fragments)),
	)

	// The turn is reported before the machine returns to Idle, so the next
	// turn never starts ahead of the previous one's report. The deferred call
	// only covers panics.
	finished := false
	defer func() {
		if !finished {
			o.finishTurn(ctx, turn)
		}
	}()

	err := o.processTurn(ctx, turn, fragments)
	finished = true
	o.finishTurn(ctx, turn)
	if err != nil {
		return err
	}

	return o.transition(ctx, StateIdle)
}

// processTurn leaves the machine in Synthesizing or Speaking, the caller
// returns it to Idle once the turn has been reported.
func (o *Orchestrator) processTurn(ctx context.Context, turn *Turn, fragments []Fragment) error {
	if err := o.transition(ctx, StateSynthesizing); err != nil {
		return err
	}
	if err := turn.advance(TurnSynthesizing); err != nil {
		return err
	}

	reply, err := o.synthesizer.Synthesize(ctx, fragments)
	if err != nil {
		return turn.fail(err)
	}
	turn.ReplyText = reply

	if err := o.transition(ctx, StateSpeaking); err != nil {
		return err
	}
	if err := turn.advance(TurnSpeaking); err != nil {
		return err
	}

	outcome, err := o.speak(ctx, reply)
	switch outcome {
	case OutcomeCompleted:
		return turn.advance(TurnCompleted)
	case OutcomeInterrupted:
		return turn.advance(TurnInterrupted)
	}
	if err == nil {
		err = failure(ErrPlaybackFailure, errors.New("playback ended without an outcome"))
	}
	return turn.fail(err)
}

func (o *Orchestrator) drain(ctx context.Context) []Fragment {
	_, span := tracer.Start(ctx, "drain")
	defer span.End()

	if newest, ok := o.buffer.Newest(); ok {
		logger.Info("draining pending input", "newest_age", time.Since(newest.ArrivedAt).Round(time.Millisecond))
	}
	fragments := o.buffer.DrainAll()
	span.SetAttributes(attribute.Int("drain.fragments", len(fragments)))
	return fragments
}

// speak holds the active slot for the whole unit, so Interrupt always sees
// the unit that is playing.
func (o *Orchestrator) speak(ctx context.Context, reply string) (PlaybackOutcome, error) {
	o.activeMu.Lock()
	if o.active != nil {
		o.activeMu.Unlock()
		return OutcomeFailed, fmt.Errorf("%w: speech already active", ErrInvalidTransition)
	}
	unit := o.playback.Start(ctx, reply)
	o.active = unit
	o.activeMu.Unlock()

	outcome, err := unit.Wait()

	o.activeMu.Lock()
	o.active = nil
	o.activeMu.Unlock()

	return outcome, err
}

func (o *Orchestrator) transition(ctx context.Context, next State) error {
	if err := o.state.advance(next); err != nil {
		recordSpanError(trace.SpanFromContext(ctx), err)
		return err
	}
	return nil
}

// abortToIdle brings the machine back to Idle after a turn was cut short by
// a panic or an invalid transition.
func (o *Orchestrator) abortToIdle() {
	o.activeMu.Lock()
	unit := o.active
	o.active = nil
	o.activeMu.Unlock()
	if unit != nil {
		unit.Cancel()
	}

	if current := o.state.Current(); current != StateIdle {
		if err := o.state.advance(StateIdle); err != nil {
			logger.Error("failed to return to idle", "state", current.String(), "error", err)
		}
	}
}

func (o *Orchestrator) finishTurn(ctx context.Context, turn *Turn) {
	if !turn.State.IsFinished() {
		_ = turn.fail(errors.New("turn aborted"))
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("turn.state", turn.State.String()))
	turnCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", turn.State.String())))
	turnDuration.Record(ctx, turn.Duration().Seconds())

	if turn.Err != nil {
		recordSpanError(span, turn.Err)
		logger.Error("turn failed", "turn", turn.ID, "error", turn.Err)
	} else {
		logger.Info("turn finished", "turn", turn.ID, "state", turn.State.String(), "duration", turn.Duration())
	}

	o.lastTurnMu.Lock()
	o.lastTurn = turn.clone()
	o.lastTurnMu.Unlock()

	o.lifecycleMu.Lock()
	options := o.orchestrateOptions
	o.lifecycleMu.Unlock()

	if turn.Err != nil && options.onTurnError != nil {
		options.onTurnError(*turn.clone(), turn.Err)
	}
	if options.onTurnEnd != nil {
		options.onTurnEnd(*turn.clone())
	}
}
