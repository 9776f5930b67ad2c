// ABOUTME: Interactive Session Controller: the Idle/Running/Paused/AwaitingHuman/Complete state
// ABOUTME: machine and its operator-facing operations (spec §4.4). Run drives the generation loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/m3data/mase-engine/persona"
	"github.com/m3data/mase-engine/scheduler"
	"github.com/m3data/mase-engine/session"
)

// ErrInvalidTransition is returned when an operation is called from a
// controller state that does not permit it.
var ErrInvalidTransition = errors.New("engine: operation not valid in current state")

// ErrSessionComplete is returned by every operator operation except End once
// the session has reached StateComplete: all such calls are idempotent
// no-ops (spec §4.4).
var ErrSessionComplete = errors.New("engine: session already complete")

// ErrEmptyHumanInput is returned by SubmitHuman for blank text.
var ErrEmptyHumanInput = errors.New("engine: human submission must not be empty")

// ErrUnknownAgent is returned by Invoke for an agent ID with no binding.
var ErrUnknownAgent = errors.New("engine: unknown agent id")

// Controller drives one circle session end to end: it owns the scheduler,
// session log, event bus, and warmth manager, and exposes the operator
// surface the REST control plane calls into.
type Controller struct {
	bus         *Bus
	log         *session.Log
	sched       *scheduler.Scheduler
	llm         LLMCaller
	embed       Embedder
	warmth      *WarmthManager
	analyzer    Analyzer
	bindings    map[string]AgentBinding
	roster      []persona.Participant
	humanName   string
	provocation string
	dialogue    DialogueConfig

	maxTurnRetries       int
	turnRetryBackoffBase float64
	metricsEveryNTurns   int

	mu                sync.Mutex
	state             ControllerState
	pauseGate         chan struct{}
	humanGate         chan struct{}
	forced            string
	continueRequested bool
	stopRequested     bool
	timeline          []HistoryEntry
}

// Config bundles a Controller's collaborators and tunables.
type Config struct {
	Bus                  *Bus
	Log                  *session.Log
	Scheduler            *scheduler.Scheduler
	LLM                  LLMCaller
	Embed                Embedder
	Warmth               *WarmthManager
	Analyzer             Analyzer
	Bindings             map[string]AgentBinding
	Roster               []persona.Participant
	HumanDisplayName     string
	Provocation          string
	Dialogue             DialogueConfig
	MaxTurnRetries       int     // default 3, spec §4.7
	TurnRetryBackoffBase float64 // default 2.0, spec §4.7
	MetricsEveryNTurns   int     // default 1: emit a MetricsEvent after every turn
}

// New builds a Controller ready to Run. Callers resuming a session should
// pre-populate cfg.Log (via session.Resume), cfg.Scheduler (replayed via
// scheduler.ReplaySelection for each historical turn), and leave the
// Controller to rebuild its own HistoryEntry timeline from the log.
func New(cfg Config) *Controller {
	maxRetries := cfg.MaxTurnRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := cfg.TurnRetryBackoffBase
	if backoff <= 0 {
		backoff = 2.0
	}
	metricsEvery := cfg.MetricsEveryNTurns
	if metricsEvery <= 0 {
		metricsEvery = 1
	}

	c := &Controller{
		bus:                  cfg.Bus,
		log:                  cfg.Log,
		sched:                cfg.Scheduler,
		llm:                  cfg.LLM,
		embed:                cfg.Embed,
		warmth:               cfg.Warmth,
		analyzer:             cfg.Analyzer,
		bindings:             cfg.Bindings,
		roster:               cfg.Roster,
		humanName:            cfg.HumanDisplayName,
		provocation:          cfg.Provocation,
		dialogue:             cfg.Dialogue,
		maxTurnRetries:       maxRetries,
		turnRetryBackoffBase: backoff,
		metricsEveryNTurns:   metricsEvery,
		state:                StateIdle,
	}

	for _, t := range cfg.Log.History() {
		c.timeline = append(c.timeline, HistoryEntry{
			SpeakerDisplayName: t.AgentName,
			Content:            t.Content,
		})
	}
	return c
}

// State returns the controller's current state.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TurnHistory returns every turn logged so far, for summary/state endpoints.
func (c *Controller) TurnHistory() []session.TurnRecord {
	return c.log.History()
}

func (c *Controller) setState(s ControllerState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) emitState(ctx context.Context, s ControllerState, nextSpeaker, message string) {
	c.setState(s)
	_ = c.bus.Push(ctx, Event{Type: EventState, State: &StateEvent{State: s, NextSpeaker: nextSpeaker, Message: message}})
}

// Pause transitions Running -> Paused. Invalid from any other state.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateComplete {
		return ErrSessionComplete
	}
	if c.state != StateRunning {
		return ErrInvalidTransition
	}
	c.state = StatePaused
	c.pauseGate = make(chan struct{})
	return nil
}

// Resume transitions Paused -> Running, waking the loop's suspension point.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state == StateComplete {
		c.mu.Unlock()
		return ErrSessionComplete
	}
	if c.state != StatePaused {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	gate := c.pauseGate
	c.pauseGate = nil
	c.state = StateRunning
	c.mu.Unlock()
	if gate != nil {
		close(gate)
	}
	return nil
}

// SubmitHuman appends a human turn to the session log at once, under the
// next turn number, publishes its TurnEvent followed by a StateEvent(Running),
// and, if the controller is AwaitingHuman, wakes the loop to continue
// scheduling. Valid from any non-Complete state (spec §4.4): a submission
// made while the loop is Running or Paused is logged the same way, so no
// input is ever silently dropped.
func (c *Controller) SubmitHuman(text string) (session.TurnRecord, error) {
	if text == "" {
		return session.TurnRecord{}, ErrEmptyHumanInput
	}
	c.mu.Lock()
	if c.state == StateComplete {
		c.mu.Unlock()
		return session.TurnRecord{}, ErrSessionComplete
	}
	c.mu.Unlock()

	turn := session.TurnRecord{
		AgentID:   scheduler.HumanSlot,
		AgentName: c.humanDisplayName(),
		Content:   text,
		Model:     "human",
		IsHuman:   true,
	}
	if err := c.log.LogTurn(turn); err != nil {
		return session.TurnRecord{}, fmt.Errorf("log human turn: %w", err)
	}
	c.appendTimeline(HistoryEntry{SpeakerDisplayName: turn.AgentName, Content: text})

	ctx := context.Background()
	_ = c.bus.Push(ctx, Event{Type: EventTurn, Turn: &TurnEvent{
		TurnNumber: c.log.NextTurnNumber() - 1,
		AgentID:    turn.AgentID,
		AgentName:  turn.AgentName,
		Content:    turn.Content,
		Model:      turn.Model,
		IsHuman:    true,
	}})
	c.emitState(ctx, StateRunning, "", "human submission received")

	c.wakeHumanGate()
	return turn, nil
}

// Invoke force-selects agentID for the next turn, bypassing the
// scheduler's normal rules once. Waking any active pause/human gate lets a
// paused or awaiting-human loop act on it immediately.
func (c *Controller) Invoke(agentID string) error {
	c.mu.Lock()
	if c.state == StateComplete {
		c.mu.Unlock()
		return ErrSessionComplete
	}
	if _, ok := c.bindings[agentID]; !ok && agentID != scheduler.HumanSlot {
		c.mu.Unlock()
		return ErrUnknownAgent
	}
	c.forced = agentID
	pauseGate := c.pauseGate
	if pauseGate != nil {
		c.pauseGate = nil
		c.state = StateRunning
	}
	c.mu.Unlock()

	if pauseGate != nil {
		closeOnce(pauseGate)
	}
	c.wakeHumanGate()
	return nil
}

// Inject appends a researcher interjection to the context timeline without
// consuming a turn slot or changing controller state. If the loop is
// currently waiting on the human gate, Inject wakes it defensively so the
// gate can re-check whether a real human turn (not just this interjection)
// has arrived; finding none, the wait simply re-arms (engine/generation.go
// waitForHumanGate).
func (c *Controller) Inject(text string) error {
	c.mu.Lock()
	if c.state == StateComplete {
		c.mu.Unlock()
		return ErrSessionComplete
	}
	c.mu.Unlock()

	c.appendTimeline(HistoryEntry{SpeakerDisplayName: "Researcher", Content: text, IsInterjection: true})
	_ = c.bus.Push(context.Background(), Event{Type: EventTurn, Turn: &TurnEvent{
		AgentID:   "interjection",
		AgentName: "Researcher",
		Content:   text,
		IsHuman:   true,
	}})
	c.wakeHumanGate()
	return nil
}

// Continue releases an AwaitingHuman wait without requiring a human turn:
// the scheduler will be consulted again on the next loop iteration.
func (c *Controller) Continue() error {
	c.mu.Lock()
	if c.state == StateComplete {
		c.mu.Unlock()
		return ErrSessionComplete
	}
	if c.state != StateAwaitingHuman {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.continueRequested = true
	c.mu.Unlock()
	c.wakeHumanGate()
	return nil
}

// End sets the stop flag and releases the pause and human gates, so the
// generation loop stops at its next suspension point and finalizes the
// session log itself as it exits. On a session that is not yet Complete,
// End does not wait for that and returns an empty path with no error. On an
// already-complete session it writes the final artifact again (with a new
// end_time) and returns its path.
func (c *Controller) End(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state == StateComplete {
		c.mu.Unlock()
		path, err := c.log.End()
		return path, err
	}
	c.stopRequested = true
	pauseGate := c.pauseGate
	humanGate := c.humanGate
	c.mu.Unlock()

	if pauseGate != nil {
		closeOnce(pauseGate)
	}
	if humanGate != nil {
		closeOnce(humanGate)
	}
	return "", nil
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (c *Controller) humanDisplayName() string {
	if c.humanName != "" {
		return c.humanName
	}
	return "Human"
}

func (c *Controller) appendTimeline(h HistoryEntry) {
	c.mu.Lock()
	c.timeline = append(c.timeline, h)
	c.mu.Unlock()
}

func (c *Controller) lastContent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timeline) == 0 {
		return ""
	}
	return c.timeline[len(c.timeline)-1].Content
}

func (c *Controller) historySnapshot() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]HistoryEntry(nil), c.timeline...)
}

func (c *Controller) consumeForced() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.forced
	c.forced = ""
	return f
}

func (c *Controller) isStopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

func (c *Controller) wakeHumanGate() {
	c.mu.Lock()
	gate := c.humanGate
	c.mu.Unlock()
	if gate != nil {
		closeOnce(gate)
	}
}
