// ABOUTME: The per-turn generation loop: scheduler selection, context build, retrying LLM call,
// ABOUTME: voice-bleed strip, embedding, session-log append, and event-bus publication (spec §4.2, §4.7).
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/m3data/mase-engine/analysis"
	"github.com/m3data/mase-engine/llm"
	"github.com/m3data/mase-engine/persona"
	"github.com/m3data/mase-engine/scheduler"
	"github.com/m3data/mase-engine/session"
)

// nowFunc is overridable in tests; production always uses wall-clock time.
var nowFunc = time.Now

// Run drives the generation loop until MaxTurns is reached, End is called,
// or a fatal per-turn error exhausts its retries. It starts the warmth
// manager over every bound model and stops it on return (spec §4.8).
func (c *Controller) Run(ctx context.Context) error {
	c.setState(StateRunning)
	_ = c.bus.Push(ctx, Event{Type: EventState, State: &StateEvent{State: StateRunning, Message: "session started"}})

	if c.warmth != nil {
		c.warmth.Start(ctx, uniqueModels(c.bindings))
		defer c.warmth.Stop()
	}

	for {
		if c.isStopRequested() {
			break
		}
		if c.dialogue.MaxTurns > 0 && c.log.NextTurnNumber() > c.dialogue.MaxTurns {
			break
		}
		if !c.waitIfPaused(ctx) {
			break
		}
		if c.isStopRequested() {
			break
		}

		force := c.consumeForced()
		if force == "" && c.log.NextTurnNumber() == 1 && c.dialogue.OpeningAgent != "" {
			force = c.dialogue.OpeningAgent
		}
		speaker := c.sched.SelectNext(c.lastContent(), force)

		if speaker == scheduler.HumanSlot {
			c.enterAwaitingHuman(ctx, speaker)
			if !c.waitForHumanGate(ctx) {
				break
			}
			c.setState(StateRunning)
			continue
		}

		if err := c.runAgentTurn(ctx, speaker); err != nil {
			_ = c.bus.Push(ctx, Event{Type: EventError, Err: &ErrorEvent{Message: err.Error(), Fatal: true}})
			break
		}
	}

	c.finalize(ctx)
	return nil
}

// waitIfPaused blocks at the loop's pause suspension point. Returns false
// only if ctx is cancelled while waiting.
func (c *Controller) waitIfPaused(ctx context.Context) bool {
	c.mu.Lock()
	gate := c.pauseGate
	c.mu.Unlock()
	if gate == nil {
		return true
	}
	select {
	case <-gate:
		c.emitState(ctx, StateRunning, "", "Resumed")
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) enterAwaitingHuman(ctx context.Context, nextSpeaker string) {
	c.mu.Lock()
	c.humanGate = make(chan struct{})
	c.mu.Unlock()
	c.emitState(ctx, StateAwaitingHuman, nextSpeaker, "awaiting human input")
}

// waitForHumanGate blocks until a real human turn has been appended to the
// timeline, Continue() or Invoke() explicitly released the wait, ctx is
// cancelled, or End() requested a stop. A wake with none of those causes
// (an Inject with no accompanying human turn) re-arms the gate and keeps
// waiting rather than letting the loop fall through to scheduling on a
// wake that was never meant to select a speaker.
func (c *Controller) waitForHumanGate(ctx context.Context) bool {
	beforeLen := len(c.historySnapshot())
	for {
		c.mu.Lock()
		gate := c.humanGate
		c.mu.Unlock()
		if gate == nil {
			return true
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return false
		}
		if c.isStopRequested() {
			return false
		}

		if len(c.historySnapshot()) > beforeLen {
			c.clearHumanGate()
			return true
		}
		if c.consumeContinueRequested() {
			c.clearHumanGate()
			return true
		}
		c.mu.Lock()
		forced := c.forced
		c.mu.Unlock()
		if forced != "" {
			c.clearHumanGate()
			return true
		}

		c.mu.Lock()
		c.humanGate = make(chan struct{})
		c.mu.Unlock()
	}
}

func (c *Controller) clearHumanGate() {
	c.mu.Lock()
	c.humanGate = nil
	c.mu.Unlock()
}

func (c *Controller) consumeContinueRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.continueRequested
	c.continueRequested = false
	return v
}

func (c *Controller) finalize(ctx context.Context) {
	c.mu.Lock()
	already := c.state == StateComplete
	c.mu.Unlock()
	if already {
		return
	}
	c.setState(StateComplete)
	_, _ = c.log.End()
	_ = c.bus.Push(ctx, Event{Type: EventState, State: &StateEvent{State: StateComplete, Message: "session complete"}})
}

// runAgentTurn executes one LLM-backed turn end to end: build context, call
// with turn-level retry, strip voice bleed, embed, log, publish events, and
// touch the warmth manager (spec §4.2 step 4, §4.7).
func (c *Controller) runAgentTurn(ctx context.Context, agentID string) error {
	binding, ok := c.bindings[agentID]
	if !ok {
		return fmt.Errorf("no binding for agent %s", agentID)
	}

	c.emitState(ctx, StateRunning, agentID, fmt.Sprintf("%s is thinking", binding.Persona.Name))

	history := c.historySnapshot()
	messages := BuildContext(binding, c.roster, c.provocation, history, c.dialogue.ContextWindow)

	temperature := binding.BaseTemperature
	opts := &llm.Options{Temperature: &temperature}
	if c.dialogue.PersonalityEnabled {
		sp := persona.DeriveSamplingParams(persona.EffectivePersonality(binding.Persona, binding.Template))
		t, tp, rp := sp.Temperature, sp.TopP, sp.RepeatPenalty
		opts = &llm.Options{Temperature: &t, TopP: &tp, RepeatPenalty: &rp}
	}
	turnNumber := c.log.NextTurnNumber()
	turnSeed := c.log.Seed() + int64(turnNumber)
	opts.Seed = &turnSeed

	req := llm.ChatRequest{Model: binding.ModelID, Messages: messages, Options: opts}

	resp, latencyMs, err := c.completeWithRetry(ctx, turnNumber, agentID, binding.ModelID, req)
	if err != nil {
		return fmt.Errorf("turn %d agent %s exhausted retries: %w", turnNumber, agentID, err)
	}

	content := StripVoiceBleed(resp.Message.Content, binding.Persona.Name)

	var embeddingVec []float32
	if c.embed != nil {
		if v, embedErr := c.embed.Embed(ctx, content); embedErr == nil {
			embeddingVec = v
		}
	}

	turn := session.TurnRecord{
		AgentID:          agentID,
		AgentName:        binding.Persona.Name,
		Content:          content,
		Model:            binding.ModelID,
		Temperature:      *opts.Temperature,
		LatencyMs:        latencyMs,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		Timestamp:        nowFunc(),
		Embedding:        embeddingVec,
	}
	if err := c.log.LogTurn(turn); err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	c.appendTimeline(HistoryEntry{SpeakerDisplayName: binding.Persona.Name, Content: content})

	if c.warmth != nil {
		c.warmth.Touch(binding.ModelID)
	}

	_ = c.bus.Push(ctx, Event{Type: EventTurn, Turn: &TurnEvent{
		TurnNumber: turnNumber,
		AgentID:    agentID,
		AgentName:  binding.Persona.Name,
		Content:    content,
		Model:      binding.ModelID,
		LatencyMs:  latencyMs,
		Color:      binding.Persona.Color,
	}})

	if c.analyzer != nil && turnNumber%c.metricsEveryNTurns == 0 {
		state := c.analyzer.Update(agentID, content, embeddingVec)
		_ = c.bus.Push(ctx, Event{Type: EventMetrics, Metrics: toMetricsEvent(turnNumber, state)})
	}

	return nil
}

// completeWithRetry runs the turn-level retry loop on top of the LLM
// client's own HTTP-level retry: one initial attempt plus up to
// maxTurnRetries retries, with backoff turnRetryBackoffBase^attempt seconds
// between them, logging a TurnError for every failed attempt (spec §4.7).
func (c *Controller) completeWithRetry(ctx context.Context, turnNumber int, agentID, model string, req llm.ChatRequest) (*llm.ChatResponse, int64, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxTurnRetries; attempt++ {
		start := nowFunc()
		resp, err := c.llm.Complete(ctx, req)
		latencyMs := int64(nowFunc().Sub(start) / time.Millisecond)
		if err == nil {
			return resp, latencyMs, nil
		}

		lastErr = err
		_ = c.log.LogError(session.TurnError{
			Turn:      turnNumber,
			Agent:     agentID,
			Model:     model,
			Kind:      classifyErrorKind(err),
			Message:   err.Error(),
			Attempt:   attempt,
			Timestamp: nowFunc(),
		})

		if attempt == c.maxTurnRetries {
			break
		}
		backoff := time.Duration(math.Pow(c.turnRetryBackoffBase, float64(attempt)) * float64(time.Second))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	return nil, 0, lastErr
}

// classifyErrorKind maps an llm client error to a short taxonomy string
// for the TurnError record, per the error hierarchy in llm/errors.go.
func classifyErrorKind(err error) string {
	var backendErr *llm.BackendError
	switch {
	case errors.As(err, new(*llm.TimeoutError)):
		return "timeout"
	case errors.As(err, new(*llm.TransportError)):
		return "connection"
	case errors.As(err, new(*llm.DecodeError)):
		return "decode"
	case errors.As(err, new(*llm.RequestError)):
		return "request"
	case errors.As(err, &backendErr):
		switch {
		case backendErr.StatusCode == 429:
			return "rate_limit"
		case backendErr.StatusCode >= 500:
			return "server"
		default:
			return "backend"
		}
	default:
		return "unknown"
	}
}

// toMetricsEvent converts the analyzer's TurnState to the wire MetricsEvent.
func toMetricsEvent(turnNumber int, s analysis.TurnState) *MetricsEvent {
	speed := s.Speed
	return &MetricsEvent{
		TurnNumber:           turnNumber,
		Basin:                s.Basin,
		BasinConfidence:      s.BasinConfidence,
		IntegrityScore:       s.IntegrityScore,
		IntegrityLabel:       s.IntegrityLabel,
		PsiSemantic:          s.Psi.Semantic,
		PsiTemporal:          s.Psi.Temporal,
		PsiAffective:         s.Psi.Affective,
		VoiceDistinctiveness: s.VoiceDistinctiveness,
		VelocityMagnitude:    &speed,
	}
}

// uniqueModels returns the distinct backing model IDs across bindings,
// sorted by agent ID so the warm-up order is reproducible rather than
// leaking map iteration order.
func uniqueModels(bindings map[string]AgentBinding) []string {
	ids := make([]string, 0, len(bindings))
	for id := range bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seen := map[string]struct{}{}
	var models []string
	for _, id := range ids {
		m := bindings[id].ModelID
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}
	return models
}
