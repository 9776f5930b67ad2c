// ABOUTME: Tests for the interactive session controller: state machine, human gating, and the
// ABOUTME: turn-level retry contract, against a fake LLM client so no real backend is needed.
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3data/mase-engine/llm"
	"github.com/m3data/mase-engine/persona"
	"github.com/m3data/mase-engine/scheduler"
	"github.com/m3data/mase-engine/session"
)

type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	idx := i
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return &llm.ChatResponse{Message: llm.ChatResponseMessage{Content: f.responses[idx]}}, nil
}

func testBindings() map[string]AgentBinding {
	return map[string]AgentBinding{
		"orin": {
			Persona: persona.Persona{ID: "orin", Name: "Orin"},
			ModelID: "llama3",
		},
	}
}

func newTestController(t *testing.T, llmClient LLMCaller, maxTurns int) (*Controller, *Bus) {
	t.Helper()
	dir := t.TempDir()
	logger, err := session.Start(dir, "test-session", session.ModeSingleModel, "", "opening question", 1, session.EmbeddingInline, map[string]string{"orin": "llama3"}, map[string]float64{"orin": 0.5})
	if err != nil {
		t.Fatalf("session.Start() error = %v", err)
	}
	bus := NewBus(64)
	sched := scheduler.New([]string{"orin", scheduler.HumanSlot}, 1, 1)
	ctrl := New(Config{
		Bus:                  bus,
		Log:                  logger,
		Scheduler:            sched,
		LLM:                  llmClient,
		Bindings:             testBindings(),
		HumanDisplayName:     "Human",
		Provocation:          "opening question",
		Dialogue:             DialogueConfig{MaxTurns: maxTurns, ContextWindow: 5},
		MaxTurnRetries:       1,
		TurnRetryBackoffBase: 1.0,
	})
	return ctrl, bus
}

func drainUntilComplete(t *testing.T, ctrl *Controller, bus *Bus, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	cursor := bus.Cursor()
	submittedThisWait := false
	for time.Now().Before(deadline) {
		if ctrl.State() == StateComplete {
			return
		}
		_, next, ok := bus.Read(context.Background(), cursor, 50*time.Millisecond)
		if ok {
			cursor = next
		}
		if ctrl.State() == StateAwaitingHuman {
			if !submittedThisWait {
				submittedThisWait = true
				_, _ = ctrl.SubmitHuman("a human reply")
			}
		} else {
			submittedThisWait = false
		}
	}
	t.Fatalf("controller did not reach Complete within %v (state=%s)", timeout, ctrl.State())
}

func TestPauseResumeTransitions(t *testing.T) {
	fl := &fakeLLM{responses: []string{"hello there"}}
	ctrl, _ := newTestController(t, fl, 1)

	if err := ctrl.Pause(); err == nil || !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Pause() from Idle error = %v, want ErrInvalidTransition", err)
	}

	ctrl.setState(StateRunning)
	if err := ctrl.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if ctrl.State() != StatePaused {
		t.Fatalf("state = %s, want paused", ctrl.State())
	}
	if err := ctrl.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if ctrl.State() != StateRunning {
		t.Fatalf("state = %s, want running", ctrl.State())
	}
}

func TestOperationsNoOpAfterComplete(t *testing.T) {
	fl := &fakeLLM{responses: []string{"hi"}}
	ctrl, _ := newTestController(t, fl, 1)
	ctrl.setState(StateComplete)

	if err := ctrl.Pause(); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("Pause() after Complete error = %v, want ErrSessionComplete", err)
	}
	if _, err := ctrl.SubmitHuman("text"); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("SubmitHuman() after Complete error = %v, want ErrSessionComplete", err)
	}
	if err := ctrl.Invoke("orin"); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("Invoke() after Complete error = %v, want ErrSessionComplete", err)
	}
}

func TestSubmitHumanRejectsEmpty(t *testing.T) {
	fl := &fakeLLM{responses: []string{"hi"}}
	ctrl, _ := newTestController(t, fl, 1)
	if _, err := ctrl.SubmitHuman(""); !errors.Is(err, ErrEmptyHumanInput) {
		t.Errorf("SubmitHuman(\"\") error = %v, want ErrEmptyHumanInput", err)
	}
}

func TestInvokeRejectsUnknownAgent(t *testing.T) {
	fl := &fakeLLM{responses: []string{"hi"}}
	ctrl, _ := newTestController(t, fl, 1)
	if err := ctrl.Invoke("ghost"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Invoke(ghost) error = %v, want ErrUnknownAgent", err)
	}
}

func TestRunCompletesWithForcedOpeningAndHumanReply(t *testing.T) {
	fl := &fakeLLM{responses: []string{"Orin speaks first.", "Orin speaks again."}}
	ctrl, bus := newTestController(t, fl, 3)
	ctrl.dialogue.OpeningAgent = "orin"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = ctrl.Run(ctx)
		close(done)
	}()

	drainUntilComplete(t, ctrl, bus, 2*time.Second)
	<-done

	turns := ctrl.log.History()
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
}

func TestCompleteWithRetryExhaustsAndReturnsError(t *testing.T) {
	fl := &fakeLLM{
		responses: []string{""},
		errs:       []error{llm.ErrorFromStatus(502, "bad gateway", nil), llm.ErrorFromStatus(502, "bad gateway", nil)},
	}
	ctrl, _ := newTestController(t, fl, 1)
	_, _, err := ctrl.completeWithRetry(context.Background(), 1, "orin", "llama3", llm.ChatRequest{})
	if err == nil {
		t.Fatal("completeWithRetry() error = nil, want non-nil after exhausting retries")
	}
	if fl.calls != 2 {
		t.Errorf("llm calls = %d, want 2 (1 + 1 retry)", fl.calls)
	}
}
