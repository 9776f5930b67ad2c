// ABOUTME: Tests for checkpoint/resume, turn contiguity, and atomic checkpoint writes.
package session

import (
	"path/filepath"
	"testing"
)

func newTestTurn(n int, agent string) TurnRecord {
	return TurnRecord{AgentID: agent, AgentName: agent, Content: "hello", Model: "m", Temperature: 0.5, LatencyMs: 10}
}

func TestLogTurnContiguity(t *testing.T) {
	dir := t.TempDir()
	l, err := Start(dir, "sess1", ModeSingleModel, "", "opening question", 42, EmbeddingInline, map[string]string{"a": "m"}, map[string]float64{"a": 0.5})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := l.LogTurn(newTestTurn(i, "a")); err != nil {
			t.Fatalf("LogTurn() error = %v", err)
		}
	}

	history := l.History()
	if len(history) != 5 {
		t.Fatalf("len(history) = %d, want 5", len(history))
	}
	for i, turn := range history {
		if turn.TurnNumber != i+1 {
			t.Errorf("history[%d].TurnNumber = %d, want %d", i, turn.TurnNumber, i+1)
		}
	}
}

func TestCheckpointResume(t *testing.T) {
	dir := t.TempDir()
	l, err := Start(dir, "sess2", ModeSingleModel, "", "opening", 7, EmbeddingInline, nil, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := l.LogTurn(newTestTurn(i, "a")); err != nil {
			t.Fatalf("LogTurn() error = %v", err)
		}
	}

	checkpointPath := filepath.Join(dir, "session_sess2_checkpoint.json")
	rec, err := LoadCheckpoint(checkpointPath)
	if err != nil {
		t.Fatalf("LoadCheckpoint() error = %v", err)
	}
	if len(rec.Turns) != 5 {
		t.Fatalf("len(rec.Turns) = %d, want 5", len(rec.Turns))
	}

	resumed := Resume(dir, rec)
	if resumed.NextTurnNumber() != 6 {
		t.Errorf("NextTurnNumber() = %d, want 6", resumed.NextTurnNumber())
	}

	// Checkpoint idempotence: loading twice yields identical turn counts.
	rec2, err := LoadCheckpoint(checkpointPath)
	if err != nil {
		t.Fatalf("LoadCheckpoint() second read error = %v", err)
	}
	if len(rec2.Turns) != len(rec.Turns) {
		t.Errorf("re-read checkpoint has %d turns, want %d", len(rec2.Turns), len(rec.Turns))
	}
}

func TestEndWritesFinalArtifactWithoutCheckpointSuffix(t *testing.T) {
	dir := t.TempDir()
	l, _ := Start(dir, "sess3", ModeSingleModel, "", "opening", 1, EmbeddingInline, nil, nil)
	_ = l.LogTurn(newTestTurn(0, "a"))

	path, err := l.End()
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	want := filepath.Join(dir, "session_sess3.json")
	if path != want {
		t.Errorf("End() path = %q, want %q", path, want)
	}
}
