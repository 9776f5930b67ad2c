// ABOUTME: Append-only Session Log with incremental checkpoint-after-turn and resume-from-checkpoint.
// ABOUTME: Checkpoints are written atomically (write-temp, fsync, rename), grounded on the teacher's snapshot pattern.
package session

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
)

// Log owns the in-memory turn history for one session and mirrors it to
// disk after every turn. It is single-writer: only the generation loop
// calls LogTurn; all other readers take a Snapshot.
type Log struct {
	dir     string
	storage EmbeddingStorage
	record  Record
}

// Start initializes a new session record and its on-disk directory. dir is
// the per-session artifact directory (commonly the engine home directory
// itself, since every artifact's filename is already stemmed by
// session_id per spec §3).
func Start(dir, sessionID string, mode Mode, provocationID, provocationText string, seed int64, storage EmbeddingStorage, modelAssignments map[string]string, tempAssignments map[string]float64) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	l := &Log{
		dir:     dir,
		storage: storage,
		record: Record{
			SessionID:              sessionID,
			Mode:                   mode,
			ProvocationID:          provocationID,
			ProvocationText:        provocationText,
			Seed:                   seed,
			StartTime:              now(),
			ModelAssignments:       modelAssignments,
			TemperatureAssignments: tempAssignments,
			EmbeddingStorage:       storage,
			Totals:                 Totals{AgentTurnCounts: map[string]int{}},
		},
	}
	if storage == EmbeddingFile {
		l.record.EmbeddingsFile = fmt.Sprintf("session_%s_embeddings.bin", sessionID)
	}
	log.Printf("component=session_log action=start session=%s mode=%s seed=%d", sessionID, mode, seed)
	return l, nil
}

// now is overridable in tests; production always uses wall-clock time.
var now = defaultNow

// SessionID returns the id stemming every on-disk artifact for this session.
func (l *Log) SessionID() string { return l.record.SessionID }

// Seed returns the session seed, the base for each turn's per-request
// sampling seed (session seed plus turn number).
func (l *Log) Seed() int64 { return l.record.Seed }

// History returns a read-only snapshot of all turns appended so far.
func (l *Log) History() []TurnRecord {
	out := make([]TurnRecord, len(l.record.Turns))
	copy(out, l.record.Turns)
	return out
}

// Snapshot returns a deep-enough copy of the full record for external
// readers.
func (l *Log) Snapshot() Record {
	r := l.record
	r.Turns = l.History()
	counts := make(map[string]int, len(l.record.Totals.AgentTurnCounts))
	for k, v := range l.record.Totals.AgentTurnCounts {
		counts[k] = v
	}
	r.Totals.AgentTurnCounts = counts
	return r
}

// LogTurn appends turn in memory, assigning it the next contiguous turn
// number, updates totals, and writes a checkpoint. No turn is ever
// discarded once this returns (spec §3 invariant).
func (l *Log) LogTurn(turn TurnRecord) error {
	turn.TurnNumber = len(l.record.Turns) + 1
	if l.storage == EmbeddingInline {
		// keep embedding in the record as-is
	} else if len(turn.Embedding) > 0 {
		if err := l.appendEmbeddingFile(turn.Embedding); err != nil {
			return fmt.Errorf("append embedding: %w", err)
		}
		turn.Embedding = nil
	}

	l.record.Turns = append(l.record.Turns, turn)
	l.record.Totals.TotalLatencyMs += turn.LatencyMs
	if turn.PromptTokens != nil {
		l.record.Totals.TotalTokens += *turn.PromptTokens
	}
	if turn.CompletionTokens != nil {
		l.record.Totals.TotalTokens += *turn.CompletionTokens
	}
	l.record.Totals.AgentTurnCounts[turn.AgentID]++

	if err := l.writeCheckpoint(); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	log.Printf("component=session_log action=log_turn session=%s turn=%d agent=%s latency_ms=%d", l.record.SessionID, turn.TurnNumber, turn.AgentID, turn.LatencyMs)
	return nil
}

// ReplayTurn re-inserts a turn already present in a loaded checkpoint,
// without triggering a new checkpoint write (spec §4.6 step 4).
func (l *Log) ReplayTurn(turn TurnRecord) {
	l.record.Turns = append(l.record.Turns, turn)
	l.record.Totals.TotalLatencyMs += turn.LatencyMs
	if turn.PromptTokens != nil {
		l.record.Totals.TotalTokens += *turn.PromptTokens
	}
	if turn.CompletionTokens != nil {
		l.record.Totals.TotalTokens += *turn.CompletionTokens
	}
	l.record.Totals.AgentTurnCounts[turn.AgentID]++
}

// LogError appends a turn-retry failure to the record and writes a
// checkpoint. Unlike LogTurn this never advances the turn counter; the same
// turn number may appear on several TurnError entries across retry attempts
// (spec §4.7).
func (l *Log) LogError(e TurnError) error {
	l.record.Errors = append(l.record.Errors, e)
	if err := l.writeCheckpoint(); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	log.Printf("component=session_log action=log_error session=%s turn=%d agent=%s kind=%s attempt=%d", l.record.SessionID, e.Turn, e.Agent, e.Kind, e.Attempt)
	return nil
}

func (l *Log) checkpointPath() string {
	return filepath.Join(l.dir, fmt.Sprintf("session_%s_checkpoint.json", l.record.SessionID))
}

// CheckpointPath exposes the on-disk checkpoint path for the sqlite session
// index to record at session creation, before the first checkpoint is written.
func (l *Log) CheckpointPath() string {
	return l.checkpointPath()
}

func (l *Log) finalPath() string {
	return filepath.Join(l.dir, fmt.Sprintf("session_%s.json", l.record.SessionID))
}

func (l *Log) embeddingsPath() string {
	return filepath.Join(l.dir, l.record.EmbeddingsFile)
}

// writeCheckpoint atomically persists the in-memory record: write to a
// temp file in the same directory, fsync, then rename over the target.
func (l *Log) writeCheckpoint() error {
	return atomicWriteJSON(l.checkpointPath(), l.record)
}

// End stamps end_time, writes the final artifact (without the _checkpoint
// suffix), and returns its path.
func (l *Log) End() (string, error) {
	t := now()
	l.record.EndTime = &t
	path := l.finalPath()
	if err := atomicWriteJSON(path, l.record); err != nil {
		return "", fmt.Errorf("write final session file: %w", err)
	}
	log.Printf("component=session_log action=end session=%s turns=%d", l.record.SessionID, len(l.record.Turns))
	return path, nil
}

func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

// appendEmbeddingFile appends one embedding row to the session's dense
// float32 embeddings file, row-major [turns x dim].
func (l *Log) appendEmbeddingFile(vec []float32) error {
	f, err := os.OpenFile(l.embeddingsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	_, err = f.Write(buf)
	return err
}

// LoadCheckpoint reads the checkpoint artifact at path and returns the
// decoded Record without mutating any live Log.
func LoadCheckpoint(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &r, nil
}

// Resume rebuilds a Log from a previously-saved checkpoint record, ready to
// accept new turns starting at len(history)+1. It does not re-write a
// checkpoint for the turns it loads (spec §4.6 step 4).
func Resume(dir string, r *Record) *Log {
	l := &Log{dir: dir, storage: r.EmbeddingStorage, record: *r}
	if l.record.Totals.AgentTurnCounts == nil {
		l.record.Totals.AgentTurnCounts = map[string]int{}
	}
	log.Printf("component=session_log action=resume session=%s turns=%d", r.SessionID, len(r.Turns))
	return l
}

// NextTurnNumber is start_turn from spec §4.6 step 3.
func (l *Log) NextTurnNumber() int {
	return len(l.record.Turns) + 1
}
