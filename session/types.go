// ABOUTME: Wire/disk types for session records, turn records, and turn-level errors (spec §3, §6.4).
// ABOUTME: TurnRecord is appended once and never mutated; SessionRecord is the on-disk artifact shape.
package session

import "time"

// Mode distinguishes a single shared backing model from a per-agent ensemble.
type Mode string

const (
	ModeSingleModel Mode = "single_model"
	ModeMultiModel  Mode = "multi_model"
)

// EmbeddingStorage selects where per-turn embeddings are persisted. It is an
// explicit session-level choice (spec §9 open question) and sessions never
// mix modes.
type EmbeddingStorage string

const (
	// EmbeddingInline stores each turn's embedding inline as a JSON float array.
	EmbeddingInline EmbeddingStorage = "inline"
	// EmbeddingFile stores embeddings in a separate dense binary file,
	// row-major [turns x dim], referenced by an `embeddings_file` pointer.
	EmbeddingFile EmbeddingStorage = "file"
)

// TurnRecord is one turn of dialogue, appended once by the Session Log and
// never mutated afterward.
type TurnRecord struct {
	TurnNumber       int       `json:"turn_number"`
	AgentID          string    `json:"agent_id"`
	AgentName        string    `json:"agent_name"`
	Content          string    `json:"content"`
	Model            string    `json:"model"`
	Temperature      float64   `json:"temperature"`
	LatencyMs        int64     `json:"latency_ms"`
	PromptTokens     *int      `json:"prompt_tokens,omitempty"`
	CompletionTokens *int      `json:"completion_tokens,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Embedding        []float32 `json:"embedding,omitempty"`
	IsHuman          bool      `json:"is_human,omitempty"`
}

// Totals aggregates the session's turns for quick display without
// re-scanning the full turn list.
type Totals struct {
	TotalLatencyMs  int64          `json:"total_latency_ms"`
	TotalTokens     int            `json:"total_tokens"`
	AgentTurnCounts map[string]int `json:"agent_turn_counts"`
}

// Record is the full on-disk/in-memory representation of a session,
// matching spec §6.4's JSON top-level fields.
type Record struct {
	SessionID             string            `json:"session_id"`
	Mode                  Mode              `json:"mode"`
	ProvocationID         string            `json:"provocation_id,omitempty"`
	ProvocationText       string            `json:"provocation_text"`
	Seed                  int64             `json:"seed"`
	ConfigPath            string            `json:"config_path,omitempty"`
	StartTime             time.Time         `json:"start_time"`
	EndTime               *time.Time        `json:"end_time,omitempty"`
	ModelAssignments      map[string]string `json:"model_assignments"`
	TemperatureAssignments map[string]float64 `json:"temperature_assignments"`
	EmbeddingStorage      EmbeddingStorage  `json:"embedding_storage"`
	EmbeddingsFile        string            `json:"embeddings_file,omitempty"`
	Totals
	Turns  []TurnRecord `json:"turns"`
	Errors []TurnError  `json:"errors,omitempty"`
}

// TurnError records a failed generation attempt for a turn, whether or not
// the turn eventually succeeds on a later attempt (spec §4.7, §7).
type TurnError struct {
	Turn      int       `json:"turn"`
	Agent     string    `json:"agent"`
	Model     string    `json:"model"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}
