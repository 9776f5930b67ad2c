// ABOUTME: Event variant types produced by the generation loop and carried on the Event Bus (spec §3, §6.2).
package engine

import "time"

// EventType discriminates the four event variants on the wire (spec §6.2).
type EventType string

const (
	EventTurn    EventType = "turn"
	EventState   EventType = "state"
	EventMetrics EventType = "metrics"
	EventError   EventType = "error"
)

// Event is the sum type pushed onto the Event Bus. Exactly one of Turn,
// State, Metrics, or Err is non-nil, matching Type.
type Event struct {
	Type    EventType
	Seq     uint64 // monotonic within one bus, for logging/debugging only
	At      time.Time
	Turn    *TurnEvent
	State   *StateEvent
	Metrics *MetricsEvent
	Err     *ErrorEvent
}

// TurnEvent announces a completed turn, human or LLM.
type TurnEvent struct {
	TurnNumber int    `json:"turn_number"`
	AgentID    string `json:"agent_id"`
	AgentName  string `json:"agent_name"`
	Content    string `json:"content"`
	Model      string `json:"model"`
	LatencyMs  int64  `json:"latency_ms"`
	IsHuman    bool   `json:"is_human"`
	Color      string `json:"color,omitempty"`
}

// ControllerState mirrors the session controller's state machine labels on
// the wire (spec §4.2, §6.2).
type ControllerState string

const (
	StateIdle          ControllerState = "idle"
	StateRunning       ControllerState = "running"
	StatePaused        ControllerState = "paused"
	StateAwaitingHuman ControllerState = "awaiting_human"
	StateComplete      ControllerState = "complete"
)

// StateEvent announces a controller state transition, optionally naming the
// next speaker and a human-readable message.
type StateEvent struct {
	State       ControllerState `json:"state"`
	NextSpeaker string          `json:"next_speaker,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// MetricsEvent carries the streaming analyzer's per-turn state (spec §4.9, §6.2).
type MetricsEvent struct {
	TurnNumber           int      `json:"turn_number"`
	Basin                string   `json:"basin"`
	BasinConfidence      float64  `json:"basin_confidence"`
	IntegrityScore       float64  `json:"integrity_score"`
	IntegrityLabel       string   `json:"integrity_label"`
	PsiSemantic          float64  `json:"psi_semantic"`
	PsiTemporal          float64  `json:"psi_temporal"`
	PsiAffective         float64  `json:"psi_affective"`
	VoiceDistinctiveness float64  `json:"voice_distinctiveness"`
	VelocityMagnitude    *float64 `json:"velocity_magnitude,omitempty"`
}

// ErrorEvent surfaces a fatal per-session failure on the wire (spec §7),
// always followed by a terminal StateEvent(Complete).
type ErrorEvent struct {
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}
