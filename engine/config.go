// ABOUTME: Ensemble configuration and agent bindings consumed at session start (spec §6.5).
// ABOUTME: Mirrors the teacher's env/YAML-driven config pattern, generalized to per-agent model/temperature.
package engine

import "github.com/m3data/mase-engine/persona"

// AgentBinding pairs a persona with the backing model and base sampling
// parameters it speaks with for one session (spec §3).
type AgentBinding struct {
	Persona         persona.Persona
	Template        persona.Template
	ModelID         string
	BaseTemperature float64
}

// DialogueConfig holds the per-session dialogue shape from the ensemble
// config document (spec §6.5).
type DialogueConfig struct {
	MaxTurns           int
	ContextWindow      int
	OpeningAgent       string
	PersonalityEnabled bool
}

// EnsembleConfig is the parsed form of the `Ensemble config` document in
// spec §6.5: mode, per-agent model/temperature bindings, and dialogue
// shape. Loading the raw YAML/JSON is the caller's job (an external batch
// driver or the REST control surface); EnsembleConfig is the in-memory
// contract the engine consumes.
type EnsembleConfig struct {
	Mode Mode
	// AgentOrder is the explicit roster order. Go map iteration order is
	// randomized per-process, and the scheduler's determinism contract
	// (spec §4.1) forbids that randomness leaking into agent selection, so
	// the roster order is always carried as a slice, never derived from
	// ranging over Agents.
	AgentOrder   []string
	SharedModel  string
	Agents       map[string]AgentModelConfig
	Dialogue     DialogueConfig
	IncludeHuman bool
	HumanAliases []string
}

// Mode mirrors session.Mode without importing the session package here, to
// keep config a leaf of the dependency graph.
type Mode string

const (
	ModeSingleModel Mode = "single_model"
	ModeMultiModel  Mode = "multi_model"
)

// AgentModelConfig is one agent's model and base temperature from the
// ensemble config. The YAML loader in cmd/masesrv reads `agents` as a list
// of {id, model, temperature} entries; a map keyed by agent ID and a bare
// model-string entry are not accepted. A zero Temperature is passed to the
// binding as 0; no default temperature is substituted.
type AgentModelConfig struct {
	Model       string
	Temperature float64
}

// Roster lists the ordered agent IDs and whether the human participates, as
// consumed by the Turn Scheduler.
func (c EnsembleConfig) Roster() []string {
	ids := make([]string, 0, len(c.AgentOrder)+1)
	ids = append(ids, c.AgentOrder...)
	if c.IncludeHuman {
		ids = append(ids, "human")
	}
	return ids
}
