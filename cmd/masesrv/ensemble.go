// ABOUTME: YAML loading for the ensemble config document (spec §6.5): which personas speak, which
// ABOUTME: models/temperatures they're bound to, and the dialogue shape for one circle.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/m3data/mase-engine/engine"
)

// ensembleDoc is the on-disk YAML shape of an ensemble config. It is
// translated into engine.EnsembleConfig (which carries AgentOrder instead of
// relying on map iteration, per the scheduler's determinism contract) after
// loading.
type ensembleDoc struct {
	Mode  string `yaml:"mode"`
	Agents []struct {
		ID          string  `yaml:"id"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"agents"`
	SharedModel string `yaml:"shared_model"`
	Dialogue    struct {
		MaxTurns           int    `yaml:"max_turns"`
		ContextWindow      int    `yaml:"context_window"`
		OpeningAgent       string `yaml:"opening_agent"`
		PersonalityEnabled bool   `yaml:"personality_enabled"`
	} `yaml:"dialogue"`
	IncludeHuman bool     `yaml:"include_human"`
	HumanAliases []string `yaml:"human_aliases"`
}

// loadEnsembleConfig reads and validates an ensemble config document.
func loadEnsembleConfig(path string) (engine.EnsembleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.EnsembleConfig{}, fmt.Errorf("read ensemble config: %w", err)
	}

	var doc ensembleDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return engine.EnsembleConfig{}, fmt.Errorf("parse ensemble config: %w", err)
	}
	if len(doc.Agents) == 0 {
		return engine.EnsembleConfig{}, fmt.Errorf("ensemble config %s: at least one agent is required", path)
	}

	order := make([]string, 0, len(doc.Agents))
	agents := make(map[string]engine.AgentModelConfig, len(doc.Agents))
	for _, a := range doc.Agents {
		if a.ID == "" {
			return engine.EnsembleConfig{}, fmt.Errorf("ensemble config %s: agent missing id", path)
		}
		order = append(order, a.ID)
		model := a.Model
		if model == "" {
			model = doc.SharedModel
		}
		agents[a.ID] = engine.AgentModelConfig{Model: model, Temperature: a.Temperature}
	}

	mode := engine.ModeMultiModel
	if doc.Mode == "single_model" {
		mode = engine.ModeSingleModel
	}

	return engine.EnsembleConfig{
		Mode:        mode,
		AgentOrder:  order,
		SharedModel: doc.SharedModel,
		Agents:      agents,
		Dialogue: engine.DialogueConfig{
			MaxTurns:           doc.Dialogue.MaxTurns,
			ContextWindow:      doc.Dialogue.ContextWindow,
			OpeningAgent:       doc.Dialogue.OpeningAgent,
			PersonalityEnabled: doc.Dialogue.PersonalityEnabled,
		},
		IncludeHuman: doc.IncludeHuman,
		HumanAliases: doc.HumanAliases,
	}, nil
}
