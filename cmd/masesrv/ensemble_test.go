// ABOUTME: Tests for ensemble YAML loading: roster ordering, shared-model fallback, and validation.
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m3data/mase-engine/engine"
)

func writeEnsemble(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "circle.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ensemble: %v", err)
	}
	return path
}

func TestLoadEnsembleConfigPreservesAgentOrder(t *testing.T) {
	path := writeEnsemble(t, `
mode: multi_model
agents:
  - id: zara
    model: mistral
    temperature: 0.9
  - id: orin
    model: llama3
    temperature: 0.6
dialogue:
  max_turns: 12
  context_window: 6
  opening_agent: zara
include_human: true
human_aliases: ["jess"]
`)

	ens, err := loadEnsembleConfig(path)
	if err != nil {
		t.Fatalf("loadEnsembleConfig() error = %v", err)
	}
	if len(ens.AgentOrder) != 2 || ens.AgentOrder[0] != "zara" || ens.AgentOrder[1] != "orin" {
		t.Errorf("AgentOrder = %v, want document order [zara orin]", ens.AgentOrder)
	}
	if ens.Agents["orin"].Model != "llama3" || ens.Agents["orin"].Temperature != 0.6 {
		t.Errorf("orin binding = %+v", ens.Agents["orin"])
	}
	if ens.Dialogue.MaxTurns != 12 || ens.Dialogue.OpeningAgent != "zara" {
		t.Errorf("dialogue = %+v", ens.Dialogue)
	}
	roster := ens.Roster()
	if len(roster) != 3 || roster[2] != "human" {
		t.Errorf("Roster() = %v, want agents then human slot", roster)
	}
	if len(ens.HumanAliases) != 1 || ens.HumanAliases[0] != "jess" {
		t.Errorf("HumanAliases = %v", ens.HumanAliases)
	}
}

func TestLoadEnsembleConfigSharedModelFallback(t *testing.T) {
	path := writeEnsemble(t, `
mode: single_model
shared_model: llama3
agents:
  - id: orin
  - id: zara
    model: mistral
dialogue:
  max_turns: 5
  context_window: 4
`)

	ens, err := loadEnsembleConfig(path)
	if err != nil {
		t.Fatalf("loadEnsembleConfig() error = %v", err)
	}
	if ens.Mode != engine.ModeSingleModel {
		t.Errorf("Mode = %q, want single_model", ens.Mode)
	}
	if ens.Agents["orin"].Model != "llama3" {
		t.Errorf("orin model = %q, want shared_model fallback", ens.Agents["orin"].Model)
	}
	if ens.Agents["zara"].Model != "mistral" {
		t.Errorf("zara model = %q, want explicit override kept", ens.Agents["zara"].Model)
	}
}

func TestLoadEnsembleConfigRejectsEmptyAgents(t *testing.T) {
	path := writeEnsemble(t, `
mode: single_model
agents: []
`)
	if _, err := loadEnsembleConfig(path); err == nil {
		t.Error("loadEnsembleConfig() error = nil, want error for empty agents")
	}
}

func TestLoadEnsembleConfigRejectsMissingID(t *testing.T) {
	path := writeEnsemble(t, `
agents:
  - model: llama3
`)
	if _, err := loadEnsembleConfig(path); err == nil {
		t.Error("loadEnsembleConfig() error = nil, want error for agent without id")
	}
}
