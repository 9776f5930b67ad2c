// ABOUTME: Narrow interfaces the controller depends on, so tests can stub the LLM client, the
// ABOUTME: embedding client, and the streaming analyzer without pulling in their real backends.
package engine

import (
	"context"

	"github.com/m3data/mase-engine/analysis"
	"github.com/m3data/mase-engine/llm"
)

// LLMCaller is the subset of *llm.Client the generation loop calls.
type LLMCaller interface {
	Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Embedder is the subset of *embedding.Client the generation loop calls.
// Nil is a valid Embedder: embeddings are then skipped entirely, matching
// the optional embedding-backend open question in spec §9.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Analyzer is the subset of *analysis.StreamingAnalyzer the generation loop
// calls. Nil is valid: no MetricsEvent is ever emitted.
type Analyzer interface {
	Update(agentID, text string, embedding []float32) analysis.TurnState
}
