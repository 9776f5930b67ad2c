// ABOUTME: Adapter over the external text-embedding backend: normalizes to unit length and caches
// ABOUTME: a lazy singleton, since the embedding backend itself (§1) is an out-of-scope collaborator.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrZeroVector is returned when the backend yields a zero-norm embedding,
// which spec §3 forbids ever being stored.
var ErrZeroVector = errors.New("embedding: backend returned a zero vector")

// BackendFunc is the out-of-scope collaborator: a function from text to a
// fixed-dimensional float vector, e.g. a call to a local sentence-embedding
// model or a remote embeddings endpoint.
type BackendFunc func(ctx context.Context, text string) ([]float32, error)

// Client lazily resolves a BackendFunc on first use and normalizes every
// embedding it returns to unit length, per spec §3's invariant
// (‖e‖ ∈ [1-ε, 1+ε]).
type Client struct {
	mu      sync.Mutex
	resolve func() (BackendFunc, error)
	backend BackendFunc
}

// NewClient builds a Client around a resolver that is first invoked when
// Embed is called. This defers any model load or connection setup until an
// embedding is actually needed. After a successful resolve the backend is
// cached and the resolver is not called again; a failed resolve is retried
// on the next Embed call.
func NewClient(resolve func() (BackendFunc, error)) *Client {
	return &Client{resolve: resolve}
}

// NewClientFunc builds a Client directly around an already-constructed
// BackendFunc, for tests and callers that don't need lazy resolution.
func NewClientFunc(fn BackendFunc) *Client {
	return &Client{backend: fn}
}

const epsilon = 1e-3

// Embed returns a unit-length embedding for text. A zero-norm result from
// the backend is rejected rather than silently stored, per spec §3.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	backend, err := c.ensure()
	if err != nil {
		return nil, err
	}

	raw, err := backend(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}

	return normalize(raw)
}

func (c *Client) ensure() (BackendFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return c.backend, nil
	}
	if c.resolve == nil {
		return nil, errors.New("embedding: no backend configured")
	}
	fn, err := c.resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve embedding backend: %w", err)
	}
	c.backend = fn
	return fn, nil
}

// normalize L2-normalizes a vector, rejecting near-zero norms.
func normalize(v []float32) ([]float32, error) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < epsilon {
		return nil, ErrZeroVector
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Norm returns the L2 norm of a vector, for invariant checks in tests.
func Norm(v []float32) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	return math.Sqrt(sumSq)
}
