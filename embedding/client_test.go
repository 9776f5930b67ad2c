// ABOUTME: Tests for embedding normalization and the zero-vector invariant.
package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestEmbedNormalizes(t *testing.T) {
	c := NewClientFunc(func(ctx context.Context, text string) ([]float32, error) {
		return []float32{3, 4}, nil // norm 5
	})
	v, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	n := Norm(v)
	if math.Abs(n-1.0) > 0.001 {
		t.Errorf("Norm() = %f, want ~1.0", n)
	}
}

func TestEmbedRejectsZeroVector(t *testing.T) {
	c := NewClientFunc(func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0, 0, 0}, nil
	})
	_, err := c.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrZeroVector) {
		t.Errorf("Embed() error = %v, want ErrZeroVector", err)
	}
}

func TestLazyResolveOnce(t *testing.T) {
	calls := 0
	c := NewClient(func() (BackendFunc, error) {
		calls++
		return func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0}, nil
		}, nil
	})
	for i := 0; i < 3; i++ {
		if _, err := c.Embed(context.Background(), "x"); err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("resolver called %d times, want 1", calls)
	}
}
