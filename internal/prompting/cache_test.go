package prompting

import (
	"context"
	"testing"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
)

func TestMemoryCacheCopiesEntries(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	original := &domain.PromptTemplate{
		ID:        "t1",
		Template:  "Hello {name}",
		Variables: []string{"name", "score"},
	}
	c.Set(ctx, "k", original)

	// Mutating what Set received must not reach the cached entry.
	original.Variables[0] = "mutated-by-writer"

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("entry missing")
	}
	if got.Variables[0] != "name" {
		t.Errorf("cached Variables[0] = %q, want %q", got.Variables[0], "name")
	}

	// Mutating what Get returned must not reach the cached entry either.
	got.Variables[1] = "mutated-by-reader"

	fresh, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("entry missing")
	}
	if fresh.Variables[1] != "score" {
		t.Errorf("cached Variables[1] = %q, want %q", fresh.Variables[1], "score")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "k", &domain.PromptTemplate{ID: "t1"})
	c.Clear(ctx)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry survived Clear")
	}
}
