package prompting

import (
	"context"
	"slices"
	"sync"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
)

// Cache holds resolved templates keyed by
// (scenario, language, provider|"generic", version|"latest").
// Encrypted templates are cached in their sealed form; the store
// decrypts after every cache read.
//
// Invalidation is wholesale: every write operation clears the entire
// cache rather than tracking which keys a write touches. Coarse, but
// safe by over-invalidation.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.PromptTemplate, bool)
	Set(ctx context.Context, key string, t *domain.PromptTemplate)
	Clear(ctx context.Context)
}

// MemoryCache is the in-process Cache implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*domain.PromptTemplate
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*domain.PromptTemplate)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.PromptTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return cloneTemplate(t), true
}

func (c *MemoryCache) Set(ctx context.Context, key string, t *domain.PromptTemplate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cloneTemplate(t)
}

func (c *MemoryCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.PromptTemplate)
}

// cloneTemplate copies the struct and its Variables backing array, so
// neither side can mutate the other's slice.
func cloneTemplate(t *domain.PromptTemplate) *domain.PromptTemplate {
	cp := *t
	cp.Variables = slices.Clone(t.Variables)
	return &cp
}
