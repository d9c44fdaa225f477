// Package memory provides in-memory repository implementations, used when
// no database is configured and as fakes in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
)

type MemoryStorage struct {
	mu        sync.RWMutex
	templates map[string]*domain.PromptTemplate
	versions  map[string][]*domain.PromptTemplateVersion // templateID -> versions
	abtests   map[string]*domain.ABTest
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		templates: make(map[string]*domain.PromptTemplate),
		versions:  make(map[string][]*domain.PromptTemplateVersion),
		abtests:   make(map[string]*domain.ABTest),
	}
}

// -----------------------------------------------------------------------------
// Template Repository
// -----------------------------------------------------------------------------

type TemplateRepo struct {
	store *MemoryStorage
}

func NewTemplateRepo(store *MemoryStorage) *TemplateRepo {
	return &TemplateRepo{store: store}
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.PromptTemplate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.templates {
		if existing.Name == t.Name && existing.Language == t.Language {
			return storage.ErrDuplicateTemplate
		}
	}

	now := time.Now()
	cp := *t
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.store.templates[t.ID] = &cp
	return nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *domain.PromptTemplate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.templates[t.ID]
	if !ok {
		return storage.ErrTemplateNotFound
	}

	cp := *t
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	r.store.templates[t.ID] = &cp
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.templates[id]; !ok {
		return storage.ErrTemplateNotFound
	}
	delete(r.store.templates, id)
	delete(r.store.versions, id) // cascade
	return nil
}

func (r *TemplateRepo) GetByID(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.templates[id]
	if !ok {
		return nil, storage.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TemplateRepo) Find(
	ctx context.Context,
	scenario, language, provider string,
) (*domain.PromptTemplate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, t := range r.store.templates {
		if t.Scenario == scenario && t.Language == language && t.Provider == provider && t.IsActive {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

// -----------------------------------------------------------------------------
// Version Repository
// -----------------------------------------------------------------------------

type VersionRepo struct {
	store *MemoryStorage
}

func NewVersionRepo(store *MemoryStorage) *VersionRepo {
	return &VersionRepo{store: store}
}

func (r *VersionRepo) Create(ctx context.Context, v *domain.PromptTemplateVersion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.versions[v.TemplateID] {
		if existing.Version == v.Version {
			return storage.ErrVersionConflict
		}
	}

	cp := *v
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.store.versions[v.TemplateID] = append(r.store.versions[v.TemplateID], &cp)
	return nil
}

func (r *VersionRepo) MaxVersion(ctx context.Context, templateID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	maxV := 0
	for _, v := range r.store.versions[templateID] {
		if v.Version > maxV {
			maxV = v.Version
		}
	}
	return maxV, nil
}

func (r *VersionRepo) Get(
	ctx context.Context,
	templateID string,
	version int,
) (*domain.PromptTemplateVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, v := range r.store.versions[templateID] {
		if v.Version == version {
			cp := *v
			return &cp, nil
		}
	}
	return nil, storage.ErrVersionNotFound
}

func (r *VersionRepo) List(
	ctx context.Context,
	templateID string,
) ([]*domain.PromptTemplateVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	versions := r.store.versions[templateID]
	out := make([]*domain.PromptTemplateVersion, len(versions))
	for i, v := range versions {
		cp := *v
		out[i] = &cp
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Version > out[j].Version
	})
	return out, nil
}

func (r *VersionRepo) Activate(ctx context.Context, templateID string, version int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var target *domain.PromptTemplateVersion
	for _, v := range r.store.versions[templateID] {
		if v.Version == version {
			target = v
			break
		}
	}
	if target == nil {
		return storage.ErrVersionNotFound
	}

	// Single critical section: readers never see zero or two active versions.
	for _, v := range r.store.versions[templateID] {
		v.IsActive = false
	}
	target.IsActive = true
	return nil
}

// -----------------------------------------------------------------------------
// A/B Test Repository
// -----------------------------------------------------------------------------

type ABTestRepo struct {
	store *MemoryStorage
}

func NewABTestRepo(store *MemoryStorage) *ABTestRepo {
	return &ABTestRepo{store: store}
}

func (r *ABTestRepo) Create(ctx context.Context, t *domain.ABTest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *t
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.store.abtests[t.TestID] = &cp
	return nil
}

func (r *ABTestRepo) Get(ctx context.Context, testID string) (*domain.ABTest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.abtests[testID]
	if !ok {
		return nil, storage.ErrABTestNotFound
	}
	cp := *t
	return &cp, nil
}
