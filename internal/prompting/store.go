// Package prompting implements the versioned prompt template store:
// template resolution with language fallback, placeholder rendering,
// version history with activation and rollback, and A/B test bookkeeping.
package prompting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
	"github.com/rezoom-ai/promptgate/internal/metrics"
	"github.com/rezoom-ai/promptgate/internal/prompting/secret"
)

// DefaultLanguage is the fallback language for template resolution.
const DefaultLanguage = "en"

// Store manages prompt templates and their version history.
type Store struct {
	templates storage.TemplateRepository
	versions  storage.VersionRepository
	abtests   storage.ABTestRepository
	cache     Cache
	codec     *secret.Codec // nil disables encryption at rest
	log       *slog.Logger

	// serializes createVersion's read-max-then-insert per template
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewStore creates a Store. The cache is owned by the caller and injected
// here; pass a MemoryCache when no shared cache is configured. codec may
// be nil when no encryption key is configured.
func NewStore(
	templates storage.TemplateRepository,
	versions storage.VersionRepository,
	abtests storage.ABTestRepository,
	cache Cache,
	codec *secret.Codec,
	log *slog.Logger,
) *Store {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		templates: templates,
		versions:  versions,
		abtests:   abtests,
		cache:     cache,
		codec:     codec,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Query selects a template. Language defaults to "en"; Provider and
// Version are optional.
type Query struct {
	Scenario string
	Language string
	Provider string
	Version  int // 0 = latest
}

func (q Query) cacheKey() string {
	lang := q.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	provider := q.Provider
	if provider == "" {
		provider = "generic"
	}
	version := "latest"
	if q.Version > 0 {
		version = fmt.Sprintf("v%d", q.Version)
	}
	return strings.Join([]string{q.Scenario, lang, provider, version}, "|")
}

// GetTemplate resolves a template for the query.
//
// Resolution order: the provider-specific entry (when a provider is
// given), then the generic entry for the requested language, then the
// same two steps for "en". The fallback is an explicit second pass, not
// recursion. Returns (nil, nil) when nothing matches even after the
// English fallback; a missing prompt is an expected condition the caller
// may handle with a default.
func (s *Store) GetTemplate(ctx context.Context, q Query) (*domain.PromptTemplate, error) {
	if q.Language == "" {
		q.Language = DefaultLanguage
	}

	key := q.cacheKey()
	if t, ok := s.cache.Get(ctx, key); ok {
		metrics.TemplateCacheHits.Inc()
		if err := s.decryptTemplate(t); err != nil {
			return nil, err
		}
		return t, nil
	}
	metrics.TemplateCacheMisses.Inc()

	t, err := s.resolve(ctx, q.Scenario, q.Language, q.Provider)
	if err != nil {
		return nil, err
	}
	if t == nil && q.Language != DefaultLanguage {
		t, err = s.resolve(ctx, q.Scenario, DefaultLanguage, q.Provider)
		if err != nil {
			return nil, err
		}
	}
	if t == nil {
		s.log.Debug("no template found",
			"scenario", q.Scenario, "language", q.Language, "provider", q.Provider)
		return nil, nil
	}

	if q.Version > 0 && q.Version != t.Version {
		v, err := s.versions.Get(ctx, t.ID, q.Version)
		if err != nil {
			if errors.Is(err, storage.ErrVersionNotFound) {
				s.log.Warn("requested template version does not exist",
					"template_id", t.ID, "version", q.Version)
				return nil, nil
			}
			return nil, err
		}
		t.Template = v.Content
		t.Variables = v.Variables
		t.Version = v.Version
	}

	// The cache holds the sealed form. A shared backend such as Redis
	// must never store sensitive content in plaintext.
	s.cache.Set(ctx, key, t)

	if err := s.decryptTemplate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// resolve looks up the provider-specific entry first, then the generic
// one. Both steps are lookups in a single language; GetTemplate owns
// the language fallback.
func (s *Store) resolve(
	ctx context.Context,
	scenario, language, provider string,
) (*domain.PromptTemplate, error) {
	if provider != "" {
		t, err := s.templates.Find(ctx, scenario, language, provider)
		if err != nil {
			return nil, fmt.Errorf("find template: %w", err)
		}
		if t != nil {
			return t, nil
		}
	}
	t, err := s.templates.Find(ctx, scenario, language, "")
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	return t, nil
}

// Render substitutes every provided variable into the template's content.
// Placeholders left unresolved are logged as a warning, and the partially
// rendered string is still returned: a prompt with a stray {token} is
// more useful to the caller than no prompt at all.
func (s *Store) Render(t *domain.PromptTemplate, variables map[string]any) string {
	rendered := t.Template
	for key, value := range variables {
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", fmt.Sprint(value))
	}

	if domain.HasPlaceholders(rendered) {
		metrics.RenderMissingVariables.Inc()
		s.log.Warn("rendered template has unresolved placeholders",
			"template_id", t.ID,
			"missing", domain.ExtractVariables(rendered))
	}
	return rendered
}

// CreateTemplate inserts a new template along with its initial version.
// Variables are derived from the content; fields supplied by the caller
// for Variables or Version are ignored.
func (s *Store) CreateTemplate(
	ctx context.Context,
	t *domain.PromptTemplate,
	author string,
) (*domain.PromptTemplate, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Language == "" {
		t.Language = DefaultLanguage
	}
	plaintext := t.Template
	t.Variables = domain.ExtractVariables(plaintext)
	t.Version = 1
	t.IsActive = true

	if err := s.encryptTemplate(t); err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	v := &domain.PromptTemplateVersion{
		ID:         uuid.NewString(),
		TemplateID: t.ID,
		Version:    1,
		Content:    t.Template, // sealed form when encrypted
		Variables:  t.Variables,
		Author:     author,
		Reason:     "initial version",
		IsActive:   true,
	}
	if err := s.versions.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create initial version: %w", err)
	}

	metrics.TemplateVersionsCreated.WithLabelValues(t.Scenario).Inc()
	s.cache.Clear(ctx)

	t.Template = plaintext
	return t, nil
}

// UpdateTemplate overwrites a template's metadata. Content changes go
// through CreateVersion, not here.
func (s *Store) UpdateTemplate(ctx context.Context, t *domain.PromptTemplate) error {
	if err := s.templates.Update(ctx, t); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	s.cache.Clear(ctx)
	return nil
}

// DeleteTemplate removes a template and its version history.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	s.cache.Clear(ctx)
	return nil
}

func (s *Store) encryptTemplate(t *domain.PromptTemplate) error {
	if !t.IsEncrypted {
		return nil
	}
	if s.codec == nil {
		return fmt.Errorf("template %s requires encryption but no key is configured", t.ID)
	}
	sealed, err := s.codec.Encrypt(t.Template)
	if err != nil {
		return fmt.Errorf("encrypt template content: %w", err)
	}
	t.Template = sealed
	return nil
}

func (s *Store) decryptTemplate(t *domain.PromptTemplate) error {
	if !t.IsEncrypted || !secret.IsSealed(t.Template) {
		return nil
	}
	if s.codec == nil {
		return fmt.Errorf("template %s is encrypted but no key is configured", t.ID)
	}
	plain, err := s.codec.Decrypt(t.Template)
	if err != nil {
		return fmt.Errorf("decrypt template content: %w", err)
	}
	t.Template = plain
	return nil
}

// templateLock returns the per-template mutex, creating it on first use.
func (s *Store) templateLock(templateID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.locks[templateID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[templateID] = l
	}
	return l
}
