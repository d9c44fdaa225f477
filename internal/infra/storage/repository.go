package storage

import (
	"context"
	"errors"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
)

var (
	// ErrTemplateNotFound is returned when a template doesn't exist
	ErrTemplateNotFound = errors.New("template not found")

	// ErrVersionNotFound is returned when a template version doesn't exist
	ErrVersionNotFound = errors.New("template version not found")

	// ErrVersionConflict is returned when a (template, version) pair
	// already exists; one of two racing inserts observes this
	ErrVersionConflict = errors.New("template version already exists")

	// ErrDuplicateTemplate is returned when (name, language) is taken
	ErrDuplicateTemplate = errors.New("template name already exists for language")

	// ErrABTestNotFound is returned when an A/B test doesn't exist
	ErrABTestNotFound = errors.New("ab test not found")
)

// TemplateRepository handles prompt template storage operations
type TemplateRepository interface {
	// Create inserts a new template
	Create(ctx context.Context, t *domain.PromptTemplate) error

	// Update overwrites a template's mutable fields
	Update(ctx context.Context, t *domain.PromptTemplate) error

	// Delete removes a template and cascades to its versions
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a template by id
	GetByID(ctx context.Context, id string) (*domain.PromptTemplate, error)

	// Find retrieves the template for (scenario, language, provider).
	// provider "" matches the generic entry. Returns (nil, nil) when no
	// template matches; lookup misses are an expected condition.
	Find(ctx context.Context, scenario, language, provider string) (*domain.PromptTemplate, error)
}

// VersionRepository handles template version storage operations
type VersionRepository interface {
	// Create inserts a version row; ErrVersionConflict on duplicate
	// (template_id, version)
	Create(ctx context.Context, v *domain.PromptTemplateVersion) error

	// MaxVersion returns the highest version number for a template, 0 if none
	MaxVersion(ctx context.Context, templateID string) (int, error)

	// Get retrieves one version
	Get(ctx context.Context, templateID string, version int) (*domain.PromptTemplateVersion, error)

	// List retrieves all versions, newest first
	List(ctx context.Context, templateID string) ([]*domain.PromptTemplateVersion, error)

	// Activate atomically deactivates every version of the template and
	// activates the target, so readers never observe zero or two active
	// versions
	Activate(ctx context.Context, templateID string, version int) error
}

// ABTestRepository handles A/B test records (append-only)
type ABTestRepository interface {
	// Create persists a new test record
	Create(ctx context.Context, t *domain.ABTest) error

	// Get retrieves a test by id
	Get(ctx context.Context, testID string) (*domain.ABTest, error)
}
