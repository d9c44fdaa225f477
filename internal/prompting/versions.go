package prompting

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
	"github.com/rezoom-ai/promptgate/internal/metrics"
	"github.com/rezoom-ai/promptgate/internal/prompting/secret"
)

// CreateVersion appends a new version for the template and mirrors its
// content onto the template row, so the current template always reflects
// the latest version. Version numbers are strictly monotonic per
// template: the read-max-then-insert sequence is serialized by a
// per-template lock, and the storage layer's uniqueness guarantee backs
// it up across processes.
func (s *Store) CreateVersion(
	ctx context.Context,
	templateID, content, author, reason string,
) (*domain.PromptTemplateVersion, error) {
	lock := s.templateLock(templateID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	maxVersion, err := s.versions.MaxVersion(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	variables := domain.ExtractVariables(content)
	stored := content
	if t.IsEncrypted {
		if s.codec == nil {
			return nil, fmt.Errorf("template %s requires encryption but no key is configured", templateID)
		}
		if stored, err = s.codec.Encrypt(content); err != nil {
			return nil, fmt.Errorf("encrypt version content: %w", err)
		}
	}

	v := &domain.PromptTemplateVersion{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Version:    maxVersion + 1,
		Content:    stored,
		Variables:  variables,
		Author:     author,
		Reason:     reason,
	}
	if err := s.versions.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	t.Template = stored
	t.Variables = variables
	t.Version = v.Version
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("mirror version onto template: %w", err)
	}

	metrics.TemplateVersionsCreated.WithLabelValues(t.Scenario).Inc()
	s.cache.Clear(ctx)

	v.Content = content
	return v, nil
}

// ListVersions returns the template's history, newest first, with
// content decrypted.
func (s *Store) ListVersions(
	ctx context.Context,
	templateID string,
) ([]*domain.PromptTemplateVersion, error) {
	versions, err := s.versions.List(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	for _, v := range versions {
		if err := s.decryptVersion(v); err != nil {
			return nil, err
		}
	}
	return versions, nil
}

// ListVersionsForDisplay returns the history with encrypted content
// replaced by a redacted placeholder instead of decrypting. Safe to show
// in listings and audit views.
func (s *Store) ListVersionsForDisplay(
	ctx context.Context,
	templateID string,
) ([]*domain.PromptTemplateVersion, error) {
	versions, err := s.versions.List(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	for _, v := range versions {
		if secret.IsSealed(v.Content) {
			v.Content = secret.Redacted
		}
	}
	return versions, nil
}

// Rollback overwrites the template's current content with the target
// version's. A missing target fails soft: nil result and a logged
// warning, since the caller may be probing history that never existed.
func (s *Store) Rollback(
	ctx context.Context,
	templateID string,
	version int,
) (*domain.PromptTemplate, error) {
	lock := s.templateLock(templateID)
	lock.Lock()
	defer lock.Unlock()

	v, err := s.versions.Get(ctx, templateID, version)
	if err != nil {
		if errors.Is(err, storage.ErrVersionNotFound) {
			s.log.Warn("rollback target does not exist",
				"template_id", templateID, "version", version)
			return nil, nil
		}
		return nil, fmt.Errorf("rollback: %w", err)
	}

	t, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}

	t.Template = v.Content
	t.Variables = v.Variables
	t.Version = v.Version
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}

	s.cache.Clear(ctx)
	s.log.Info("template rolled back", "template_id", templateID, "version", version)

	if err := s.decryptTemplate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ActivateVersion marks the target version as the single active one.
// The deactivate-all-then-activate swap is atomic in the storage layer.
// A missing target fails soft with a nil result.
func (s *Store) ActivateVersion(
	ctx context.Context,
	templateID string,
	version int,
) (*domain.PromptTemplateVersion, error) {
	err := s.versions.Activate(ctx, templateID, version)
	if err != nil {
		if errors.Is(err, storage.ErrVersionNotFound) {
			s.log.Warn("activation target does not exist",
				"template_id", templateID, "version", version)
			return nil, nil
		}
		return nil, fmt.Errorf("activate version: %w", err)
	}

	s.cache.Clear(ctx)

	v, err := s.versions.Get(ctx, templateID, version)
	if err != nil {
		return nil, fmt.Errorf("activate version: %w", err)
	}
	if err := s.decryptVersion(v); err != nil {
		return nil, err
	}
	return v, nil
}

// CompareVersions reports the differences between two versions of a
// template: content, variable set (compared as sets, order-irrelevant),
// and author. A missing version fails hard with ErrVersionNotFound; an
// empty diff against an absent version would silently underreport.
func (s *Store) CompareVersions(
	ctx context.Context,
	templateID string,
	versionA, versionB int,
) (*domain.VersionDiff, error) {
	a, err := s.versions.Get(ctx, templateID, versionA)
	if err != nil {
		return nil, fmt.Errorf("compare versions: %w", err)
	}
	b, err := s.versions.Get(ctx, templateID, versionB)
	if err != nil {
		return nil, fmt.Errorf("compare versions: %w", err)
	}
	if err := s.decryptVersion(a); err != nil {
		return nil, err
	}
	if err := s.decryptVersion(b); err != nil {
		return nil, err
	}

	diff := &domain.VersionDiff{
		VersionA:    versionA,
		VersionB:    versionB,
		Differences: []string{},
	}
	if a.Content != b.Content {
		diff.Differences = append(diff.Differences, "content differs")
	}
	if !sameVariableSet(a.Variables, b.Variables) {
		diff.Differences = append(diff.Differences,
			fmt.Sprintf("variables differ: %v vs %v", a.Variables, b.Variables))
	}
	if a.Author != b.Author {
		diff.Differences = append(diff.Differences,
			fmt.Sprintf("author differs: %q vs %q", a.Author, b.Author))
	}
	return diff, nil
}

// CreateABTest records a test pairing two versions. Both versions must
// exist for the template; this is a caller-requested state change and
// fails hard on a missing version.
func (s *Store) CreateABTest(
	ctx context.Context,
	templateID string,
	versionA, versionB int,
	testName, description string,
) (*domain.ABTest, error) {
	if _, err := s.versions.Get(ctx, templateID, versionA); err != nil {
		return nil, fmt.Errorf("ab test version %d: %w", versionA, err)
	}
	if _, err := s.versions.Get(ctx, templateID, versionB); err != nil {
		return nil, fmt.Errorf("ab test version %d: %w", versionB, err)
	}

	test := &domain.ABTest{
		TestID:      uuid.NewString(),
		TemplateID:  templateID,
		VersionA:    versionA,
		VersionB:    versionB,
		TestName:    testName,
		Description: description,
	}
	if err := s.abtests.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create ab test: %w", err)
	}

	s.log.Info("ab test created",
		"test_id", test.TestID, "template_id", templateID,
		"version_a", versionA, "version_b", versionB)
	return test, nil
}

// GetABTest retrieves a test record by id.
func (s *Store) GetABTest(ctx context.Context, testID string) (*domain.ABTest, error) {
	test, err := s.abtests.Get(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get ab test: %w", err)
	}
	return test, nil
}

func (s *Store) decryptVersion(v *domain.PromptTemplateVersion) error {
	if !secret.IsSealed(v.Content) {
		return nil
	}
	if s.codec == nil {
		return fmt.Errorf("version %s is encrypted but no key is configured", v.ID)
	}
	plain, err := s.codec.Decrypt(v.Content)
	if err != nil {
		return fmt.Errorf("decrypt version content: %w", err)
	}
	v.Content = plain
	return nil
}

func sameVariableSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
