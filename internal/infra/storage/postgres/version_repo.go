package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
)

// VersionRepo implements storage.VersionRepository using PostgreSQL.
type VersionRepo struct {
	db *DB
}

// NewVersionRepo creates a new PostgreSQL version repository.
func NewVersionRepo(db *DB) *VersionRepo {
	return &VersionRepo{db: db}
}

type versionRow struct {
	ID         string         `db:"id"`
	TemplateID string         `db:"template_id"`
	Version    int            `db:"version"`
	Content    string         `db:"content"`
	Variables  []byte         `db:"variables"`
	Author     string         `db:"author"`
	Reason     sql.NullString `db:"reason"`
	IsActive   bool           `db:"is_active"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r versionRow) toDomain() (*domain.PromptTemplateVersion, error) {
	var vars []string
	if len(r.Variables) > 0 {
		if err := json.Unmarshal(r.Variables, &vars); err != nil {
			return nil, fmt.Errorf("failed to decode variables: %w", err)
		}
	}
	return &domain.PromptTemplateVersion{
		ID:         r.ID,
		TemplateID: r.TemplateID,
		Version:    r.Version,
		Content:    r.Content,
		Variables:  vars,
		Author:     r.Author,
		Reason:     r.Reason.String,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
	}, nil
}

// Create inserts a version row. The UNIQUE (template_id, version)
// constraint serializes racing inserts; the loser gets ErrVersionConflict.
func (r *VersionRepo) Create(ctx context.Context, v *domain.PromptTemplateVersion) error {
	vars, err := json.Marshal(v.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO prompt_template_versions
			(id, template_id, version, content, variables, author, reason,
			 is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW())`,
		v.ID, v.TemplateID, v.Version, v.Content, vars, v.Author, v.Reason, v.IsActive,
	)
	if isUniqueViolation(err) {
		return storage.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}

// MaxVersion returns the highest version number for a template, 0 if none.
func (r *VersionRepo) MaxVersion(ctx context.Context, templateID string) (int, error) {
	var maxV int
	err := r.db.GetContext(ctx, &maxV, `
		SELECT COALESCE(MAX(version), 0)
		FROM prompt_template_versions WHERE template_id = $1`, templateID)
	if err != nil {
		return 0, fmt.Errorf("failed to get max version: %w", err)
	}
	return maxV, nil
}

// Get retrieves one version.
func (r *VersionRepo) Get(
	ctx context.Context,
	templateID string,
	version int,
) (*domain.PromptTemplateVersion, error) {
	var row versionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, template_id, version, content, variables, author, reason,
			   is_active, created_at
		FROM prompt_template_versions
		WHERE template_id = $1 AND version = $2`, templateID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return row.toDomain()
}

// List retrieves all versions for a template, newest first.
func (r *VersionRepo) List(
	ctx context.Context,
	templateID string,
) ([]*domain.PromptTemplateVersion, error) {
	var rows []versionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, template_id, version, content, variables, author, reason,
			   is_active, created_at
		FROM prompt_template_versions
		WHERE template_id = $1
		ORDER BY version DESC`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	out := make([]*domain.PromptTemplateVersion, 0, len(rows))
	for _, row := range rows {
		v, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Activate deactivates every version of the template and activates the
// target in a single transaction, so concurrent readers never observe
// zero or two active versions.
func (r *VersionRepo) Activate(ctx context.Context, templateID string, version int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE prompt_template_versions
		SET is_active = FALSE
		WHERE template_id = $1 AND is_active`, templateID); err != nil {
		return fmt.Errorf("failed to deactivate versions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE prompt_template_versions
		SET is_active = TRUE
		WHERE template_id = $1 AND version = $2`, templateID, version)
	if err != nil {
		return fmt.Errorf("failed to activate version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrVersionNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}
