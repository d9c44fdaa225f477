package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
)

const uniqueViolation = "23505"

// TemplateRepo implements storage.TemplateRepository using PostgreSQL.
type TemplateRepo struct {
	db *DB
}

// NewTemplateRepo creates a new PostgreSQL template repository.
func NewTemplateRepo(db *DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

type templateRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Scenario    string    `db:"scenario"`
	Language    string    `db:"language"`
	Template    string    `db:"template"`
	Variables   []byte    `db:"variables"`
	Version     int       `db:"version"`
	Provider    string    `db:"provider"`
	IsEncrypted bool      `db:"is_encrypted"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r templateRow) toDomain() (*domain.PromptTemplate, error) {
	var vars []string
	if len(r.Variables) > 0 {
		if err := json.Unmarshal(r.Variables, &vars); err != nil {
			return nil, fmt.Errorf("failed to decode variables: %w", err)
		}
	}
	return &domain.PromptTemplate{
		ID:          r.ID,
		Name:        r.Name,
		Scenario:    r.Scenario,
		Language:    r.Language,
		Template:    r.Template,
		Variables:   vars,
		Version:     r.Version,
		Provider:    r.Provider,
		IsEncrypted: r.IsEncrypted,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// Create inserts a new template.
func (r *TemplateRepo) Create(ctx context.Context, t *domain.PromptTemplate) error {
	vars, err := json.Marshal(t.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO prompt_templates
			(id, name, scenario, language, template, variables, version,
			 provider, is_encrypted, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		t.ID, t.Name, t.Scenario, t.Language, t.Template, vars, t.Version,
		t.Provider, t.IsEncrypted, t.IsActive,
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateTemplate
	}
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// Update overwrites a template's mutable fields.
func (r *TemplateRepo) Update(ctx context.Context, t *domain.PromptTemplate) error {
	vars, err := json.Marshal(t.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE prompt_templates
		SET name = $2, scenario = $3, language = $4, template = $5,
			variables = $6, version = $7, provider = $8,
			is_encrypted = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Scenario, t.Language, t.Template, vars, t.Version,
		t.Provider, t.IsEncrypted, t.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrTemplateNotFound
	}
	return nil
}

// Delete removes a template; version rows cascade via the schema.
func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrTemplateNotFound
	}
	return nil
}

// GetByID retrieves a template by id.
func (r *TemplateRepo) GetByID(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	var row templateRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, scenario, language, template, variables, version,
			   provider, is_encrypted, is_active, created_at, updated_at
		FROM prompt_templates WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return row.toDomain()
}

// Find retrieves the active template for (scenario, language, provider).
func (r *TemplateRepo) Find(
	ctx context.Context,
	scenario, language, provider string,
) (*domain.PromptTemplate, error) {
	var row templateRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, scenario, language, template, variables, version,
			   provider, is_encrypted, is_active, created_at, updated_at
		FROM prompt_templates
		WHERE scenario = $1 AND language = $2 AND provider = $3 AND is_active
		ORDER BY updated_at DESC
		LIMIT 1`, scenario, language, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return row.toDomain()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
