package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rezoom-ai/promptgate/internal/core/domain"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
)

// ABTestRepo implements storage.ABTestRepository using PostgreSQL.
type ABTestRepo struct {
	db *DB
}

// NewABTestRepo creates a new PostgreSQL A/B test repository.
func NewABTestRepo(db *DB) *ABTestRepo {
	return &ABTestRepo{db: db}
}

type abTestRow struct {
	TestID      string         `db:"test_id"`
	TemplateID  string         `db:"template_id"`
	VersionA    int            `db:"version_a"`
	VersionB    int            `db:"version_b"`
	TestName    string         `db:"test_name"`
	Description sql.NullString `db:"description"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Create persists a new test record.
func (r *ABTestRepo) Create(ctx context.Context, t *domain.ABTest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prompt_ab_tests
			(test_id, template_id, version_a, version_b, test_name, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())`,
		t.TestID, t.TemplateID, t.VersionA, t.VersionB, t.TestName, t.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create ab test: %w", err)
	}
	return nil
}

// Get retrieves a test by id.
func (r *ABTestRepo) Get(ctx context.Context, testID string) (*domain.ABTest, error) {
	var row abTestRow
	err := r.db.GetContext(ctx, &row, `
		SELECT test_id, template_id, version_a, version_b, test_name, description, created_at
		FROM prompt_ab_tests WHERE test_id = $1`, testID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrABTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ab test: %w", err)
	}

	return &domain.ABTest{
		TestID:      row.TestID,
		TemplateID:  row.TemplateID,
		VersionA:    row.VersionA,
		VersionB:    row.VersionB,
		TestName:    row.TestName,
		Description: row.Description.String,
		CreatedAt:   row.CreatedAt,
	}, nil
}
