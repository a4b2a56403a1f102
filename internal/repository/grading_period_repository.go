package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geet-h17/canvas-lms/internal/models"
)

// GradingPeriodRepository handles persistence for grading periods.
type GradingPeriodRepository struct {
	db *sqlx.DB
}

// NewGradingPeriodRepository instantiates a grading period repository.
func NewGradingPeriodRepository(db *sqlx.DB) *GradingPeriodRepository {
	return &GradingPeriodRepository{db: db}
}

const gradingPeriodColumns = "id, term_id, title, start_at, end_at, close_at, weight, created_at, updated_at"

// ListByTerm returns a term's grading periods ordered by start date.
func (r *GradingPeriodRepository) ListByTerm(ctx context.Context, termID string) ([]models.GradingPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM grading_periods WHERE term_id = $1 ORDER BY start_at ASC", gradingPeriodColumns)
	var periods []models.GradingPeriod
	if err := r.db.SelectContext(ctx, &periods, query, termID); err != nil {
		return nil, fmt.Errorf("list grading periods: %w", err)
	}
	return periods, nil
}

// FindByID loads a grading period by identifier.
func (r *GradingPeriodRepository) FindByID(ctx context.Context, id string) (*models.GradingPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM grading_periods WHERE id = $1", gradingPeriodColumns)
	var period models.GradingPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// Create inserts a new grading period record.
func (r *GradingPeriodRepository) Create(ctx context.Context, period *models.GradingPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now

	const query = `INSERT INTO grading_periods (id, term_id, title, start_at, end_at, close_at, weight, created_at, updated_at)
		VALUES (:id, :term_id, :title, :start_at, :end_at, :close_at, :weight, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create grading period: %w", err)
	}
	return nil
}

// Update modifies an existing grading period.
func (r *GradingPeriodRepository) Update(ctx context.Context, period *models.GradingPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grading_periods SET title = :title, start_at = :start_at, end_at = :end_at, close_at = :close_at, weight = :weight, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update grading period: %w", err)
	}
	return nil
}

// Delete removes a grading period permanently.
func (r *GradingPeriodRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grading_periods WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete grading period: %w", err)
	}
	return nil
}
