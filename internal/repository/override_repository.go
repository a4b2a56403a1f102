package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geet-h17/canvas-lms/internal/models"
)

// OverrideRepository handles persistence for assignment overrides.
type OverrideRepository struct {
	db *sqlx.DB
}

// NewOverrideRepository instantiates an override repository.
func NewOverrideRepository(db *sqlx.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

const overrideColumns = "id, assignment_id, set_type, course_section_id, group_id, student_ids, title, due_at, unlock_at, lock_at, created_at, updated_at"

// ListByAssignment returns every override of an assignment, stable order.
func (r *OverrideRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.AssignmentOverride, error) {
	query := fmt.Sprintf("SELECT %s FROM assignment_overrides WHERE assignment_id = $1 ORDER BY created_at ASC", overrideColumns)
	var overrides []models.AssignmentOverride
	if err := r.db.SelectContext(ctx, &overrides, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return overrides, nil
}

// FindByID loads an override by identifier.
func (r *OverrideRepository) FindByID(ctx context.Context, id string) (*models.AssignmentOverride, error) {
	query := fmt.Sprintf("SELECT %s FROM assignment_overrides WHERE id = $1", overrideColumns)
	var override models.AssignmentOverride
	if err := r.db.GetContext(ctx, &override, query, id); err != nil {
		return nil, err
	}
	return &override, nil
}

// ExistsForSection checks whether the assignment already carries an
// override for the given section.
func (r *OverrideRepository) ExistsForSection(ctx context.Context, assignmentID, sectionID, excludeID string) (bool, error) {
	base := "SELECT 1 FROM assignment_overrides WHERE assignment_id = $1 AND set_type = 'SECTION' AND course_section_id = $2"
	args := []interface{}{assignmentID, sectionID}
	if excludeID != "" {
		base += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section override: %w", err)
	}
	return true, nil
}

// Create inserts a new override record.
func (r *OverrideRepository) Create(ctx context.Context, override *models.AssignmentOverride) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if override.CreatedAt.IsZero() {
		override.CreatedAt = now
	}
	override.UpdatedAt = now

	const query = `INSERT INTO assignment_overrides (id, assignment_id, set_type, course_section_id, group_id, student_ids, title, due_at, unlock_at, lock_at, created_at, updated_at)
		VALUES (:id, :assignment_id, :set_type, :course_section_id, :group_id, :student_ids, :title, :due_at, :unlock_at, :lock_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, override); err != nil {
		return fmt.Errorf("create override: %w", err)
	}
	return nil
}

// Update modifies an existing override.
func (r *OverrideRepository) Update(ctx context.Context, override *models.AssignmentOverride) error {
	override.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignment_overrides SET course_section_id = :course_section_id, group_id = :group_id, student_ids = :student_ids,
		title = :title, due_at = :due_at, unlock_at = :unlock_at, lock_at = :lock_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, override); err != nil {
		return fmt.Errorf("update override: %w", err)
	}
	return nil
}

// Delete removes an override permanently.
func (r *OverrideRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assignment_overrides WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}
