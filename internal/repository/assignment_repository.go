package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geet-h17/canvas-lms/internal/models"
)

// AssignmentRepository handles persistence for assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository instantiates an assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = "a.id, a.course_id, a.title, a.due_at, a.unlock_at, a.lock_at, a.published, a.created_at, a.updated_at"

// List returns assignments for a course with their override counts.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentWithOverrideCount, int, error) {
	base := "FROM assignments a WHERE a.course_id = $1"
	args := []interface{}{filter.CourseID}
	var conditions []string

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("a.title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Published != nil {
		conditions = append(conditions, fmt.Sprintf("a.published = $%d", len(args)+1))
		args = append(args, *filter.Published)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "due_at"
	}
	allowedSorts := map[string]bool{
		"title":      true,
		"due_at":     true,
		"unlock_at":  true,
		"lock_at":    true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "due_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, (SELECT COUNT(*) FROM assignment_overrides o WHERE o.assignment_id = a.id) AS override_count %s ORDER BY a.%s %s NULLS LAST LIMIT %d OFFSET %d`,
		assignmentColumns, base, sortBy, order, size, offset)

	var assignments []models.AssignmentWithOverrideCount
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	return assignments, total, nil
}

// FindByID loads an assignment by identifier.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, course_id, title, due_at, unlock_at, lock_at, published, created_at, updated_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByCourse loads every assignment of a course without pagination, used
// by report generation.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	const query = `SELECT id, course_id, title, due_at, unlock_at, lock_at, published, created_at, updated_at FROM assignments WHERE course_id = $1 ORDER BY due_at ASC NULLS LAST, title ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course assignments: %w", err)
	}
	return assignments, nil
}

// Create inserts a new assignment record.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, course_id, title, due_at, unlock_at, lock_at, published, created_at, updated_at)
		VALUES (:id, :course_id, :title, :due_at, :unlock_at, :lock_at, :published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// UpdateDates replaces the assignment's base date window.
func (r *AssignmentRepository) UpdateDates(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET due_at = :due_at, unlock_at = :unlock_at, lock_at = :lock_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment dates: %w", err)
	}
	return nil
}
