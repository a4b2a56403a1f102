package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geet-h17/canvas-lms/internal/models"
)

const termColumns = "id, name, sis_term_id, start_at, end_at, created_at, updated_at"

var termSortColumns = map[string]bool{
	"name":       true,
	"start_at":   true,
	"end_at":     true,
	"created_at": true,
}

// TermRepository handles persistence for enrollment terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching the filter plus the unpaged total.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	q := newListQuery("terms")
	if filter.Search != "" {
		q.where("name ILIKE ?", "%"+filter.Search+"%")
	}

	// Open-ended terms sort after dated ones.
	order := orderBy(filter.SortBy, filter.SortOrder, "start_at", termSortColumns) + " NULLS LAST"
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, q.selectSQL(termColumns, order, limit, offset), q.args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, q.countSQL(), q.args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}
	return terms, total, nil
}

// FindByID loads a term. sql.ErrNoRows passes through untouched.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE id = $1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create inserts a new term, assigning an ID and timestamps when unset.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, name, sis_term_id, start_at, end_at, created_at, updated_at)
		VALUES (:id, :name, :sis_term_id, :start_at, :end_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update rewrites the mutable term fields.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET name = :name, sis_term_id = :sis_term_id, start_at = :start_at, end_at = :end_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// Delete removes a term permanently.
func (r *TermRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM terms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// CountCourses returns how many courses reference the term.
func (r *TermRepository) CountCourses(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE term_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count term courses: %w", err)
	}
	return count, nil
}
