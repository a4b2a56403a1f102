package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geet-h17/canvas-lms/internal/models"
)

const courseColumns = "id, term_id, name, course_code, start_at, end_at, restrict_dates_to_course, post_to_sis, created_at, updated_at"

var courseSortColumns = map[string]bool{
	"name":        true,
	"course_code": true,
	"start_at":    true,
	"created_at":  true,
}

// CourseRepository handles persistence for course offerings.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository instantiates a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter plus the unpaged total.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	q := newListQuery("courses")
	if filter.TermID != "" {
		q.where("term_id = ?", filter.TermID)
	}
	if filter.Search != "" {
		q.where("(name ILIKE ? OR course_code ILIKE ?)", "%"+filter.Search+"%")
	}

	order := orderBy(filter.SortBy, filter.SortOrder, "name", courseSortColumns)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, q.selectSQL(courseColumns, order, limit, offset), q.args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, q.countSQL(), q.args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a course. sql.ErrNoRows passes through untouched.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a new course, assigning an ID and timestamps when unset.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, term_id, name, course_code, start_at, end_at, restrict_dates_to_course, post_to_sis, created_at, updated_at)
		VALUES (:id, :term_id, :name, :course_code, :start_at, :end_at, :restrict_dates_to_course, :post_to_sis, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update rewrites the mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET term_id = :term_id, name = :name, course_code = :course_code, start_at = :start_at, end_at = :end_at,
		restrict_dates_to_course = :restrict_dates_to_course, post_to_sis = :post_to_sis, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}
