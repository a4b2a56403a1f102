package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type courseTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// CreateCourseRequest describes payload for creating courses.
type CreateCourseRequest struct {
	TermID                string     `json:"termId" validate:"required"`
	Name                  string     `json:"name" validate:"required,max=255"`
	CourseCode            string     `json:"courseCode" validate:"omitempty,max=64"`
	StartAt               *time.Time `json:"startAt"`
	EndAt                 *time.Time `json:"endAt"`
	RestrictDatesToCourse bool       `json:"restrictDatesToCourse"`
	PostToSIS             bool       `json:"postToSis"`
}

// UpdateCourseRequest updates mutable fields on a course.
type UpdateCourseRequest struct {
	TermID                string     `json:"termId" validate:"required"`
	Name                  string     `json:"name" validate:"required,max=255"`
	CourseCode            string     `json:"courseCode" validate:"omitempty,max=64"`
	StartAt               *time.Time `json:"startAt"`
	EndAt                 *time.Time `json:"endAt"`
	RestrictDatesToCourse bool       `json:"restrictDatesToCourse"`
	PostToSIS             bool       `json:"postToSis"`
}

// CourseService orchestrates course workflows. Course dates, the restrict
// flag and the SIS flag all feed the date policy, so updates drop the
// course's cached policy.
type CourseService struct {
	repo      courseRepository
	terms     courseTermReader
	policy    *PolicyService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService creates a new course service instance.
func NewCourseService(repo courseRepository, terms courseTermReader, policy *PolicyService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, terms: terms, policy: policy, validator: validate, logger: logger}
}

// List returns paginated courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	return courses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a new course under an existing term.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if err := validateTermDates(req.StartAt, req.EndAt); err != nil {
		return nil, err
	}
	if err := s.ensureTerm(ctx, req.TermID); err != nil {
		return nil, err
	}

	course := &models.Course{
		TermID:                req.TermID,
		Name:                  req.Name,
		CourseCode:            req.CourseCode,
		StartAt:               req.StartAt,
		EndAt:                 req.EndAt,
		RestrictDatesToCourse: req.RestrictDatesToCourse,
		PostToSIS:             req.PostToSIS,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update modifies a course and drops its cached policy.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if err := validateTermDates(req.StartAt, req.EndAt); err != nil {
		return nil, err
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TermID != course.TermID {
		if err := s.ensureTerm(ctx, req.TermID); err != nil {
			return nil, err
		}
	}

	course.TermID = req.TermID
	course.Name = req.Name
	course.CourseCode = req.CourseCode
	course.StartAt = req.StartAt
	course.EndAt = req.EndAt
	course.RestrictDatesToCourse = req.RestrictDatesToCourse
	course.PostToSIS = req.PostToSIS

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	if s.policy != nil {
		s.policy.InvalidateCourse(ctx, course.ID)
	}
	return course, nil
}

func (s *CourseService) ensureTerm(ctx context.Context, termID string) error {
	if s.terms == nil {
		return nil
	}
	if _, err := s.terms.FindByID(ctx, termID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify term")
	}
	return nil
}
