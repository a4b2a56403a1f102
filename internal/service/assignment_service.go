package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentWithOverrideCount, int, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	UpdateDates(ctx context.Context, assignment *models.Assignment) error
}

type assignmentOverrideReader interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.AssignmentOverride, error)
}

type assignmentAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AssignmentService orchestrates assignment reads and base-window mutations.
// Every date mutation runs through the validation engine before touching the
// database; violations come back as a DATE_WINDOW_INVALID error carrying the
// per-field messages.
type AssignmentService struct {
	repo       assignmentRepository
	overrides  assignmentOverrideReader
	validation *ValidationService
	audit      assignmentAuditLogger
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, overrides assignmentOverrideReader, validation *ValidationService, audit assignmentAuditLogger, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:       repo,
		overrides:  overrides,
		validation: validation,
		audit:      audit,
		validator:  validate,
		logger:     logger,
	}
}

// List returns paginated assignments for a course with override counts.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]dto.AssignmentResponse, *models.Pagination, error) {
	if filter.CourseID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	return dto.NewAssignmentListResponse(assignments), models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one assignment with its overrides.
func (s *AssignmentService) Get(ctx context.Context, id string) (*dto.AssignmentDetailResponse, error) {
	assignment, err := s.findAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	overrides, err := s.overrides.ListByAssignment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overrides")
	}
	resp := &dto.AssignmentDetailResponse{
		AssignmentResponse: dto.NewAssignmentResponse(*assignment, len(overrides)),
		Overrides:          dto.NewOverrideListResponse(overrides),
	}
	return resp, nil
}

// Create validates the base window against course policy and persists a new
// assignment.
func (s *AssignmentService) Create(ctx context.Context, courseID string, req dto.CreateAssignmentRequest, actor *models.JWTClaims) (*dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	input := datewindow.Input{DueAt: req.DueAt, UnlockAt: req.UnlockAt, LockAt: req.LockAt}
	if err := s.checkDates(ctx, courseID, actorRole(actor), input); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		CourseID:  courseID,
		Title:     req.Title,
		DueAt:     parseDatePtr(req.DueAt),
		UnlockAt:  parseDatePtr(req.UnlockAt),
		LockAt:    parseDatePtr(req.LockAt),
		Published: req.Published,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.emitDatesAudit(ctx, actor, models.AuditActionAssignmentCreate, assignment.ID, nil, assignment)

	resp := dto.NewAssignmentResponse(*assignment, 0)
	return &resp, nil
}

// UpdateDates replaces the base window after validating the merged result.
// An absent request field keeps the stored date, a blank one clears it.
func (s *AssignmentService) UpdateDates(ctx context.Context, id string, req dto.UpdateAssignmentDatesRequest, actor *models.JWTClaims) (*dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dates payload")
	}

	assignment, err := s.findAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := *assignment

	input := datewindow.Input{
		DueAt:    patchedDate(req.DueAt, assignment.DueAt),
		UnlockAt: patchedDate(req.UnlockAt, assignment.UnlockAt),
		LockAt:   patchedDate(req.LockAt, assignment.LockAt),
	}
	if err := s.checkDates(ctx, assignment.CourseID, actorRole(actor), input); err != nil {
		return nil, err
	}

	assignment.DueAt = parseDatePtr(input.DueAt)
	assignment.UnlockAt = parseDatePtr(input.UnlockAt)
	assignment.LockAt = parseDatePtr(input.LockAt)
	if err := s.repo.UpdateDates(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment dates")
	}

	s.emitDatesAudit(ctx, actor, models.AuditActionAssignmentDates, assignment.ID, &previous, assignment)

	overrides, err := s.overrides.ListByAssignment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overrides")
	}
	resp := dto.NewAssignmentResponse(*assignment, len(overrides))
	return &resp, nil
}

// EffectiveDates resolves the window that applies to one audience. ADHOC
// overrides beat SECTION ones, SECTION beat GROUP, and any override beats
// the base window. Within a tier the most lenient dates win: a missing due
// date wins outright, otherwise the latest due, the earliest unlock and the
// latest lock.
func (s *AssignmentService) EffectiveDates(ctx context.Context, id string, sectionID, studentID, groupID *string) (*dto.EffectiveDatesResponse, error) {
	assignment, err := s.findAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	overrides, err := s.overrides.ListByAssignment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overrides")
	}
	resolved := resolveEffectiveDates(assignment, overrides, sectionID, studentID, groupID)
	resp := dto.NewEffectiveDatesResponse(*resolved)
	return &resp, nil
}

func (s *AssignmentService) findAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

func (s *AssignmentService) checkDates(ctx context.Context, courseID string, role models.UserRole, input datewindow.Input) error {
	if s.validation == nil {
		return nil
	}
	set, err := s.validation.ValidateDates(ctx, courseID, role, input)
	if err != nil {
		return err
	}
	if !set.Valid() {
		return appErrors.WithFields(appErrors.ErrDateWindow, dto.RenameErrors(set))
	}
	return nil
}

func (s *AssignmentService) emitDatesAudit(ctx context.Context, actor *models.JWTClaims, action, assignmentID string, previous, current *models.Assignment) {
	if s.audit == nil {
		return
	}
	oldBytes, _ := json.Marshal(datesAuditPayload(previous))
	newBytes, _ := json.Marshal(datesAuditPayload(current))
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     action,
		Resource:   "assignment",
		ResourceID: &assignmentID,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "assignment-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record assignment audit", zap.Error(err))
	}
}

func datesAuditPayload(assignment *models.Assignment) map[string]*time.Time {
	if assignment == nil {
		return nil
	}
	return map[string]*time.Time{
		"due_at":    assignment.DueAt,
		"unlock_at": assignment.UnlockAt,
		"lock_at":   assignment.LockAt,
	}
}

func resolveEffectiveDates(assignment *models.Assignment, overrides []models.AssignmentOverride, sectionID, studentID, groupID *string) *models.EffectiveDates {
	var adhoc, section, group []models.AssignmentOverride
	for i := range overrides {
		override := overrides[i]
		switch override.SetType {
		case models.OverrideSetAdhoc:
			if studentID != nil && containsStudent(override.StudentIDs, *studentID) {
				adhoc = append(adhoc, override)
			}
		case models.OverrideSetSection:
			if sectionID != nil && override.CourseSectionID != nil && *override.CourseSectionID == *sectionID {
				section = append(section, override)
			}
		case models.OverrideSetGroup:
			if groupID != nil && override.GroupID != nil && *override.GroupID == *groupID {
				group = append(group, override)
			}
		}
	}

	tier := adhoc
	if len(tier) == 0 {
		tier = section
	}
	if len(tier) == 0 {
		tier = group
	}
	if len(tier) == 0 {
		return &models.EffectiveDates{
			AssignmentID: assignment.ID,
			DueAt:        assignment.DueAt,
			UnlockAt:     assignment.UnlockAt,
			LockAt:       assignment.LockAt,
			Base:         true,
		}
	}
	return mergeOverrideTier(assignment.ID, tier)
}

// mergeOverrideTier folds a tier of applicable overrides into one window.
// A single override keeps its identity; merged windows carry no override id.
func mergeOverrideTier(assignmentID string, tier []models.AssignmentOverride) *models.EffectiveDates {
	if len(tier) == 1 {
		winner := tier[0]
		return &models.EffectiveDates{
			AssignmentID: assignmentID,
			OverrideID:   &winner.ID,
			DueAt:        winner.DueAt,
			UnlockAt:     winner.UnlockAt,
			LockAt:       winner.LockAt,
		}
	}

	due := tier[0].DueAt
	unlock := tier[0].UnlockAt
	lock := tier[0].LockAt
	for _, override := range tier[1:] {
		switch {
		case due == nil || override.DueAt == nil:
			due = nil
		case override.DueAt.After(*due):
			due = override.DueAt
		}
		switch {
		case unlock == nil || override.UnlockAt == nil:
			unlock = nil
		case override.UnlockAt.Before(*unlock):
			unlock = override.UnlockAt
		}
		switch {
		case lock == nil || override.LockAt == nil:
			lock = nil
		case override.LockAt.After(*lock):
			lock = override.LockAt
		}
	}
	return &models.EffectiveDates{
		AssignmentID: assignmentID,
		DueAt:        due,
		UnlockAt:     unlock,
		LockAt:       lock,
	}
}

func containsStudent(ids []string, studentID string) bool {
	for _, id := range ids {
		if id == studentID {
			return true
		}
	}
	return false
}

// patchedDate resolves a PATCH field against the stored value: nil keeps the
// stored date, blank clears it, anything else replaces it.
func patchedDate(patch *string, current *time.Time) *string {
	if patch == nil {
		return formatDatePtr(current)
	}
	if strings.TrimSpace(*patch) == "" {
		return nil
	}
	return patch
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(datewindow.Layout)
	return &formatted
}

// parseDatePtr converts validated wire text back to a timestamp. Callers
// run the engine first, so values here are either nil or well formed.
func parseDatePtr(value *string) *time.Time {
	if value == nil {
		return nil
	}
	parsed, err := time.Parse(datewindow.Layout, strings.TrimSpace(*value))
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

func actorRole(actor *models.JWTClaims) models.UserRole {
	if actor == nil {
		return ""
	}
	return actor.Role
}
