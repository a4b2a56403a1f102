package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type overrideRepository interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.AssignmentOverride, error)
	FindByID(ctx context.Context, id string) (*models.AssignmentOverride, error)
	ExistsForSection(ctx context.Context, assignmentID, sectionID, excludeID string) (bool, error)
	Create(ctx context.Context, override *models.AssignmentOverride) error
	Update(ctx context.Context, override *models.AssignmentOverride) error
	Delete(ctx context.Context, id string) error
}

type overrideAssignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

// OverrideService orchestrates assignment override CRUD. Each audience kind
// has a shape requirement (SECTION a section id, ADHOC a non-empty student
// list, GROUP a group id) and every date mutation is validated against the
// course policy before persisting.
type OverrideService struct {
	repo        overrideRepository
	assignments overrideAssignmentReader
	validation  *ValidationService
	audit       assignmentAuditLogger
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewOverrideService constructs an OverrideService.
func NewOverrideService(repo overrideRepository, assignments overrideAssignmentReader, validation *ValidationService, audit assignmentAuditLogger, validate *validator.Validate, logger *zap.Logger) *OverrideService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideService{
		repo:        repo,
		assignments: assignments,
		validation:  validation,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

// List returns every override of an assignment.
func (s *OverrideService) List(ctx context.Context, assignmentID string) ([]dto.OverrideResponse, error) {
	if _, err := s.findAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	overrides, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overrides")
	}
	return dto.NewOverrideListResponse(overrides), nil
}

// Create validates audience shape and dates, then persists a new override.
func (s *OverrideService) Create(ctx context.Context, assignmentID string, req dto.CreateOverrideRequest, actor *models.JWTClaims) (*dto.OverrideResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}

	assignment, err := s.findAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	override := &models.AssignmentOverride{
		AssignmentID: assignmentID,
		SetType:      models.OverrideSetType(req.SetType),
		Title:        req.Title,
		DueAt:        parseDatePtr(req.DueAt),
		UnlockAt:     parseDatePtr(req.UnlockAt),
		LockAt:       parseDatePtr(req.LockAt),
	}
	switch override.SetType {
	case models.OverrideSetSection:
		if req.CourseSectionID == nil || strings.TrimSpace(*req.CourseSectionID) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "SECTION overrides require courseSectionId")
		}
		exists, err := s.repo.ExistsForSection(ctx, assignmentID, *req.CourseSectionID, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section override")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "section already has an override for this assignment")
		}
		override.CourseSectionID = req.CourseSectionID
	case models.OverrideSetAdhoc:
		if len(req.StudentIDs) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "ADHOC overrides require a non-empty studentIds list")
		}
		override.StudentIDs = req.StudentIDs
	case models.OverrideSetGroup:
		if req.GroupID == nil || strings.TrimSpace(*req.GroupID) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "GROUP overrides require groupId")
		}
		override.GroupID = req.GroupID
	}

	input := datewindow.Input{
		DueAt:           req.DueAt,
		UnlockAt:        req.UnlockAt,
		LockAt:          req.LockAt,
		SetType:         datewindow.SetType(req.SetType),
		CourseSectionID: override.CourseSectionID,
		StudentIDs:      override.StudentIDs,
	}
	if err := s.checkDates(ctx, assignment.CourseID, actorRole(actor), input); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, override); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create override")
	}

	s.emitOverrideAudit(ctx, actor, models.AuditActionOverrideCreate, override.ID, nil, override)

	resp := dto.NewOverrideResponse(*override)
	return &resp, nil
}

// Update mutates audience or dates on an existing override. Date fields use
// PATCH semantics: absent keeps the stored date, blank clears it.
func (s *OverrideService) Update(ctx context.Context, id string, req dto.UpdateOverrideRequest, actor *models.JWTClaims) (*dto.OverrideResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}

	override, err := s.findOverride(ctx, id)
	if err != nil {
		return nil, err
	}
	assignment, err := s.findAssignment(ctx, override.AssignmentID)
	if err != nil {
		return nil, err
	}
	previous := *override

	switch override.SetType {
	case models.OverrideSetSection:
		if req.CourseSectionID != nil {
			if strings.TrimSpace(*req.CourseSectionID) == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "SECTION overrides require courseSectionId")
			}
			exists, err := s.repo.ExistsForSection(ctx, override.AssignmentID, *req.CourseSectionID, override.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section override")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "section already has an override for this assignment")
			}
			override.CourseSectionID = req.CourseSectionID
		}
	case models.OverrideSetAdhoc:
		if req.StudentIDs != nil {
			if len(req.StudentIDs) == 0 {
				return nil, appErrors.Clone(appErrors.ErrValidation, "ADHOC overrides require a non-empty studentIds list")
			}
			override.StudentIDs = req.StudentIDs
		}
	case models.OverrideSetGroup:
		if req.GroupID != nil {
			if strings.TrimSpace(*req.GroupID) == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "GROUP overrides require groupId")
			}
			override.GroupID = req.GroupID
		}
	}
	if req.Title != nil {
		override.Title = *req.Title
	}

	input := datewindow.Input{
		DueAt:           patchedDate(req.DueAt, override.DueAt),
		UnlockAt:        patchedDate(req.UnlockAt, override.UnlockAt),
		LockAt:          patchedDate(req.LockAt, override.LockAt),
		SetType:         datewindow.SetType(override.SetType),
		CourseSectionID: override.CourseSectionID,
		StudentIDs:      override.StudentIDs,
	}
	if err := s.checkDates(ctx, assignment.CourseID, actorRole(actor), input); err != nil {
		return nil, err
	}

	override.DueAt = parseDatePtr(input.DueAt)
	override.UnlockAt = parseDatePtr(input.UnlockAt)
	override.LockAt = parseDatePtr(input.LockAt)
	if err := s.repo.Update(ctx, override); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update override")
	}

	s.emitOverrideAudit(ctx, actor, models.AuditActionOverrideUpdate, override.ID, &previous, override)

	resp := dto.NewOverrideResponse(*override)
	return &resp, nil
}

// Delete removes an override. The dates it carried stop applying to its
// audience, which falls back to the base window or remaining overrides.
func (s *OverrideService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	override, err := s.findOverride(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete override")
	}
	s.emitOverrideAudit(ctx, actor, models.AuditActionOverrideDelete, id, override, nil)
	return nil
}

func (s *OverrideService) findAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

func (s *OverrideService) findOverride(ctx context.Context, id string) (*models.AssignmentOverride, error) {
	override, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "override not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load override")
	}
	return override, nil
}

func (s *OverrideService) checkDates(ctx context.Context, courseID string, role models.UserRole, input datewindow.Input) error {
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

func (s *OverrideService) emitOverrideAudit(ctx context.Context, actor *models.JWTClaims, action, overrideID string, previous, current *models.AssignmentOverride) {
	if s.audit == nil {
		return
	}
	var oldBytes, newBytes []byte
	if previous != nil {
		oldBytes, _ = json.Marshal(previous)
	}
	if current != nil {
		newBytes, _ = json.Marshal(current)
	}
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     action,
		Resource:   "assignment_override",
		ResourceID: &overrideID,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "override-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record override audit", zap.Error(err))
	}
}
