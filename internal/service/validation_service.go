package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

// ValidationService runs candidate date windows through the course policy.
// Rule violations are data returned to the caller; the error return covers
// lookup failures and misconfigured policies only.
type ValidationService struct {
	policy    *PolicyService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewValidationService constructs a ValidationService.
func NewValidationService(policy *PolicyService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ValidationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationService{policy: policy, validator: validate, metrics: metrics, logger: logger}
}

// ValidateBatch dry-runs every card against the course policy. Each card's
// key is echoed back with its outcome; the response is valid only when every
// card passed. The boolean reports whether the policy came from cache.
func (s *ValidationService) ValidateBatch(ctx context.Context, courseID string, req dto.DateValidationRequest, role models.UserRole) (*dto.DateValidationResponse, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validation payload")
	}
	engine, cached, err := s.policy.ValidatorFor(ctx, courseID, role)
	if err != nil {
		return nil, false, err
	}

	resp := &dto.DateValidationResponse{Valid: true, Results: make([]dto.CardResult, 0, len(req.Cards))}
	for _, card := range req.Cards {
		set := engine.Validate(cardInput(card))
		if s.metrics != nil {
			s.metrics.RecordDateValidation(set)
		}
		if !set.Valid() {
			resp.Valid = false
		}
		resp.Results = append(resp.Results, dto.NewCardResult(card.Key, set))
	}
	return resp, cached, nil
}

// ValidateDates runs a single window through the course policy. Save paths
// call this before persisting.
func (s *ValidationService) ValidateDates(ctx context.Context, courseID string, role models.UserRole, input datewindow.Input) (datewindow.ErrorSet, error) {
	engine, _, err := s.policy.ValidatorFor(ctx, courseID, role)
	if err != nil {
		return nil, err
	}
	set := engine.Validate(input)
	if s.metrics != nil {
		s.metrics.RecordDateValidation(set)
	}
	return set, nil
}

func cardInput(card dto.DateValidationCard) datewindow.Input {
	return datewindow.Input{
		DueAt:           card.DueAt,
		UnlockAt:        card.UnlockAt,
		LockAt:          card.LockAt,
		SetType:         datewindow.SetType(card.SetType),
		CourseSectionID: card.CourseSectionID,
		StudentIDs:      card.StudentIDs,
	}
}
