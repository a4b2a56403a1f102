package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

const (
	policyCacheKeyPrefix = "policy:course:"
	policyCachePattern   = "policy:*"
)

type policyCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type policyTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type policyPeriodLister interface {
	ListByTerm(ctx context.Context, termID string) ([]models.GradingPeriod, error)
}

type sisPolicyReader interface {
	SISDueDatePolicy(ctx context.Context) (bool, bool, error)
}

// PolicyService assembles the date policy governing a course: the permitted
// date range (course or term dates), the term's grading periods and the SIS
// due-date requirement. The caller-independent part is cached; admin
// exemptions are overlaid per request and never stored.
type PolicyService struct {
	courses  policyCourseReader
	terms    policyTermReader
	periods  policyPeriodLister
	settings sisPolicyReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewPolicyService constructs a PolicyService.
func NewPolicyService(courses policyCourseReader, terms policyTermReader, periods policyPeriodLister, settings sisPolicyReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{
		courses:  courses,
		terms:    terms,
		periods:  periods,
		settings: settings,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// CoursePolicy returns the caller-independent policy for a course. The
// boolean reports whether it came from cache.
func (s *PolicyService) CoursePolicy(ctx context.Context, courseID string) (*models.CoursePolicy, bool, error) {
	cacheKey := policyCacheKeyPrefix + courseID
	var cached models.CoursePolicy
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get policy cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	policy, err := s.buildPolicy(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, policy, s.cacheTTL); err != nil && s.logger != nil {
			s.logger.Warn("cache course policy", zap.Error(err))
		}
	}
	return policy, false, nil
}

// Context assembles the engine policy for one actor: closed flags resolved
// against now, admin exemption overlaid.
func (s *PolicyService) Context(ctx context.Context, courseID string, role models.UserRole) (datewindow.PolicyContext, bool, error) {
	policy, cached, err := s.CoursePolicy(ctx, courseID)
	if err != nil {
		return datewindow.PolicyContext{}, false, err
	}
	return buildPolicyContext(policy, role, time.Now().UTC()), cached, nil
}

// ValidatorFor builds a validator for the actor's view of a course. Policy
// misconfiguration surfaces as a POLICY_CONFIG error, never as a field
// violation.
func (s *PolicyService) ValidatorFor(ctx context.Context, courseID string, role models.UserRole) (*datewindow.Validator, bool, error) {
	policyCtx, cached, err := s.Context(ctx, courseID, role)
	if err != nil {
		return nil, false, err
	}
	validator, err := datewindow.NewValidator(policyCtx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrPolicyConfig.Code, appErrors.ErrPolicyConfig.Status, "course date policy is misconfigured")
	}
	return validator, cached, nil
}

// Describe renders the policy for editors loading a date editing session.
func (s *PolicyService) Describe(ctx context.Context, courseID string, role models.UserRole) (*dto.DatePolicyResponse, bool, error) {
	policy, cached, err := s.CoursePolicy(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	resp := &dto.DatePolicyResponse{
		CourseID:          policy.CourseID,
		TermID:            policy.TermID,
		RangeStart:        policy.RangeStart,
		RangeEnd:          policy.RangeEnd,
		HasGradingPeriods: policy.HasGradingPeriods,
		PostToSISRequired: policy.PostToSISRequired,
		UserIsExempt:      role.IsAdmin(),
	}
	if len(policy.GradingPeriods) > 0 {
		resp.GradingPeriods = make([]dto.GradingPeriodInfo, 0, len(policy.GradingPeriods))
		for _, period := range policy.GradingPeriods {
			resp.GradingPeriods = append(resp.GradingPeriods, dto.NewGradingPeriodInfo(period, now))
		}
	}
	return resp, cached, nil
}

// InvalidateCourse drops the cached policy for one course.
func (s *PolicyService) InvalidateCourse(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, policyCacheKeyPrefix+courseID); err != nil {
		s.logger.Warn("failed to invalidate course policy", zap.String("course_id", courseID), zap.Error(err))
	}
}

// InvalidateAll drops every cached policy. Used after term-wide mutations
// such as grading period changes.
func (s *PolicyService) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, policyCachePattern); err != nil {
		s.logger.Warn("failed to invalidate policy cache", zap.Error(err))
	}
}

func (s *PolicyService) buildPolicy(ctx context.Context, courseID string) (*models.CoursePolicy, error) {
	start := time.Now()
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	term, err := s.terms.FindByID(ctx, course.TermID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	periods, err := s.periods.ListByTerm(ctx, course.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading periods")
	}
	postEnabled, requireDueDate, err := s.settings.SISDueDatePolicy(ctx)
	if err != nil {
		return nil, err
	}

	rangeStart, rangeEnd := resolveDateRange(course, term)
	policy := &models.CoursePolicy{
		CourseID:          course.ID,
		TermID:            course.TermID,
		RangeStart:        rangeStart,
		RangeEnd:          rangeEnd,
		HasGradingPeriods: len(periods) > 0,
		GradingPeriods:    periods,
		PostToSISRequired: course.PostToSIS && postEnabled && requireDueDate,
		BuiltAt:           time.Now().UTC(),
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("policy_build", time.Since(start))
	}
	return policy, nil
}

// resolveDateRange picks the bounds assignment dates must respect. Each side
// cascades independently: the course's own date when it restricts dates and
// has one, the term's date otherwise. A side with no source stays open.
func resolveDateRange(course *models.Course, term *models.Term) (*time.Time, *time.Time) {
	start, end := term.StartAt, term.EndAt
	if course.RestrictDatesToCourse {
		if course.StartAt != nil {
			start = course.StartAt
		}
		if course.EndAt != nil {
			end = course.EndAt
		}
	}
	return start, end
}

// buildPolicyContext converts the stored policy into the engine's immutable
// context. The range rule needs both bounds; a one-sided window leaves it
// unset.
func buildPolicyContext(policy *models.CoursePolicy, role models.UserRole, now time.Time) datewindow.PolicyContext {
	out := datewindow.PolicyContext{
		HasGradingPeriods: policy.HasGradingPeriods,
		UserIsAdmin:       role.IsAdmin(),
		PostToSISRequired: policy.PostToSISRequired,
	}
	if policy.RangeStart != nil && policy.RangeEnd != nil {
		out.ValidDateRange = &datewindow.DateRange{Start: *policy.RangeStart, End: *policy.RangeEnd}
	}
	if len(policy.GradingPeriods) > 0 {
		out.GradingPeriods = make([]datewindow.GradingPeriod, 0, len(policy.GradingPeriods))
		for _, period := range policy.GradingPeriods {
			out.GradingPeriods = append(out.GradingPeriods, datewindow.GradingPeriod{
				ID:     period.ID,
				Title:  period.Title,
				Start:  period.StartAt,
				End:    period.EndAt,
				Closed: period.ClosedAt(now),
			})
		}
	}
	return out
}
