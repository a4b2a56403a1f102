package dto

import (
	"time"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/models"
)

// DateValidationCard is one candidate date window submitted for dry-run
// validation. Key is caller-chosen and echoed back so multi-card editors can
// route results. Dates travel as raw RFC 3339 text.
type DateValidationCard struct {
	Key             string   `json:"key" validate:"required"`
	DueAt           *string  `json:"dueAt,omitempty"`
	UnlockAt        *string  `json:"unlockAt,omitempty"`
	LockAt          *string  `json:"lockAt,omitempty"`
	SetType         string   `json:"setType,omitempty" validate:"omitempty,oneof=SECTION ADHOC GROUP"`
	CourseSectionID *string  `json:"courseSectionId,omitempty"`
	StudentIDs      []string `json:"studentIds,omitempty"`
}

// DateValidationRequest captures POST /courses/:courseId/date-validations.
type DateValidationRequest struct {
	Cards []DateValidationCard `json:"cards" validate:"required,min=1,dive"`
}

// CardResult reports one card's outcome. Errors keys use external field
// names (dueAt, unlockAt, lockAt).
type CardResult struct {
	Key    string            `json:"key"`
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// DateValidationResponse aggregates per-card results; Valid is true only
// when every card passed.
type DateValidationResponse struct {
	Valid   bool         `json:"valid"`
	Results []CardResult `json:"results"`
}

// GradingPeriodInfo describes a grading period inside a date policy.
type GradingPeriodInfo struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
	CloseAt time.Time `json:"closeAt"`
	Closed  bool      `json:"closed"`
}

// DatePolicyResponse is the page-load policy description editors consume
// before opening a date editing session.
type DatePolicyResponse struct {
	CourseID          string              `json:"courseId"`
	TermID            string              `json:"termId"`
	RangeStart        *time.Time          `json:"rangeStart,omitempty"`
	RangeEnd          *time.Time          `json:"rangeEnd,omitempty"`
	HasGradingPeriods bool                `json:"hasGradingPeriods"`
	GradingPeriods    []GradingPeriodInfo `json:"gradingPeriods,omitempty"`
	PostToSISRequired bool                `json:"postToSisRequired"`
	UserIsExempt      bool                `json:"userIsExempt"`
}

// fieldNames maps internal attribute names to the field names API clients
// see. Renaming happens here, at the boundary, never inside the rules.
var fieldNames = map[datewindow.Field]string{
	datewindow.FieldDueAt:    "dueAt",
	datewindow.FieldUnlockAt: "unlockAt",
	datewindow.FieldLockAt:   "lockAt",
}

// FieldName translates an internal field name to its external form.
// Unmapped names pass through unchanged so new fields surface loudly
// instead of vanishing.
func FieldName(field datewindow.Field) string {
	if name, ok := fieldNames[field]; ok {
		return name
	}
	return string(field)
}

// RenameErrors converts an engine error set into the externally keyed map.
func RenameErrors(set datewindow.ErrorSet) map[string]string {
	if len(set) == 0 {
		return nil
	}
	out := make(map[string]string, len(set))
	for field, message := range set {
		out[FieldName(field)] = message
	}
	return out
}

// NewCardResult builds one card's response from the engine output.
func NewCardResult(key string, set datewindow.ErrorSet) CardResult {
	return CardResult{Key: key, Valid: set.Valid(), Errors: RenameErrors(set)}
}

// NewGradingPeriodInfo converts a model period, stamping the closed flag
// resolved against the policy build time.
func NewGradingPeriodInfo(period models.GradingPeriod, now time.Time) GradingPeriodInfo {
	return GradingPeriodInfo{
		ID:      period.ID,
		Title:   period.Title,
		StartAt: period.StartAt,
		EndAt:   period.EndAt,
		CloseAt: period.CloseAt,
		Closed:  period.ClosedAt(now),
	}
}
