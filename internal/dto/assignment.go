package dto

import (
	"time"

	"github.com/geet-h17/canvas-lms/internal/models"
)

// CreateAssignmentRequest carries a new assignment with its base window.
type CreateAssignmentRequest struct {
	Title     string  `json:"title" validate:"required,max=255"`
	DueAt     *string `json:"dueAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	UnlockAt  *string `json:"unlockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LockAt    *string `json:"lockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Published bool    `json:"published"`
}

// UpdateAssignmentDatesRequest carries the base ("everyone") window for an
// assignment. Date fields hold raw RFC 3339 text; an absent field keeps the
// stored date, a blank one clears it. Shape checks live in the struct tags,
// window rules run through the validation engine before anything is saved.
type UpdateAssignmentDatesRequest struct {
	DueAt    *string `json:"dueAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	UnlockAt *string `json:"unlockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LockAt   *string `json:"lockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AssignmentResponse is the serialized assignment returned to API clients.
type AssignmentResponse struct {
	ID            string     `json:"id"`
	CourseID      string     `json:"courseId"`
	Title         string     `json:"title"`
	DueAt         *time.Time `json:"dueAt,omitempty"`
	UnlockAt      *time.Time `json:"unlockAt,omitempty"`
	LockAt        *time.Time `json:"lockAt,omitempty"`
	Published     bool       `json:"published"`
	OverrideCount int        `json:"overrideCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AssignmentDetailResponse bundles an assignment with its overrides.
type AssignmentDetailResponse struct {
	AssignmentResponse
	Overrides []OverrideResponse `json:"overrides"`
}

// EffectiveDatesResponse reports the window that actually applies to one
// audience after override resolution.
type EffectiveDatesResponse struct {
	AssignmentID string     `json:"assignmentId"`
	OverrideID   *string    `json:"overrideId,omitempty"`
	DueAt        *time.Time `json:"dueAt,omitempty"`
	UnlockAt     *time.Time `json:"unlockAt,omitempty"`
	LockAt       *time.Time `json:"lockAt,omitempty"`
	Base         bool       `json:"base"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment, overrideCount int) AssignmentResponse {
	return AssignmentResponse{
		ID:            model.ID,
		CourseID:      model.CourseID,
		Title:         model.Title,
		DueAt:         model.DueAt,
		UnlockAt:      model.UnlockAt,
		LockAt:        model.LockAt,
		Published:     model.Published,
		OverrideCount: overrideCount,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewAssignmentListResponse converts decorated assignments into DTOs.
func NewAssignmentListResponse(assignments []models.AssignmentWithOverrideCount) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment.Assignment, assignment.OverrideCount))
	}
	return responses
}

// NewEffectiveDatesResponse converts resolved dates into a DTO.
func NewEffectiveDatesResponse(dates models.EffectiveDates) EffectiveDatesResponse {
	return EffectiveDatesResponse{
		AssignmentID: dates.AssignmentID,
		OverrideID:   dates.OverrideID,
		DueAt:        dates.DueAt,
		UnlockAt:     dates.UnlockAt,
		LockAt:       dates.LockAt,
		Base:         dates.Base,
	}
}
