package dto

import (
	"time"

	"github.com/geet-h17/canvas-lms/internal/models"
)

// CreateOverrideRequest carries a new override for an assignment. SECTION
// overrides must name a section, ADHOC overrides a non-empty student list;
// that shape check happens in the service, not in tags.
type CreateOverrideRequest struct {
	SetType         string   `json:"setType" validate:"required,oneof=SECTION ADHOC GROUP"`
	CourseSectionID *string  `json:"courseSectionId,omitempty"`
	GroupID         *string  `json:"groupId,omitempty"`
	StudentIDs      []string `json:"studentIds,omitempty"`
	Title           string   `json:"title" validate:"omitempty,max=255"`
	DueAt           *string  `json:"dueAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	UnlockAt        *string  `json:"unlockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LockAt          *string  `json:"lockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// UpdateOverrideRequest mutates an existing override's audience or dates.
type UpdateOverrideRequest struct {
	CourseSectionID *string  `json:"courseSectionId,omitempty"`
	GroupID         *string  `json:"groupId,omitempty"`
	StudentIDs      []string `json:"studentIds,omitempty"`
	Title           *string  `json:"title,omitempty" validate:"omitempty,max=255"`
	DueAt           *string  `json:"dueAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	UnlockAt        *string  `json:"unlockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LockAt          *string  `json:"lockAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// OverrideResponse is the serialized override returned to API clients.
type OverrideResponse struct {
	ID              string     `json:"id"`
	AssignmentID    string     `json:"assignmentId"`
	SetType         string     `json:"setType"`
	CourseSectionID *string    `json:"courseSectionId,omitempty"`
	GroupID         *string    `json:"groupId,omitempty"`
	StudentIDs      []string   `json:"studentIds,omitempty"`
	Title           string     `json:"title"`
	DueAt           *time.Time `json:"dueAt,omitempty"`
	UnlockAt        *time.Time `json:"unlockAt,omitempty"`
	LockAt          *time.Time `json:"lockAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewOverrideResponse converts a model into a DTO.
func NewOverrideResponse(model models.AssignmentOverride) OverrideResponse {
	return OverrideResponse{
		ID:              model.ID,
		AssignmentID:    model.AssignmentID,
		SetType:         string(model.SetType),
		CourseSectionID: model.CourseSectionID,
		GroupID:         model.GroupID,
		StudentIDs:      model.StudentIDs,
		Title:           model.Title,
		DueAt:           model.DueAt,
		UnlockAt:        model.UnlockAt,
		LockAt:          model.LockAt,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewOverrideListResponse converts a slice of models into DTOs.
func NewOverrideListResponse(overrides []models.AssignmentOverride) []OverrideResponse {
	responses := make([]OverrideResponse, 0, len(overrides))
	for _, override := range overrides {
		responses = append(responses, NewOverrideResponse(override))
	}
	return responses
}
