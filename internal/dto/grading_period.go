package dto

import (
	"time"

	"github.com/geet-h17/canvas-lms/internal/models"
)

// CreateGradingPeriodRequest carries a new grading period for a term.
type CreateGradingPeriodRequest struct {
	Title   string   `json:"title" validate:"required,min=1,max=255"`
	StartAt string   `json:"startAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndAt   string   `json:"endAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	CloseAt *string  `json:"closeAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Weight  *float64 `json:"weight,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// UpdateGradingPeriodRequest mutates an existing grading period.
type UpdateGradingPeriodRequest struct {
	Title   *string  `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	StartAt *string  `json:"startAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndAt   *string  `json:"endAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CloseAt *string  `json:"closeAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Weight  *float64 `json:"weight,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// GradingPeriodResponse is the serialized grading period for API clients.
type GradingPeriodResponse struct {
	ID        string    `json:"id"`
	TermID    string    `json:"termId"`
	Title     string    `json:"title"`
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
	CloseAt   time.Time `json:"closeAt"`
	Weight    *float64  `json:"weight,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewGradingPeriodResponse converts a model into a DTO.
func NewGradingPeriodResponse(model models.GradingPeriod) GradingPeriodResponse {
	return GradingPeriodResponse{
		ID:        model.ID,
		TermID:    model.TermID,
		Title:     model.Title,
		StartAt:   model.StartAt,
		EndAt:     model.EndAt,
		CloseAt:   model.CloseAt,
		Weight:    model.Weight,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewGradingPeriodListResponse converts a slice of models into DTOs.
func NewGradingPeriodListResponse(periods []models.GradingPeriod) []GradingPeriodResponse {
	responses := make([]GradingPeriodResponse, 0, len(periods))
	for _, period := range periods {
		responses = append(responses, NewGradingPeriodResponse(period))
	}
	return responses
}
