package dto

import "github.com/geet-h17/canvas-lms/internal/models"

// ReportRequest is the payload accepted by POST /reports/generate.
type ReportRequest struct {
	Type     models.ReportType   `json:"type"`
	CourseID string              `json:"courseId"`
	Format   models.ReportFormat `json:"format"`
}

// ReportJobResponse acknowledges an enqueued report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse is the polling shape for a job in flight.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// NewReportStatusResponse maps a stored job onto the polling shape. Cleared
// error messages are dropped rather than serialized as empty strings.
func NewReportStatusResponse(job *models.ReportJob) *ReportStatusResponse {
	resp := &ReportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}
