package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	"github.com/geet-h17/canvas-lms/internal/repository"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
	"github.com/geet-h17/canvas-lms/pkg/jobs"
)

const (
	recoverBatchSize = 50
	cleanupBatchSize = 100
)

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type reportCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type reportQueue interface {
	Enqueue(job jobs.Job) error
}

type reportExporter interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportService owns the lifecycle of asynchronous report jobs: creation,
// status reads, download resolution and expiry cleanup.
type ReportService struct {
	repo     reportJobRepository
	courses  reportCourseRepository
	queue    reportQueue
	exporter *ExportService
	logger   *zap.SugaredLogger
	cfg      ReportServiceConfig
}

// ReportServiceConfig governs result retention and retry budgets.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ReportDownload carries an opened export file back to the handler.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobRepository, courses reportCourseRepository, queue reportQueue, exporter *ExportService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		repo:     repo,
		courses:  courses,
		queue:    queue,
		exporter: exporter,
		logger:   logger.Sugar(),
		cfg:      cfg,
	}
}

// CreateJob persists a new report job and hands it to the queue. The job is
// marked failed right away if it cannot be enqueued.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error) {
	if err := s.checkRequest(ctx, req); err != nil {
		return nil, err
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{CourseID: req.CourseID, Format: req.Format},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus returns job progress. Teachers may only see their own jobs.
func (s *ReportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == models.RoleTeacher && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	return dto.NewReportStatusResponse(job), nil
}

// ResolveDownload checks the signed token against the stored job and opens the
// export file for streaming.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch {
	case job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	case job.Status != models.ReportStatusFinished:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}

	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs re-enqueues jobs that were still queued when the previous
// process stopped.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	queued, err := s.repo.ListQueued(ctx, recoverBatchSize)
	if err != nil {
		s.logger.Warnw("failed to recover queued report jobs", "error", err)
		return
	}
	for _, job := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup removes expired export artifacts on a fixed interval until ctx
// is cancelled.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		batch, err := s.repo.ListFinishedBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			s.logger.Warnw("cleanup list failed", "error", err)
			return
		}
		for _, job := range batch {
			s.removeArtifact(job)
		}
		if len(batch) < cleanupBatchSize {
			break
		}
	}
	// Sweep the storage directory too so orphaned files cannot accumulate.
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ReportService) removeArtifact(job models.ReportJob) {
	if job.ResultURL == nil {
		return
	}
	url := *job.ResultURL
	token := url[strings.LastIndexByte(url, '/')+1:]
	if token == "" {
		return
	}
	_, relPath, _, err := s.exporter.ParseToken(token, true)
	if err != nil {
		return
	}
	if err := s.exporter.Delete(relPath); err != nil {
		s.logger.Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
	}
}

func (s *ReportService) markFailed(ctx context.Context, jobID, reason string) {
	status := models.ReportStatusFailed
	progress := 100
	now := time.Now().UTC()
	err := s.repo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &reason,
		FinishedAt:   &now,
	})
	if err != nil {
		s.logger.Warnw("failed to mark report job failed", "job_id", jobID, "error", err)
	}
}

func (s *ReportService) loadJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

func (s *ReportService) checkRequest(ctx context.Context, req dto.ReportRequest) error {
	switch {
	case req.CourseID == "":
		return appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	case !req.Type.Valid():
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	case !req.Format.Valid():
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify course")
	}
	return nil
}

// ReportWorker consumes queue jobs and drives them through the exporter.
type ReportWorker struct {
	repo       reportJobRepository
	exporter   reportExporter
	logger     *zap.SugaredLogger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobRepository, exporter reportExporter, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger.Sugar(),
		maxRetries: maxRetries,
	}
}

// Handle renders one report job. A failed render goes back to QUEUED so the
// queue can retry it; once the attempt budget is spent the job stays FAILED.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		w.recordFailure(ctx, job, err)
		return err
	}
	return w.finish(ctx, job.ID, result.URL)
}

func (w *ReportWorker) recordFailure(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	params := repository.UpdateReportJobParams{ErrorMessage: &msg}

	if job.Attempt >= w.maxRetries {
		status := models.ReportStatusFailed
		progress := 100
		now := time.Now().UTC()
		params.Status = &status
		params.Progress = &progress
		params.FinishedAt = &now
	} else {
		status := models.ReportStatusQueued
		progress := 0
		params.Status = &status
		params.Progress = &progress
	}

	if err := w.repo.Update(ctx, job.ID, params); err != nil {
		w.logger.Warnw("failed to record report failure", "job_id", job.ID, "error", err)
	}
}

func (w *ReportWorker) finish(ctx context.Context, jobID, resultURL string) error {
	status := models.ReportStatusFinished
	progress := 100
	now := time.Now().UTC()
	cleared := ""
	err := w.repo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:       &status,
		Progress:     &progress,
		ResultURL:    &resultURL,
		ErrorMessage: &cleared,
		FinishedAt:   &now,
	})
	if err != nil {
		w.logger.Warnw("failed to mark report job finished", "job_id", jobID, "error", err)
	}
	return err
}
