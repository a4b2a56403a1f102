package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/models"
	"github.com/geet-h17/canvas-lms/pkg/export"
	"github.com/geet-h17/canvas-lms/pkg/storage"
)

type exportCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type exportAssignmentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
}

type exportOverrideLister interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.AssignmentOverride, error)
}

type exportValidatorSource interface {
	ValidatorFor(ctx context.Context, courseID string, role models.UserRole) (*datewindow.Validator, bool, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	courses     exportCourseReader
	assignments exportAssignmentLister
	overrides   exportOverrideLister
	policies    exportValidatorSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(courses exportCourseReader, assignments exportAssignmentLister, overrides exportOverrideLister, policies exportValidatorSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		courses:     courses,
		assignments: assignments,
		overrides:   overrides,
		policies:    policies,
		storage:     storage,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds dataset according to job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	coursePart := sanitizeFilename(job.Params.CourseID)
	name := fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), coursePart, timestamp, job.Params.Format)
	return name
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeCourseDates:
		return s.buildCourseDatesDataset(ctx, job.Params)
	case models.ReportTypeValidation:
		return s.buildValidationDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildCourseDatesDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	course, err := s.courses.FindByID(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load course: %w", err)
	}
	assignments, err := s.assignments.ListByCourse(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(assignments))
	for i := range assignments {
		assignment := assignments[i]
		rows = append(rows, map[string]string{
			"Assignment": assignment.Title,
			"Scope":      "everyone",
			"Audience":   "",
			"Due At":     formatReportTime(assignment.DueAt),
			"Unlock At":  formatReportTime(assignment.UnlockAt),
			"Lock At":    formatReportTime(assignment.LockAt),
			"Published":  strconv.FormatBool(assignment.Published),
		})
		overrides, err := s.overrides.ListByAssignment(ctx, assignment.ID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for j := range overrides {
			override := overrides[j]
			rows = append(rows, map[string]string{
				"Assignment": assignment.Title,
				"Scope":      strings.ToLower(string(override.SetType)),
				"Audience":   overrideAudience(override),
				"Due At":     formatReportTime(override.DueAt),
				"Unlock At":  formatReportTime(override.UnlockAt),
				"Lock At":    formatReportTime(override.LockAt),
				"Published":  "",
			})
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Assignment", "Scope", "Audience", "Due At", "Unlock At", "Lock At", "Published"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Course Dates %s", course.Name)
	return dataset, title, nil
}

func (s *ExportService) buildValidationDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	course, err := s.courses.FindByID(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load course: %w", err)
	}
	// Exemptions never apply to the report: a non-admin validator surfaces the
	// range and grading-period violations admins are allowed to save past.
	validator, _, err := s.policies.ValidatorFor(ctx, params.CourseID, models.RoleTeacher)
	if err != nil {
		return export.Dataset{}, "", err
	}
	assignments, err := s.assignments.ListByCourse(ctx, params.CourseID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0)
	for i := range assignments {
		assignment := assignments[i]
		set := validator.Validate(datewindow.Input{
			DueAt:    formatDatePtr(assignment.DueAt),
			UnlockAt: formatDatePtr(assignment.UnlockAt),
			LockAt:   formatDatePtr(assignment.LockAt),
		})
		rows = appendViolationRows(rows, assignment.Title, "everyone", "", set)

		overrides, err := s.overrides.ListByAssignment(ctx, assignment.ID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for j := range overrides {
			override := overrides[j]
			set := validator.Validate(datewindow.Input{
				DueAt:           formatDatePtr(override.DueAt),
				UnlockAt:        formatDatePtr(override.UnlockAt),
				LockAt:          formatDatePtr(override.LockAt),
				SetType:         datewindow.SetType(override.SetType),
				CourseSectionID: override.CourseSectionID,
				StudentIDs:      override.StudentIDs,
			})
			rows = appendViolationRows(rows, assignment.Title, strings.ToLower(string(override.SetType)), overrideAudience(override), set)
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Assignment", "Scope", "Audience", "Field", "Message"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Date Validation %s", course.Name)
	return dataset, title, nil
}

func appendViolationRows(rows []map[string]string, assignment, scope, audience string, set datewindow.ErrorSet) []map[string]string {
	for _, field := range []datewindow.Field{datewindow.FieldDueAt, datewindow.FieldUnlockAt, datewindow.FieldLockAt} {
		message, ok := set[field]
		if !ok {
			continue
		}
		rows = append(rows, map[string]string{
			"Assignment": assignment,
			"Scope":      scope,
			"Audience":   audience,
			"Field":      string(field),
			"Message":    message,
		})
	}
	return rows
}

func overrideAudience(override models.AssignmentOverride) string {
	switch override.SetType {
	case models.OverrideSetSection:
		if override.CourseSectionID != nil {
			return "section " + *override.CourseSectionID
		}
	case models.OverrideSetGroup:
		if override.GroupID != nil {
			return "group " + *override.GroupID
		}
	case models.OverrideSetAdhoc:
		return fmt.Sprintf("%d students", len(override.StudentIDs))
	}
	return ""
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
