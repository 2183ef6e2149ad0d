package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-core/internal/models"
	"marketplace-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportService manages the fraud report lifecycle. Approving a report
// attempts to disable the reported listing as a best-effort side effect:
// the report resolution commits regardless, and a failed disable is
// surfaced as a warning for the admin to act on manually.
type ReportService struct {
	reports   ReportStore
	listings  *ListingService
	publisher Publisher
	logger    *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(reports ReportStore, listings *ListingService, publisher Publisher) *ReportService {
	return &ReportService{
		reports:   reports,
		listings:  listings,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// FileReportRequest represents a newly filed complaint
type FileReportRequest struct {
	ListingID   string `json:"listing_id" binding:"required"`
	ReporterID  string `json:"reporter_id" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description,omitempty"`
}

// FileReport records a complaint against a listing. Severity is derived
// from the reason; the report opens in the pending state.
func (s *ReportService) FileReport(ctx context.Context, req *FileReportRequest) (*models.FraudReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.FileReport")
	defer span.End()

	if req.ListingID == "" || req.ReporterID == "" || strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: listing id, reporter id and reason are required", models.ErrValidation)
	}

	if _, err := s.listings.GetListing(ctx, req.ListingID); err != nil {
		return nil, err
	}

	report := &models.FraudReport{
		ID:          uuid.New().String(),
		ListingID:   req.ListingID,
		ReporterID:  req.ReporterID,
		Reason:      req.Reason,
		Description: req.Description,
		Severity:    models.SeverityForReason(req.Reason),
		Status:      models.ReportStatusPending,
	}

	if err := s.reports.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	util.ReportsFiledTotal.WithLabelValues(string(report.Severity)).Inc()
	s.logger.Info("Fraud report filed",
		zap.String("report_id", report.ID),
		zap.String("listing_id", report.ListingID),
		zap.String("severity", string(report.Severity)))

	return report, nil
}

// TriageRequest is an admin update to a report. Omitting status (or
// passing an open-state label) makes it a comment-only update.
type TriageRequest struct {
	Status       string `json:"status,omitempty"`
	AdminComment string `json:"admin_comment"`
	AdminID      string `json:"admin_id,omitempty"`
}

// TriageResult carries the updated report and, on approval, a warning
// when the listing disable side effect could not be applied
type TriageResult struct {
	Report  *models.FraudReport `json:"report"`
	Warning string              `json:"warning,omitempty"`
}

// Triage applies an admin update to a report. A status-changing update
// requires a non-empty comment; the terminal write is guarded on the
// report still being open, so a report is resolved at most once.
func (s *ReportService) Triage(ctx context.Context, reportID string, req *TriageRequest) (*TriageResult, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Triage")
	defer span.End()

	comment := strings.TrimSpace(req.AdminComment)

	var target models.ReportStatus
	statusChange := false
	if req.Status != "" {
		status, ok := models.NormalizeReportStatus(req.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown report status %q", models.ErrValidation, req.Status)
		}
		if status.Terminal() {
			target = status
			statusChange = true
		}
	}

	if !statusChange {
		return s.updateComment(ctx, reportID, comment)
	}

	if comment == "" {
		return nil, models.ErrCommentRequired
	}

	applied, err := s.reports.ResolveReport(ctx, reportID, target, comment, req.AdminID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve report: %w", err)
	}
	if !applied {
		report, err := s.reports.GetReportByID(ctx, reportID)
		if err != nil {
			return nil, err
		}
		if report.Status.Terminal() {
			return nil, models.ErrReportFinalized
		}
		return nil, fmt.Errorf("failed to resolve report %s", reportID)
	}

	report, err := s.reports.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	util.ReportsResolvedTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info("Fraud report resolved",
		zap.String("report_id", reportID),
		zap.String("status", string(target)),
		zap.String("resolved_by", req.AdminID))

	result := &TriageResult{Report: report}

	if target == models.ReportStatusApproved {
		if err := s.listings.DisableForReport(ctx, report.ListingID); err != nil {
			// The report stays resolved; an administrator can disable
			// the listing manually.
			util.ReportSideEffectWarningsTotal.Inc()
			s.logger.Warn("Failed to disable reported listing",
				zap.String("report_id", reportID),
				zap.String("listing_id", report.ListingID),
				zap.Error(err))
			result.Warning = fmt.Sprintf("report approved but listing %s could not be disabled: %v", report.ListingID, err)
		}
	}

	s.publishResolved(ctx, report)

	return result, nil
}

// GetReport retrieves a report by ID
func (s *ReportService) GetReport(ctx context.Context, id string) (*models.FraudReport, error) {
	return s.reports.GetReportByID(ctx, id)
}

// ListReports retrieves reports for the admin panel, newest first
func (s *ReportService) ListReports(ctx context.Context) ([]models.FraudReport, error) {
	return s.reports.ListReports(ctx)
}

func (s *ReportService) updateComment(ctx context.Context, reportID, comment string) (*TriageResult, error) {
	if comment == "" {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrValidation)
	}

	ok, err := s.reports.UpdateReportComment(ctx, reportID, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to update report comment: %w", err)
	}
	if !ok {
		return nil, models.ErrReportNotFound
	}

	report, err := s.reports.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return &TriageResult{Report: report}, nil
}

func (s *ReportService) publishResolved(ctx context.Context, report *models.FraudReport) {
	event := &models.ReportResolvedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReportResolved,
			Timestamp: time.Now(),
		},
		ReportID:   report.ID,
		ListingID:  report.ListingID,
		ReporterID: report.ReporterID,
		Status:     report.Status,
	}

	if err := s.publisher.PublishReportResolved(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReportResolved event", zap.Error(err))
	}
}
