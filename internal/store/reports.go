package store

import (
	"context"
	"database/sql"

	"marketplace-core/internal/models"
)

// CreateReport persists a newly filed fraud report
func (s *Store) CreateReport(ctx context.Context, r *models.FraudReport) error {
	query := `
		INSERT INTO fraud_reports (id, listing_id, reporter_id, reason, description, severity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, r, query,
		r.ID, r.ListingID, r.ReporterID, r.Reason, r.Description, r.Severity, r.Status)
}

// GetReportByID retrieves a fraud report by ID
func (s *Store) GetReportByID(ctx context.Context, id string) (*models.FraudReport, error) {
	var r models.FraudReport
	err := s.db.GetContext(ctx, &r, "SELECT * FROM fraud_reports WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReports retrieves reports, newest first
func (s *Store) ListReports(ctx context.Context) ([]models.FraudReport, error) {
	var reports []models.FraudReport
	err := s.db.SelectContext(ctx, &reports,
		"SELECT * FROM fraud_reports ORDER BY created_at DESC")
	return reports, err
}

// UpdateReportComment attaches or replaces the admin comment without
// touching the status. Reports stay comment-editable after resolution
// for audit purposes. Returns whether the report existed.
func (s *Store) UpdateReportComment(ctx context.Context, id, comment string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE fraud_reports SET admin_comment = $1, updated_at = NOW() WHERE id = $2",
		comment, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ResolveReport moves an open report to a terminal status. The write is
// guarded on the report still being open, so a second resolution attempt
// gets applied=false instead of overwriting the audit trail.
func (s *Store) ResolveReport(ctx context.Context, id string, status models.ReportStatus, comment, adminID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fraud_reports
		SET status = $1, admin_comment = $2, resolved_by = $3, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		status, comment, adminID, id, models.ReportStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
