package service

import (
	"context"
	"testing"

	"marketplace-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	svc       *ReportService
	reports   *fakeReportStore
	listings  *fakeListingStore
	publisher *fakePublisher
}

func newReportFixture(listings ...*models.Listing) *reportFixture {
	reports := newFakeReportStore()
	listingStore := newFakeListingStore(listings...)
	publisher := &fakePublisher{}
	listingService := NewListingService(listingStore, publisher)

	return &reportFixture{
		svc:       NewReportService(reports, listingService, publisher),
		reports:   reports,
		listings:  listingStore,
		publisher: publisher,
	}
}

func (f *reportFixture) fileReport(t *testing.T, reason string) *models.FraudReport {
	t.Helper()
	report, err := f.svc.FileReport(context.Background(), &FileReportRequest{
		ListingID:  "l1",
		ReporterID: "user-9",
		Reason:     reason,
	})
	require.NoError(t, err)
	return report
}

func TestFileReport(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))

	report := f.fileReport(t, "blatant scam, seller never delivers")

	assert.Equal(t, models.ReportStatusPending, report.Status)
	assert.Equal(t, models.SeverityCritical, report.Severity)
	assert.NotEmpty(t, report.ID)

	stored, err := f.svc.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, stored.ID)
}

func TestFileReportSeverityGrading(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))

	cases := []struct {
		reason string
		want   models.ReportSeverity
	}{
		{"fraud", models.SeverityCritical},
		{"copyright violation", models.SeverityHigh},
		{"misleading description", models.SeverityMedium},
		{"other", models.SeverityLow},
	}

	for _, tc := range cases {
		report := f.fileReport(t, tc.reason)
		assert.Equal(t, tc.want, report.Severity, "reason %q", tc.reason)
	}
}

func TestFileReportUnknownListing(t *testing.T) {
	f := newReportFixture()

	_, err := f.svc.FileReport(context.Background(), &FileReportRequest{
		ListingID:  "missing",
		ReporterID: "user-9",
		Reason:     "scam",
	})
	assert.ErrorIs(t, err, models.ErrListingNotFound)
}

func TestTriageRequiresComment(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))
	report := f.fileReport(t, "scam")

	_, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		Status:  "approved",
		AdminID: "admin-1",
	})
	assert.ErrorIs(t, err, models.ErrCommentRequired)

	// Report and listing are untouched
	stored, _ := f.svc.GetReport(context.Background(), report.ID)
	assert.Equal(t, models.ReportStatusPending, stored.Status)
	listing, _ := f.listings.GetListing(context.Background(), "l1")
	assert.Equal(t, models.ListingStatusActive, listing.ModerationStatus)
}

func TestTriageApproveDisablesListing(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))
	report := f.fileReport(t, "scam")

	result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		Status:       "approved",
		AdminComment: "confirmed fraudulent",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)

	assert.Empty(t, result.Warning)
	assert.Equal(t, models.ReportStatusApproved, result.Report.Status)
	require.NotNil(t, result.Report.ResolvedBy)
	assert.Equal(t, "admin-1", *result.Report.ResolvedBy)

	listing, _ := f.listings.GetListing(context.Background(), "l1")
	assert.Equal(t, models.ListingStatusDisabled, listing.ModerationStatus)

	require.Len(t, f.publisher.reportResolved, 1)
	assert.Equal(t, models.ReportStatusApproved, f.publisher.reportResolved[0].Status)
}

func TestTriageApproveAlreadyDisabledListing(t *testing.T) {
	disabled := activeListing("l1", "seller-1", 1000)
	disabled.ModerationStatus = models.ListingStatusDisabled

	f := newReportFixture(disabled)
	report := f.fileReport(t, "scam")

	result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		Status:       "approved",
		AdminComment: "already off the catalog",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, models.ReportStatusApproved, result.Report.Status)
}

func TestTriageApproveSideEffectFailure(t *testing.T) {
	// Disable cannot apply to a pending listing: the report still
	// resolves and the failure surfaces as a warning
	pending := activeListing("l1", "seller-1", 1000)
	pending.ModerationStatus = models.ListingStatusPending

	f := newReportFixture(pending)
	report := f.fileReport(t, "scam")

	result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		Status:       "approved",
		AdminComment: "fraudulent",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, models.ReportStatusApproved, result.Report.Status)

	listing, _ := f.listings.GetListing(context.Background(), "l1")
	assert.Equal(t, models.ListingStatusPending, listing.ModerationStatus)
}

func TestTriageReject(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))
	report := f.fileReport(t, "quality complaint")

	result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		Status:       "rejected",
		AdminComment: "no evidence found",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusRejected, result.Report.Status)

	// Rejecting a report never touches the listing
	listing, _ := f.listings.GetListing(context.Background(), "l1")
	assert.Equal(t, models.ListingStatusActive, listing.ModerationStatus)
}

func TestTriageTerminalReportIsFinal(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))
	report := f.fileReport(t, "scam")

	_, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		Status:       "rejected",
		AdminComment: "no evidence",
		AdminID:      "admin-1",
	})
	require.NoError(t, err)

	_, err = f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		Status:       "approved",
		AdminComment: "changed my mind",
		AdminID:      "admin-2",
	})
	assert.ErrorIs(t, err, models.ErrReportFinalized)

	stored, _ := f.svc.GetReport(context.Background(), report.ID)
	assert.Equal(t, models.ReportStatusRejected, stored.Status)
}

func TestTriageCommentOnlyUpdate(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))
	report := f.fileReport(t, "scam")

	result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
		AdminComment: "looking into it",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusPending, result.Report.Status)
	require.NotNil(t, result.Report.AdminComment)
	assert.Equal(t, "looking into it", *result.Report.AdminComment)
	assert.Empty(t, f.publisher.reportResolved)
}

func TestTriageStatusAliases(t *testing.T) {
	f := newReportFixture(activeListing("l1", "seller-1", 1000))

	t.Run("under_review stays open", func(t *testing.T) {
		report := f.fileReport(t, "scam")
		result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
			Status:       "under_review",
			AdminComment: "assigned",
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReportStatusPending, result.Report.Status)
	})

	t.Run("resolved maps to approved", func(t *testing.T) {
		report := f.fileReport(t, "scam")
		result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
			Status:       "resolved",
			AdminComment: "confirmed",
			AdminID:      "admin-1",
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReportStatusApproved, result.Report.Status)
	})

	t.Run("dismissed maps to rejected", func(t *testing.T) {
		report := f.fileReport(t, "scam")
		result, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
			Status:       "dismissed",
			AdminComment: "not actionable",
			AdminID:      "admin-1",
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReportStatusRejected, result.Report.Status)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		report := f.fileReport(t, "scam")
		_, err := f.svc.Triage(context.Background(), report.ID, &TriageRequest{
			Status:       "escalated",
			AdminComment: "?",
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}
