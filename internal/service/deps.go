package service

import (
	"context"

	"marketplace-core/internal/models"
)

// Narrow store interfaces so each service declares exactly what it needs.
// *store.Store satisfies all of them.

// ListingStore provides listing reads and the guarded status write
type ListingStore interface {
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	GetListingsByIDs(ctx context.Context, ids []string) ([]models.Listing, error)
	UpdateListingStatus(ctx context.Context, id string, allowed []models.ModerationStatus, to models.ModerationStatus) (models.ModerationStatus, bool, error)
}

// OrderStore provides order persistence and the conditional finalize
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	MarkOrderFailed(ctx context.Context, orderID string) (bool, error)
	FinalizeOrder(ctx context.Context, orderID, paymentRef string, purchases []models.Purchase) (bool, error)
	ListUnreconciledOrders(ctx context.Context, limit int) ([]models.Order, error)
}

// PurchaseStore provides the uniquely keyed purchase writes and reads
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, p *models.Purchase) (bool, error)
	GetPurchase(ctx context.Context, userID, listingID string) (*models.Purchase, error)
	GetPurchasesByOrderID(ctx context.Context, orderID string) ([]models.Purchase, error)
	GetPurchasedListingIDs(ctx context.Context, userID string, listingIDs []string) ([]string, error)
}

// ReportStore provides fraud report persistence
type ReportStore interface {
	CreateReport(ctx context.Context, r *models.FraudReport) error
	GetReportByID(ctx context.Context, id string) (*models.FraudReport, error)
	ListReports(ctx context.Context) ([]models.FraudReport, error)
	UpdateReportComment(ctx context.Context, id, comment string) (bool, error)
	ResolveReport(ctx context.Context, id string, status models.ReportStatus, comment, adminID string) (bool, error)
}

// PaymentGateway abstracts the external payment gateway adapter
type PaymentGateway interface {
	RegisterOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayRegistration, error)
	CheckoutParams(orderRef string, amount int64, currency string) models.CheckoutParams
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// Publisher publishes domain events. Failures are logged by callers and
// never fail the producing operation.
type Publisher interface {
	PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error
	PublishListingStatusChanged(ctx context.Context, event *models.ListingStatusChangedEvent) error
	PublishReportResolved(ctx context.Context, event *models.ReportResolvedEvent) error
}

// Notifier delivers fire-and-forget user notifications
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload map[string]interface{}) error
}
