package models

import "time"

// Event types
const (
	EventTypePurchaseCompleted    = "PURCHASE_COMPLETED"
	EventTypeListingStatusChanged = "LISTING_STATUS_CHANGED"
	EventTypeReportResolved       = "REPORT_RESOLVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCompletedEvent published when purchases are credited, either by
// payment verification or by free enrollment
type PurchaseCompletedEvent struct {
	BaseEvent
	UserID      string         `json:"user_id"`
	OrderID     string         `json:"order_id,omitempty"`
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
	Purchases   []PurchaseData `json:"purchases"`
}

// PurchaseData represents one credited grant inside an event
type PurchaseData struct {
	ListingID       string `json:"listing_id"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

// ListingStatusChangedEvent published when a moderation transition commits
type ListingStatusChangedEvent struct {
	BaseEvent
	ListingID string           `json:"listing_id"`
	SellerID  string           `json:"seller_id"`
	Action    ModerationAction `json:"action"`
	Status    ModerationStatus `json:"status"`
}

// ReportResolvedEvent published when a fraud report reaches a terminal
// status
type ReportResolvedEvent struct {
	BaseEvent
	ReportID   string       `json:"report_id"`
	ListingID  string       `json:"listing_id"`
	ReporterID string       `json:"reporter_id"`
	Status     ReportStatus `json:"status"`
}
