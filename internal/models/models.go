package models

import (
	"strings"
	"time"
)

// ListingKind distinguishes the two purchasable catalog types
type ListingKind string

const (
	ListingKindProject ListingKind = "project"
	ListingKindCourse  ListingKind = "course"
)

// ModerationStatus is the admin-controlled lifecycle state of a listing
type ModerationStatus string

const (
	ListingStatusPending  ModerationStatus = "pending"
	ListingStatusInReview ModerationStatus = "in_review"
	ListingStatusActive   ModerationStatus = "active"
	ListingStatusDisabled ModerationStatus = "disabled"
	ListingStatusRejected ModerationStatus = "rejected"
)

// Visibility controls whether a listing appears in the public catalog
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Listing represents a project or course offered for sale
type Listing struct {
	ID               string           `db:"id" json:"id"`
	SellerID         string           `db:"seller_id" json:"seller_id"`
	Kind             ListingKind      `db:"kind" json:"kind"`
	Title            string           `db:"title" json:"title"`
	Price            int64            `db:"price" json:"price"`
	Currency         string           `db:"currency" json:"currency"`
	ModerationStatus ModerationStatus `db:"moderation_status" json:"moderation_status"`
	Visibility       Visibility       `db:"visibility" json:"visibility"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// IsFree reports whether the listing costs nothing
func (l *Listing) IsFree() bool {
	return l.Price == 0
}

// Purchasable reports whether the listing may be bought right now.
// This is the single purchasability rule every checkout path consults.
func (l *Listing) Purchasable() bool {
	return l.ModerationStatus == ListingStatusActive && l.Visibility == VisibilityPublic
}

// ModerationAction is an admin-facing transition on a listing
type ModerationAction string

const (
	ActionApprove    ModerationAction = "approve"
	ActionReject     ModerationAction = "reject"
	ActionDisable    ModerationAction = "disable"
	ActionEnable     ModerationAction = "enable"
	ActionReactivate ModerationAction = "reactivate"
	ActionRequeue    ModerationAction = "requeue"
)

// ModerationEdge describes the allowed source states and the target state
// of a moderation action
type ModerationEdge struct {
	From []ModerationStatus
	To   ModerationStatus
}

var moderationEdges = map[ModerationAction]ModerationEdge{
	ActionApprove:    {From: []ModerationStatus{ListingStatusPending, ListingStatusInReview}, To: ListingStatusActive},
	ActionReject:     {From: []ModerationStatus{ListingStatusPending, ListingStatusInReview}, To: ListingStatusRejected},
	ActionDisable:    {From: []ModerationStatus{ListingStatusActive}, To: ListingStatusDisabled},
	ActionEnable:     {From: []ModerationStatus{ListingStatusDisabled}, To: ListingStatusActive},
	ActionReactivate: {From: []ModerationStatus{ListingStatusRejected}, To: ListingStatusActive},
	ActionRequeue:    {From: []ModerationStatus{ListingStatusRejected}, To: ListingStatusInReview},
}

// TransitionFor returns the edge for a moderation action.
// Unknown actions return ErrUnknownAction.
func TransitionFor(action ModerationAction) (ModerationEdge, error) {
	edge, ok := moderationEdges[action]
	if !ok {
		return ModerationEdge{}, ErrUnknownAction
	}
	return edge, nil
}

// Order statuses. PENDING moves to SUCCESS or FAILED exactly once;
// terminal statuses are never re-entered.
const (
	OrderStatusPending = "PENDING"
	OrderStatusSuccess = "SUCCESS"
	OrderStatusFailed  = "FAILED"
)

// Order is a buyer's checkout intent covering one or more listings
type Order struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	ExternalRef    string    `db:"external_ref" json:"external_ref"`
	TotalAmount    int64     `db:"total_amount" json:"total_amount"`
	Currency       string    `db:"currency" json:"currency"`
	Status         string    `db:"status" json:"status"`
	PaymentRef     string    `db:"payment_ref" json:"payment_ref,omitempty"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the order's payment window has closed
func (o *Order) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OrderItem freezes one listing's price into an order at creation time.
// Later price changes never affect a pending order.
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ListingID string `db:"listing_id" json:"listing_id"`
	Price     int64  `db:"price" json:"price"`
}

// FreePaymentRef marks purchases credited through the free-enrollment
// path, which never touches the payment gateway
const FreePaymentRef = "FREE_ENROLLMENT"

// Purchase is the durable, unique grant of a user's access to a listing.
// At most one row exists per (user_id, listing_id); its existence is the
// sole authority for ownership.
type Purchase struct {
	ID              int64     `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ListingID       string    `db:"listing_id" json:"listing_id"`
	PriceAtPurchase int64     `db:"price_at_purchase" json:"price_at_purchase"`
	Currency        string    `db:"currency" json:"currency"`
	PaymentRef      string    `db:"payment_ref" json:"payment_ref"`
	SourceOrderID   *string   `db:"source_order_id" json:"source_order_id,omitempty"`
	PurchasedAt     time.Time `db:"purchased_at" json:"purchased_at"`
}

// ReportStatus is the triage state of a fraud report. "pending" is the
// single canonical open state; terminal states are approved and rejected.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusApproved ReportStatus = "approved"
	ReportStatusRejected ReportStatus = "rejected"
)

// Terminal reports whether the status is a final triage outcome
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusApproved || s == ReportStatusRejected
}

// NormalizeReportStatus maps API inputs onto the canonical enum.
// "under_review" is accepted as an alias of the open state; legacy UI
// labels "resolved" and "dismissed" map to the terminal states.
func NormalizeReportStatus(raw string) (ReportStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "under_review":
		return ReportStatusPending, true
	case "approved", "resolved":
		return ReportStatusApproved, true
	case "rejected", "dismissed":
		return ReportStatusRejected, true
	default:
		return "", false
	}
}

// ReportSeverity grades how damaging a report's reason is
type ReportSeverity string

const (
	SeverityLow      ReportSeverity = "low"
	SeverityMedium   ReportSeverity = "medium"
	SeverityHigh     ReportSeverity = "high"
	SeverityCritical ReportSeverity = "critical"
)

// SeverityForReason derives a severity grade from the reported reason
func SeverityForReason(reason string) ReportSeverity {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "scam") || strings.Contains(r, "fraud"):
		return SeverityCritical
	case strings.Contains(r, "plagiarism") || strings.Contains(r, "copyright"):
		return SeverityHigh
	case strings.Contains(r, "misleading") || strings.Contains(r, "quality"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FraudReport is a complaint filed against a listing, kept forever for
// audit. Only an administrator moves it to a terminal status.
type FraudReport struct {
	ID           string         `db:"id" json:"id"`
	ListingID    string         `db:"listing_id" json:"listing_id"`
	ReporterID   string         `db:"reporter_id" json:"reporter_id"`
	Reason       string         `db:"reason" json:"reason"`
	Description  string         `db:"description" json:"description,omitempty"`
	Severity     ReportSeverity `db:"severity" json:"severity"`
	Status       ReportStatus   `db:"status" json:"status"`
	AdminComment *string        `db:"admin_comment" json:"admin_comment,omitempty"`
	ResolvedBy   *string        `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// CheckoutParams is what the buyer's client needs to open the gateway
// checkout for a registered order
type CheckoutParams struct {
	Key      string `json:"key"`
	OrderRef string `json:"order_ref"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
