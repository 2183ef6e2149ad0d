package models

import "errors"

// Validation errors: rejected synchronously, no state change
var (
	ErrValidation      = errors.New("invalid request")
	ErrUnknownAction   = errors.New("unknown moderation action")
	ErrCommentRequired = errors.New("admin comment required")
	ErrNotFree         = errors.New("listing is not free")
	ErrNotChargeable   = errors.New("order total is zero, use free enrollment")
)

// Conflict errors: the caller's assumed precondition no longer holds
var (
	ErrAlreadyPurchased      = errors.New("listing already purchased")
	ErrListingNotPurchasable = errors.New("listing is not purchasable")
	ErrInvalidTransition     = errors.New("moderation transition not allowed")
	ErrOrderFinalized        = errors.New("order already finalized")
	ErrOrderExpired          = errors.New("order expired")
	ErrReportFinalized       = errors.New("report already finalized")
	ErrCurrencyMismatch      = errors.New("declared currency does not match listing currency")
)

// Authenticity errors
var (
	ErrSignatureMismatch = errors.New("payment signature mismatch")
)

// Not-found errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrReportNotFound  = errors.New("report not found")
)

// External dependency errors: retried by callers with backoff, bounded
// by the order's expiry
var (
	ErrGateway = errors.New("payment gateway error")
)
