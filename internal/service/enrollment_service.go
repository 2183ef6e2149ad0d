package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-core/internal/models"
	"marketplace-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnrollmentService credits purchases for zero-cost listings without
// involving the payment gateway. Idempotent on (user, listing).
type EnrollmentService struct {
	listings  ListingStore
	purchases PurchaseStore
	publisher Publisher
	logger    *zap.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(listings ListingStore, purchases PurchaseStore, publisher Publisher) *EnrollmentService {
	return &EnrollmentService{
		listings:  listings,
		purchases: purchases,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// EnrollFree credits a free listing to a user. A repeated call returns
// the existing purchase instead of creating a duplicate; a race against
// a concurrent paid order resolves at the purchase uniqueness
// constraint, never in application logic.
func (s *EnrollmentService) EnrollFree(ctx context.Context, userID, listingID string) (*models.Purchase, error) {
	ctx, span := util.StartSpan(ctx, "EnrollmentService.EnrollFree")
	defer span.End()

	if userID == "" || listingID == "" {
		return nil, fmt.Errorf("%w: missing user or listing id", models.ErrValidation)
	}

	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsFree() {
		return nil, fmt.Errorf("%w: %s costs %d", models.ErrNotFree, listingID, listing.Price)
	}
	if !listing.Purchasable() {
		return nil, fmt.Errorf("%w: %s", models.ErrListingNotPurchasable, listingID)
	}

	purchase := &models.Purchase{
		UserID:          userID,
		ListingID:       listingID,
		PriceAtPurchase: 0,
		Currency:        listing.Currency,
		PaymentRef:      models.FreePaymentRef,
	}

	created, err := s.purchases.CreatePurchase(ctx, purchase)
	if err != nil {
		return nil, fmt.Errorf("failed to credit free enrollment: %w", err)
	}
	if !created {
		existing, err := s.purchases.GetPurchase(ctx, userID, listingID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("purchase for %s/%s vanished after conflict", userID, listingID)
		}
		s.logger.Info("Free enrollment replayed",
			zap.String("user_id", userID),
			zap.String("listing_id", listingID))
		return existing, nil
	}

	util.PurchasesCreatedTotal.WithLabelValues("free").Inc()
	s.logger.Info("Free enrollment credited",
		zap.String("user_id", userID),
		zap.String("listing_id", listingID))

	event := &models.PurchaseCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePurchaseCompleted,
			Timestamp: time.Now(),
		},
		UserID:      userID,
		TotalAmount: 0,
		Currency:    listing.Currency,
		Purchases:   []models.PurchaseData{{ListingID: listingID, PriceAtPurchase: 0}},
	}
	if err := s.publisher.PublishPurchaseCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseCompleted event", zap.Error(err))
	}

	return purchase, nil
}
