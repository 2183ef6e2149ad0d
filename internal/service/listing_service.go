package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-core/internal/models"
	"marketplace-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListingService is the moderation controller: the only component that
// writes a listing's moderation status. Fraud report triage goes through
// it as well, so no caller invents its own status semantics.
type ListingService struct {
	listings  ListingStore
	publisher Publisher
	logger    *zap.Logger
}

// NewListingService creates a new listing service
func NewListingService(listings ListingStore, publisher Publisher) *ListingService {
	return &ListingService{
		listings:  listings,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// GetListing retrieves a listing by ID
func (s *ListingService) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	return s.listings.GetListing(ctx, id)
}

// Moderate applies an admin transition and returns the status the
// listing holds after the call. Concurrent writers resolve at the
// storage layer; a caller whose guard did not match gets the resulting
// status back together with ErrInvalidTransition, never a silently
// assumed success.
func (s *ListingService) Moderate(ctx context.Context, listingID string, action models.ModerationAction) (models.ModerationStatus, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.Moderate")
	defer span.End()

	edge, err := models.TransitionFor(action)
	if err != nil {
		return "", err
	}

	status, applied, err := s.listings.UpdateListingStatus(ctx, listingID, edge.From, edge.To)
	if err != nil {
		return "", fmt.Errorf("failed to update listing status: %w", err)
	}

	if !applied {
		if status == edge.To {
			// Another writer already landed the same status; the replay
			// is treated as committed.
			return status, nil
		}
		util.ListingTransitionsRejectedTotal.WithLabelValues(string(action)).Inc()
		return status, fmt.Errorf("%w: cannot %s a %s listing", models.ErrInvalidTransition, action, status)
	}

	util.ListingTransitionsTotal.WithLabelValues(string(action)).Inc()
	s.logger.Info("Listing moderation transition",
		zap.String("listing_id", listingID),
		zap.String("action", string(action)),
		zap.String("status", string(status)))

	s.publishStatusChange(ctx, listingID, action, status)

	return status, nil
}

// DisableForReport applies the disable side effect of a fraud report
// approval. Listings already disabled or rejected are a no-op.
func (s *ListingService) DisableForReport(ctx context.Context, listingID string) error {
	status, err := s.Moderate(ctx, listingID, models.ActionDisable)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrInvalidTransition) &&
		(status == models.ListingStatusDisabled || status == models.ListingStatusRejected) {
		return nil
	}
	return err
}

func (s *ListingService) publishStatusChange(ctx context.Context, listingID string, action models.ModerationAction, status models.ModerationStatus) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		s.logger.Warn("Failed to load listing for status change event",
			zap.String("listing_id", listingID), zap.Error(err))
		return
	}

	event := &models.ListingStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeListingStatusChanged,
			Timestamp: time.Now(),
		},
		ListingID: listingID,
		SellerID:  listing.SellerID,
		Action:    action,
		Status:    status,
	}

	if err := s.publisher.PublishListingStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish ListingStatusChanged event", zap.Error(err))
	}
}
