package store

import (
	"context"
	"database/sql"

	"marketplace-core/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreatePurchase credits a purchase if absent. The (user_id, listing_id)
// uniqueness makes this a conditional put: a concurrent writer that lost
// the race gets created=false, never a duplicate row.
func (s *Store) CreatePurchase(ctx context.Context, p *models.Purchase) (bool, error) {
	err := s.db.GetContext(ctx, p, `
		INSERT INTO purchases (user_id, listing_id, price_at_purchase, currency, payment_ref, source_order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, listing_id) DO NOTHING
		RETURNING id, purchased_at`,
		p.UserID, p.ListingID, p.PriceAtPurchase, p.Currency, p.PaymentRef, p.SourceOrderID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetPurchase retrieves the purchase for a (user, listing) pair, or nil
// when the user does not own the listing
func (s *Store) GetPurchase(ctx context.Context, userID, listingID string) (*models.Purchase, error) {
	var p models.Purchase
	err := s.db.GetContext(ctx, &p,
		"SELECT * FROM purchases WHERE user_id = $1 AND listing_id = $2", userID, listingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchasesByOrderID retrieves all purchases credited by an order
func (s *Store) GetPurchasesByOrderID(ctx context.Context, orderID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.SelectContext(ctx, &purchases,
		"SELECT * FROM purchases WHERE source_order_id = $1 ORDER BY id", orderID)
	return purchases, err
}

// GetPurchasedListingIDs returns the subset of listingIDs the user
// already owns
func (s *Store) GetPurchasedListingIDs(ctx context.Context, userID string, listingIDs []string) ([]string, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		"SELECT listing_id FROM purchases WHERE user_id = ? AND listing_id IN (?)", userID, listingIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var owned []string
	err = s.db.SelectContext(ctx, &owned, query, args...)
	return owned, err
}
