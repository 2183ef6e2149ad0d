package store

import (
	"context"
	"database/sql"

	"marketplace-core/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CreateListing inserts a new listing. Sellers upload listings through a
// separate flow; this exists for seeding and tests.
func (s *Store) CreateListing(ctx context.Context, listing *models.Listing) error {
	query := `
		INSERT INTO listings (id, seller_id, kind, title, price, currency, moderation_status, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, listing, query,
		listing.ID, listing.SellerID, listing.Kind, listing.Title,
		listing.Price, listing.Currency, listing.ModerationStatus, listing.Visibility)
}

// GetListing retrieves a listing by ID
func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.GetContext(ctx, &listing, "SELECT * FROM listings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetListingsByIDs retrieves multiple listings by IDs
func (s *Store) GetListingsByIDs(ctx context.Context, ids []string) ([]models.Listing, error) {
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM listings WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var listings []models.Listing
	err = s.db.SelectContext(ctx, &listings, query, args...)
	return listings, err
}

// UpdateListingStatus performs a guarded status write: the status is set
// only if the current status is one of the allowed source states. It
// returns the status the listing holds after the call and whether this
// writer applied it, so callers always see the resulting status rather
// than assuming their own transition stuck.
func (s *Store) UpdateListingStatus(ctx context.Context, id string, allowed []models.ModerationStatus, to models.ModerationStatus) (models.ModerationStatus, bool, error) {
	from := make([]string, len(allowed))
	for i, st := range allowed {
		from[i] = string(st)
	}

	var status models.ModerationStatus
	err := s.db.GetContext(ctx, &status,
		`UPDATE listings SET moderation_status = $1, updated_at = NOW()
		 WHERE id = $2 AND moderation_status = ANY($3)
		 RETURNING moderation_status`,
		to, id, pq.Array(from))
	if err == nil {
		return status, true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, err
	}

	// Guard did not match: report the current status to the caller
	err = s.db.GetContext(ctx, &status, "SELECT moderation_status FROM listings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return "", false, models.ErrListingNotFound
	}
	if err != nil {
		return "", false, err
	}
	return status, false, nil
}
