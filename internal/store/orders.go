package store

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-core/internal/models"
)

// CreateOrder persists a new PENDING order and its frozen-price items in
// one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, user_id, external_ref, total_amount, currency, status, idempotency_key, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.ID, order.UserID, order.ExternalRef, order.TotalAmount,
		order.Currency, order.Status, order.IdempotencyKey, order.ExpiresAt); err != nil {
		return err
	}

	for i := range items {
		if err := tx.GetContext(ctx, &items[i].ID,
			`INSERT INTO order_items (order_id, listing_id, price) VALUES ($1, $2, $3) RETURNING id`,
			items[i].OrderID, items[i].ListingID, items[i].Price); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by its client idempotency
// key, or nil when no such order exists
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves the frozen-price items of an order
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// MarkOrderFailed flips a PENDING order to FAILED. The write is guarded
// on the current status, so a terminal order is never re-entered. Returns
// whether the flip was applied.
func (s *Store) MarkOrderFailed(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusFailed, orderID, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// FinalizeOrder atomically flips a PENDING order to SUCCESS and credits
// one purchase per item. The status write is conditional on PENDING, so a
// duplicated gateway callback loses the race at the database and gets
// applied=false. Purchase inserts use ON CONFLICT DO NOTHING keyed on
// (user_id, listing_id), which makes the crediting step safe to re-run.
func (s *Store) FinalizeOrder(ctx context.Context, orderID, paymentRef string, purchases []models.Purchase) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, payment_ref = $2, updated_at = NOW() WHERE id = $3 AND status = $4",
		models.OrderStatusSuccess, paymentRef, orderID, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	for i := range purchases {
		p := &purchases[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO purchases (user_id, listing_id, price_at_purchase, currency, payment_ref, source_order_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, listing_id) DO NOTHING`,
			p.UserID, p.ListingID, p.PriceAtPurchase, p.Currency, p.PaymentRef, p.SourceOrderID); err != nil {
			return false, fmt.Errorf("failed to credit purchase for listing %s: %w", p.ListingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ListUnreconciledOrders finds SUCCESS orders that are missing at least
// one purchase row, feeding the repair pass
func (s *Store) ListUnreconciledOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.* FROM orders o
		WHERE o.status = $1
		  AND EXISTS (
			SELECT 1 FROM order_items i
			WHERE i.order_id = o.id
			  AND NOT EXISTS (
				SELECT 1 FROM purchases p
				WHERE p.user_id = o.user_id AND p.listing_id = i.listing_id
			  )
		  )
		ORDER BY o.updated_at
		LIMIT $2`,
		models.OrderStatusSuccess, limit)
	return orders, err
}
