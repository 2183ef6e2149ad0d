package service

import (
	"context"
	"fmt"

	"marketplace-core/internal/models"
	"marketplace-core/internal/util"

	"go.uber.org/zap"
)

// Reconciler repairs partial finalization failures: orders marked
// SUCCESS that are missing purchase rows. Purchase creation is keyed
// uniquely on (user, listing), so the pass is idempotent and safe to
// run any number of times.
type Reconciler struct {
	orders    OrderStore
	purchases PurchaseStore
	batchSize int
	logger    *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(orders OrderStore, purchases PurchaseStore) *Reconciler {
	return &Reconciler{
		orders:    orders,
		purchases: purchases,
		batchSize: 100,
		logger:    util.GetLogger(),
	}
}

// Run executes one repair pass and returns the number of purchases
// credited
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Run")
	defer span.End()

	orders, err := r.orders.ListUnreconciledOrders(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unreconciled orders: %w", err)
	}

	repaired := 0
	for i := range orders {
		n, err := r.repairOrder(ctx, &orders[i])
		repaired += n
		if err != nil {
			r.logger.Error("Failed to repair order",
				zap.String("order_id", orders[i].ID),
				zap.Error(err))
		}
	}

	if repaired > 0 {
		util.PurchasesRepairedTotal.Add(float64(repaired))
		r.logger.Info("Reconcile pass repaired purchases", zap.Int("count", repaired))
	}
	return repaired, nil
}

func (r *Reconciler) repairOrder(ctx context.Context, order *models.Order) (int, error) {
	items, err := r.orders.GetOrderItems(ctx, order.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load order items: %w", err)
	}

	sourceID := order.ID
	count := 0
	for _, item := range items {
		p := models.Purchase{
			UserID:          order.UserID,
			ListingID:       item.ListingID,
			PriceAtPurchase: item.Price,
			Currency:        order.Currency,
			PaymentRef:      order.PaymentRef,
			SourceOrderID:   &sourceID,
		}
		created, err := r.purchases.CreatePurchase(ctx, &p)
		if err != nil {
			return count, fmt.Errorf("failed to repair purchase for listing %s: %w", item.ListingID, err)
		}
		if created {
			count++
			r.logger.Warn("Repaired missing purchase",
				zap.String("order_id", order.ID),
				zap.String("listing_id", item.ListingID))
		}
	}
	return count, nil
}
