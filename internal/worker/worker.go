package worker

import (
	"context"
	"log"
	"time"

	"marketplace-core/internal/broker"
	"marketplace-core/internal/models"
	"marketplace-core/internal/service"
)

// NotificationWorker consumes domain events and relays per-user
// notifications. Delivery is best effort; a failed notification is
// logged and the offset still advances.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	notifier     service.Notifier
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier service.Notifier) *NotificationWorker {
	eventHandler := broker.NewEventHandler()
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		notifier:     notifier,
	}

	eventHandler.OnPurchaseCompleted(w.handlePurchaseCompleted)
	eventHandler.OnListingStatusChanged(w.handleListingStatusChanged)
	eventHandler.OnReportResolved(w.handleReportResolved)

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handlePurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	listingIDs := make([]string, 0, len(event.Purchases))
	for _, p := range event.Purchases {
		listingIDs = append(listingIDs, p.ListingID)
	}

	if err := w.notifier.Notify(ctx, event.UserID, "purchase_completed", map[string]interface{}{
		"order_id":     event.OrderID,
		"listing_ids":  listingIDs,
		"total_amount": event.TotalAmount,
		"currency":     event.Currency,
	}); err != nil {
		log.Printf("Failed to notify buyer %s: %v", event.UserID, err)
	}
	return nil
}

func (w *NotificationWorker) handleListingStatusChanged(ctx context.Context, event *models.ListingStatusChangedEvent) error {
	if event.SellerID == "" {
		return nil
	}

	if err := w.notifier.Notify(ctx, event.SellerID, "listing_status_changed", map[string]interface{}{
		"listing_id": event.ListingID,
		"action":     string(event.Action),
		"status":     string(event.Status),
	}); err != nil {
		log.Printf("Failed to notify seller %s: %v", event.SellerID, err)
	}
	return nil
}

func (w *NotificationWorker) handleReportResolved(ctx context.Context, event *models.ReportResolvedEvent) error {
	if err := w.notifier.Notify(ctx, event.ReporterID, "report_resolved", map[string]interface{}{
		"report_id":  event.ReportID,
		"listing_id": event.ListingID,
		"status":     string(event.Status),
	}); err != nil {
		log.Printf("Failed to notify reporter %s: %v", event.ReporterID, err)
	}
	return nil
}

// ReconcileWorker runs the purchase repair pass on a fixed interval
type ReconcileWorker struct {
	reconciler *service.Reconciler
	interval   time.Duration
	stop       chan struct{}
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(reconciler *service.Reconciler, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

// Start starts the worker and blocks until the context is cancelled or
// Stop is called
func (w *ReconcileWorker) Start(ctx context.Context) error {
	log.Printf("Starting reconcile worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			if _, err := w.reconciler.Run(ctx); err != nil {
				log.Printf("Reconcile pass failed: %v", err)
			}
		}
	}
}

// Stop stops the worker
func (w *ReconcileWorker) Stop() error {
	log.Println("Stopping reconcile worker...")
	close(w.stop)
	return nil
}
