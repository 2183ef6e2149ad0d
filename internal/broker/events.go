package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"marketplace-core/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events. Publishing is
// fire-and-forget from the caller's perspective: a failed publish must
// never fail the operation that produced the event.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPurchaseCompleted publishes PurchaseCompleted event
func (ep *EventPublisher) PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	key := fmt.Sprintf("user-%s", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishListingStatusChanged publishes ListingStatusChanged event
func (ep *EventPublisher) PublishListingStatusChanged(ctx context.Context, event *models.ListingStatusChangedEvent) error {
	key := fmt.Sprintf("listing-%s", event.ListingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReportResolved publishes ReportResolved event
func (ep *EventPublisher) PublishReportResolved(ctx context.Context, event *models.ReportResolvedEvent) error {
	key := fmt.Sprintf("report-%s", event.ReportID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered handlers
type EventHandler struct {
	onPurchaseCompleted    func(context.Context, *models.PurchaseCompletedEvent) error
	onListingStatusChanged func(context.Context, *models.ListingStatusChangedEvent) error
	onReportResolved       func(context.Context, *models.ReportResolvedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPurchaseCompleted registers a handler for PurchaseCompleted events
func (eh *EventHandler) OnPurchaseCompleted(handler func(context.Context, *models.PurchaseCompletedEvent) error) {
	eh.onPurchaseCompleted = handler
}

// OnListingStatusChanged registers a handler for ListingStatusChanged events
func (eh *EventHandler) OnListingStatusChanged(handler func(context.Context, *models.ListingStatusChangedEvent) error) {
	eh.onListingStatusChanged = handler
}

// OnReportResolved registers a handler for ReportResolved events
func (eh *EventHandler) OnReportResolved(handler func(context.Context, *models.ReportResolvedEvent) error) {
	eh.onReportResolved = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypePurchaseCompleted:
		if eh.onPurchaseCompleted != nil {
			var event models.PurchaseCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseCompleted event: %w", err)
			}
			return eh.onPurchaseCompleted(ctx, &event)
		}

	case models.EventTypeListingStatusChanged:
		if eh.onListingStatusChanged != nil {
			var event models.ListingStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ListingStatusChanged event: %w", err)
			}
			return eh.onListingStatusChanged(ctx, &event)
		}

	case models.EventTypeReportResolved:
		if eh.onReportResolved != nil {
			var event models.ReportResolvedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReportResolved event: %w", err)
			}
			return eh.onReportResolved(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
