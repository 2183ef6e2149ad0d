package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-core/internal/models"
	"marketplace-core/internal/redisclient"
	"marketplace-core/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// OrderService turns checkout intents into exactly the right number of
// durable purchases. Duplicate crediting is impossible by construction:
// the PENDING to SUCCESS flip and the purchase inserts are conditional
// writes at the storage layer, not application-level read-then-write.
type OrderService struct {
	store     OrderStore
	listings  ListingStore
	purchases PurchaseStore
	gateway   PaymentGateway
	publisher Publisher
	redis     *redisclient.Client
	orderTTL  time.Duration
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	listings ListingStore,
	purchases PurchaseStore,
	gateway PaymentGateway,
	publisher Publisher,
	redis *redisclient.Client,
	orderTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:     store,
		listings:  listings,
		purchases: purchases,
		gateway:   gateway,
		publisher: publisher,
		redis:     redis,
		orderTTL:  orderTTL,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	UserID         string   `json:"user_id" binding:"required"`
	ListingIDs     []string `json:"listing_ids" binding:"required,min=1"`
	Currency       string   `json:"currency,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// CreateOrderResponse carries what the buyer's client needs to complete
// payment
type CreateOrderResponse struct {
	OrderID          string                `json:"order_id"`
	ExternalOrderRef string                `json:"external_order_ref"`
	TotalAmount      int64                 `json:"total_amount"`
	Currency         string                `json:"currency"`
	ExpiresAt        time.Time             `json:"expires_at"`
	CheckoutParams   models.CheckoutParams `json:"checkout_params"`
}

// CreateOrder validates purchasability, freezes current prices into a
// PENDING order, and registers it with the payment gateway
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existing, err := s.findExistingOrder(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate checkout request",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", existing.ID))
		return s.responseForOrder(ctx, existing), nil
	}

	listings, err := s.listings.GetListingsByIDs(ctx, req.ListingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}
	if len(listings) != len(req.ListingIDs) {
		return nil, fmt.Errorf("%w: %d of %d listings found", models.ErrListingNotFound, len(listings), len(req.ListingIDs))
	}

	byID := make(map[string]*models.Listing, len(listings))
	for i := range listings {
		byID[listings[i].ID] = &listings[i]
	}

	currency := listings[0].Currency
	for i := range listings {
		l := &listings[i]
		if !l.Purchasable() {
			util.OrdersFailedTotal.WithLabelValues("not_purchasable").Inc()
			return nil, fmt.Errorf("%w: %s", models.ErrListingNotPurchasable, l.ID)
		}
		if l.Currency != currency {
			return nil, fmt.Errorf("%w: order mixes %s and %s", models.ErrCurrencyMismatch, currency, l.Currency)
		}
	}
	if req.Currency != "" && req.Currency != currency {
		return nil, fmt.Errorf("%w: declared %s, listings priced in %s", models.ErrCurrencyMismatch, req.Currency, currency)
	}

	owned, err := s.purchases.GetPurchasedListingIDs(ctx, req.UserID, req.ListingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing purchases: %w", err)
	}
	if len(owned) > 0 {
		util.OrdersFailedTotal.WithLabelValues("already_purchased").Inc()
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyPurchased, strings.Join(owned, ", "))
	}

	orderID := uuid.New().String()
	var total int64
	items := make([]models.OrderItem, 0, len(req.ListingIDs))
	for _, id := range req.ListingIDs {
		l := byID[id]
		total += l.Price
		items = append(items, models.OrderItem{OrderID: orderID, ListingID: id, Price: l.Price})
	}
	if total == 0 {
		return nil, models.ErrNotChargeable
	}

	reg, err := s.gateway.RegisterOrder(ctx, total, currency, orderID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("gateway").Inc()
		return nil, fmt.Errorf("%w: %v", models.ErrGateway, err)
	}

	order := &models.Order{
		ID:             orderID,
		UserID:         req.UserID,
		ExternalRef:    reg.OrderRef,
		TotalAmount:    total,
		Currency:       currency,
		Status:         models.OrderStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		ExpiresAt:      time.Now().Add(s.orderTTL),
	}

	if err := s.store.CreateOrder(ctx, order, items); err != nil {
		if isUniqueViolation(err) {
			// Lost an idempotency race: another request with the same
			// key committed first. Return its order.
			if existing, ferr := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey); ferr == nil && existing != nil {
				return s.responseForOrder(ctx, existing), nil
			}
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.cacheOrder(ctx, order, &reg.Checkout)

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("external_ref", order.ExternalRef),
		zap.Int64("total_amount", total))

	return &CreateOrderResponse{
		OrderID:          order.ID,
		ExternalOrderRef: order.ExternalRef,
		TotalAmount:      total,
		Currency:         currency,
		ExpiresAt:        order.ExpiresAt,
		CheckoutParams:   reg.Checkout,
	}, nil
}

// VerifyPaymentResult is returned by VerifyPayment, identically on the
// first call and on every idempotent replay
type VerifyPaymentResult struct {
	OrderID   string            `json:"order_id"`
	Status    string            `json:"status"`
	Purchases []models.Purchase `json:"purchases"`
}

// VerifyPayment authenticates a gateway callback and finalizes the
// order. The signature check is the sole authenticity check; the
// client-supplied success flag is never trusted. The call is idempotent:
// retries and duplicate callbacks observe the stored outcome.
func (s *OrderService) VerifyPayment(ctx context.Context, orderID, paymentRef, signature string) (*VerifyPaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.VerifyPayment")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !s.gateway.VerifySignature(order.ExternalRef, paymentRef, signature) {
		util.PaymentVerifyRejectedTotal.WithLabelValues("signature_mismatch").Inc()
		s.logger.Warn("Payment signature mismatch",
			zap.String("order_id", orderID),
			zap.String("external_ref", order.ExternalRef))
		return nil, models.ErrSignatureMismatch
	}

	switch order.Status {
	case models.OrderStatusSuccess:
		return s.successResult(ctx, order)
	case models.OrderStatusFailed:
		util.PaymentVerifyRejectedTotal.WithLabelValues("finalized").Inc()
		return nil, models.ErrOrderFinalized
	}

	if order.Expired(time.Now()) {
		// Lazy expiry: the guarded write cannot resurrect a terminal order
		if _, err := s.store.MarkOrderFailed(ctx, orderID); err != nil {
			s.logger.Error("Failed to expire order", zap.String("order_id", orderID), zap.Error(err))
		}
		util.PaymentVerifyRejectedTotal.WithLabelValues("expired").Inc()
		return nil, models.ErrOrderExpired
	}

	if s.redis != nil {
		if ok, err := s.redis.AcquireLock(ctx, "verify:"+orderID, 10*time.Second); err == nil && ok {
			defer s.redis.ReleaseLock(ctx, "verify:"+orderID)
		}
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("order %s has no items", orderID)
	}

	sourceID := order.ID
	purchases := make([]models.Purchase, 0, len(items))
	for _, item := range items {
		purchases = append(purchases, models.Purchase{
			UserID:          order.UserID,
			ListingID:       item.ListingID,
			PriceAtPurchase: item.Price,
			Currency:        order.Currency,
			PaymentRef:      paymentRef,
			SourceOrderID:   &sourceID,
		})
	}

	applied, err := s.store.FinalizeOrder(ctx, orderID, paymentRef, purchases)
	if err != nil {
		// If the order flipped but a purchase write is missing, the
		// reconcile pass repairs it from order_items; nothing is lost.
		s.logger.Error("Failed to finalize order",
			zap.String("order_id", orderID),
			zap.String("payment_ref", paymentRef),
			zap.Error(err))
		return nil, fmt.Errorf("failed to finalize order: %w", err)
	}
	if !applied {
		current, err := s.store.GetOrderByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderStatusSuccess {
			// A concurrent retry won the conditional write; same outcome
			return s.successResult(ctx, current)
		}
		util.PaymentVerifyRejectedTotal.WithLabelValues("finalized").Inc()
		return nil, models.ErrOrderFinalized
	}

	util.PaymentsVerifiedTotal.Inc()
	util.PurchasesCreatedTotal.WithLabelValues("order").Add(float64(len(purchases)))
	s.logger.Info("Payment verified",
		zap.String("order_id", orderID),
		zap.String("payment_ref", paymentRef),
		zap.Int("purchases", len(purchases)))

	s.publishPurchaseCompleted(ctx, order, purchases)

	return s.successResult(ctx, order)
}

// GetOrder retrieves an order and its credited purchases, applying lazy
// expiry on read
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, []models.Purchase, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if order.Status == models.OrderStatusPending && order.Expired(time.Now()) {
		if _, err := s.store.MarkOrderFailed(ctx, orderID); err != nil {
			s.logger.Error("Failed to expire order", zap.String("order_id", orderID), zap.Error(err))
		}
		if order, err = s.store.GetOrderByID(ctx, orderID); err != nil {
			return nil, nil, err
		}
	}

	purchases, err := s.purchases.GetPurchasesByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, purchases, nil
}

func (s *OrderService) successResult(ctx context.Context, order *models.Order) (*VerifyPaymentResult, error) {
	purchases, err := s.purchases.GetPurchasesByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	return &VerifyPaymentResult{
		OrderID:   order.ID,
		Status:    models.OrderStatusSuccess,
		Purchases: purchases,
	}, nil
}

func (s *OrderService) findExistingOrder(ctx context.Context, key string) (*models.Order, error) {
	if s.redis != nil {
		if orderID, ok, err := s.redis.GetIdempotentOrder(ctx, key); err == nil && ok {
			if order, err := s.store.GetOrderByID(ctx, orderID); err == nil {
				return order, nil
			}
		}
	}
	return s.store.GetOrderByIdempotencyKey(ctx, key)
}

func (s *OrderService) responseForOrder(ctx context.Context, order *models.Order) *CreateOrderResponse {
	var params *models.CheckoutParams
	if s.redis != nil {
		if cached, ok, err := s.redis.GetCheckoutParams(ctx, order.ID); err == nil && ok {
			params = cached
		}
	}
	if params == nil {
		p := s.gateway.CheckoutParams(order.ExternalRef, order.TotalAmount, order.Currency)
		params = &p
	}

	return &CreateOrderResponse{
		OrderID:          order.ID,
		ExternalOrderRef: order.ExternalRef,
		TotalAmount:      order.TotalAmount,
		Currency:         order.Currency,
		ExpiresAt:        order.ExpiresAt,
		CheckoutParams:   *params,
	}
}

func (s *OrderService) cacheOrder(ctx context.Context, order *models.Order, params *models.CheckoutParams) {
	if s.redis == nil {
		return
	}
	ttl := time.Until(order.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := s.redis.SetIdempotentOrder(ctx, order.IdempotencyKey, order.ID, ttl); err != nil {
		s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
	}
	if err := s.redis.CacheCheckoutParams(ctx, order.ID, params, ttl); err != nil {
		s.logger.Warn("Failed to cache checkout params", zap.Error(err))
	}
}

func (s *OrderService) publishPurchaseCompleted(ctx context.Context, order *models.Order, purchases []models.Purchase) {
	data := make([]models.PurchaseData, 0, len(purchases))
	for _, p := range purchases {
		data = append(data, models.PurchaseData{ListingID: p.ListingID, PriceAtPurchase: p.PriceAtPurchase})
	}

	event := &models.PurchaseCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePurchaseCompleted,
			Timestamp: time.Now(),
		},
		UserID:      order.UserID,
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Purchases:   data,
	}

	if err := s.publisher.PublishPurchaseCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseCompleted event", zap.Error(err))
	}
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: missing user id", models.ErrValidation)
	}
	if len(req.ListingIDs) == 0 {
		return fmt.Errorf("%w: empty listing ids", models.ErrValidation)
	}
	seen := make(map[string]struct{}, len(req.ListingIDs))
	for _, id := range req.ListingIDs {
		if id == "" {
			return fmt.Errorf("%w: empty listing id", models.ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate listing id %s", models.ErrValidation, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
