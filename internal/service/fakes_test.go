package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"marketplace-core/internal/models"

	"github.com/lib/pq"
)

// In-memory fakes implementing the store interfaces with the same
// conditional-write semantics as the SQL layer.

type fakeListingStore struct {
	mu       sync.Mutex
	listings map[string]*models.Listing
}

func newFakeListingStore(listings ...*models.Listing) *fakeListingStore {
	s := &fakeListingStore{listings: make(map[string]*models.Listing)}
	for _, l := range listings {
		s.listings[l.ID] = l
	}
	return s
}

func (s *fakeListingStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, models.ErrListingNotFound
	}
	copied := *l
	return &copied, nil
}

func (s *fakeListingStore) GetListingsByIDs(ctx context.Context, ids []string) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.listings[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeListingStore) UpdateListingStatus(ctx context.Context, id string, allowed []models.ModerationStatus, to models.ModerationStatus) (models.ModerationStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return "", false, models.ErrListingNotFound
	}
	for _, from := range allowed {
		if l.ModerationStatus == from {
			l.ModerationStatus = to
			return to, true, nil
		}
	}
	return l.ModerationStatus, false, nil
}

type fakeOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	items     map[string][]models.OrderItem
	byKey     map[string]string
	purchases *fakePurchaseStore
}

func newFakeOrderStore(purchases *fakePurchaseStore) *fakeOrderStore {
	return &fakeOrderStore{
		orders:    make(map[string]*models.Order),
		items:     make(map[string][]models.OrderItem),
		byKey:     make(map[string]string),
		purchases: purchases,
	}
}

func (s *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[order.IdempotencyKey]; exists {
		return &pq.Error{Code: "23505"}
	}
	copied := *order
	s.orders[order.ID] = &copied
	s.items[order.ID] = append([]models.OrderItem(nil), items...)
	s.byKey[order.IdempotencyKey] = order.ID
	return nil
}

func (s *fakeOrderStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *fakeOrderStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	copied := *s.orders[id]
	return &copied, nil
}

func (s *fakeOrderStore) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderItem(nil), s.items[orderID]...), nil
}

func (s *fakeOrderStore) MarkOrderFailed(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = models.OrderStatusFailed
	return true, nil
}

func (s *fakeOrderStore) FinalizeOrder(ctx context.Context, orderID, paymentRef string, purchases []models.Purchase) (bool, error) {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != models.OrderStatusPending {
		s.mu.Unlock()
		return false, nil
	}
	o.Status = models.OrderStatusSuccess
	o.PaymentRef = paymentRef
	s.mu.Unlock()

	for i := range purchases {
		if _, err := s.purchases.CreatePurchase(ctx, &purchases[i]); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (s *fakeOrderStore) ListUnreconciledOrders(ctx context.Context, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0)
	for id, o := range s.orders {
		if o.Status != models.OrderStatusSuccess {
			continue
		}
		for _, item := range s.items[id] {
			if !s.purchases.has(o.UserID, item.ListingID) {
				out = append(out, *o)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakePurchaseStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.Purchase
}

func newFakePurchaseStore() *fakePurchaseStore {
	return &fakePurchaseStore{rows: make(map[string]*models.Purchase)}
}

func purchaseKey(userID, listingID string) string {
	return userID + "/" + listingID
}

func (s *fakePurchaseStore) has(userID, listingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[purchaseKey(userID, listingID)]
	return ok
}

func (s *fakePurchaseStore) CreatePurchase(ctx context.Context, p *models.Purchase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := purchaseKey(p.UserID, p.ListingID)
	if _, exists := s.rows[key]; exists {
		return false, nil
	}
	s.nextID++
	p.ID = s.nextID
	p.PurchasedAt = time.Now()
	copied := *p
	s.rows[key] = &copied
	return true, nil
}

func (s *fakePurchaseStore) GetPurchase(ctx context.Context, userID, listingID string) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[purchaseKey(userID, listingID)]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (s *fakePurchaseStore) GetPurchasesByOrderID(ctx context.Context, orderID string) ([]models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Purchase, 0)
	for _, p := range s.rows {
		if p.SourceOrderID != nil && *p.SourceOrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakePurchaseStore) GetPurchasedListingIDs(ctx context.Context, userID string, listingIDs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := make([]string, 0)
	for _, id := range listingIDs {
		if _, ok := s.rows[purchaseKey(userID, id)]; ok {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.FraudReport
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[string]*models.FraudReport)}
}

func (s *fakeReportStore) CreateReport(ctx context.Context, r *models.FraudReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.CreatedAt = time.Now()
	copied := *r
	s.reports[r.ID] = &copied
	return nil
}

func (s *fakeReportStore) GetReportByID(ctx context.Context, id string) (*models.FraudReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *fakeReportStore) ListReports(ctx context.Context) ([]models.FraudReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FraudReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, *r)
	}
	return out, nil
}

func (s *fakeReportStore) UpdateReportComment(ctx context.Context, id, comment string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return false, nil
	}
	r.AdminComment = &comment
	return true, nil
}

func (s *fakeReportStore) ResolveReport(ctx context.Context, id string, status models.ReportStatus, comment, adminID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok || r.Status != models.ReportStatusPending {
		return false, nil
	}
	now := time.Now()
	r.Status = status
	r.AdminComment = &comment
	r.ResolvedBy = &adminID
	r.ResolvedAt = &now
	return true, nil
}

// fakeGateway signs with the same HMAC scheme as the real adapter so
// tests can mint valid and tampered signatures.
type fakeGateway struct {
	secret      string
	failNext    bool
	registered  int
	lastAmount  int64
	lastReceipt string
}

func (g *fakeGateway) RegisterOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayRegistration, error) {
	if g.failNext {
		return nil, fmt.Errorf("gateway unavailable")
	}
	g.registered++
	g.lastAmount = amount
	g.lastReceipt = receipt
	ref := "gw_" + receipt
	return &GatewayRegistration{
		OrderRef: ref,
		Checkout: g.CheckoutParams(ref, amount, currency),
	}, nil
}

func (g *fakeGateway) CheckoutParams(orderRef string, amount int64, currency string) models.CheckoutParams {
	return models.CheckoutParams{Key: "key_test", OrderRef: orderRef, Amount: amount, Currency: currency}
}

func (g *fakeGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return g.sign(orderRef, paymentRef) == signature
}

func (g *fakeGateway) sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

type fakePublisher struct {
	mu             sync.Mutex
	purchases      []*models.PurchaseCompletedEvent
	statusChanges  []*models.ListingStatusChangedEvent
	reportResolved []*models.ReportResolvedEvent
}

func (p *fakePublisher) PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purchases = append(p.purchases, event)
	return nil
}

func (p *fakePublisher) PublishListingStatusChanged(ctx context.Context, event *models.ListingStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanges = append(p.statusChanges, event)
	return nil
}

func (p *fakePublisher) PublishReportResolved(ctx context.Context, event *models.ReportResolvedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reportResolved = append(p.reportResolved, event)
	return nil
}

func activeListing(id, sellerID string, price int64) *models.Listing {
	return &models.Listing{
		ID:               id,
		SellerID:         sellerID,
		Kind:             models.ListingKindCourse,
		Title:            "listing " + id,
		Price:            price,
		Currency:         "INR",
		ModerationStatus: models.ListingStatusActive,
		Visibility:       models.VisibilityPublic,
	}
}
