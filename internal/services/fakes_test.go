package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orderhubapp/orderhub/internal/courier"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/fraud"
	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/payment"
)

// In-memory store fakes. They mirror the store contracts the services
// rely on: pgx.ErrNoRows for misses and db.ErrStaleStatus when a
// compare-and-set update loses.

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *fakeOrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *order
	return &copied, nil
}

func (s *fakeOrderStore) List(_ context.Context, filter db.OrderFilter) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Order
	for _, order := range s.orders {
		if filter.CustomerID != nil && order.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.CreatedAfter != nil && order.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		copied := *order
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeOrderStore) AppendStatus(_ context.Context, id uuid.UUID, previous models.OrderStatus, change models.OrderStatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.Status != previous {
		return db.ErrStaleStatus
	}
	order.Status = change.Status
	order.StatusHistory = append(order.StatusHistory, change)
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeOrderStore) SetDeliveryInfo(_ context.Context, orderID uuid.UUID, info models.DeliveryInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return pgx.ErrNoRows
	}
	order.DeliveryInfo = &info
	return nil
}

// put seeds an order with a fixed ID, bypassing Create.
func (s *fakeOrderStore) put(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	copied := *order
	s.orders[order.ID] = &copied
}

type fakeProductStore struct {
	products map[uuid.UUID]*models.Product
}

func newFakeProductStore(products ...*models.Product) *fakeProductStore {
	s := &fakeProductStore{products: make(map[uuid.UUID]*models.Product)}
	for _, p := range products {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeProductStore) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (s *fakeProductStore) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product)
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeShippingStore struct {
	shippings map[uuid.UUID]*models.Shipping
}

func newFakeShippingStore() *fakeShippingStore {
	return &fakeShippingStore{shippings: make(map[uuid.UUID]*models.Shipping)}
}

func (s *fakeShippingStore) Create(_ context.Context, shipping *models.Shipping) error {
	shipping.ID = uuid.New()
	shipping.CreatedAt = time.Now().UTC()
	copied := *shipping
	s.shippings[shipping.ID] = &copied
	return nil
}

func (s *fakeShippingStore) GetByID(_ context.Context, id uuid.UUID) (*models.Shipping, error) {
	shipping, ok := s.shippings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return shipping, nil
}

type fakePaymentStore struct {
	payments map[uuid.UUID]*models.Payment
	orders   *fakeOrderStore
	linkErr  error
}

func newFakePaymentStore(orders *fakeOrderStore) *fakePaymentStore {
	return &fakePaymentStore{payments: make(map[uuid.UUID]*models.Payment), orders: orders}
}

// CreateForOrder mirrors the store's transactional contract: on a failed
// order link no payment row survives.
func (s *fakePaymentStore) CreateForOrder(_ context.Context, p *models.Payment) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	s.orders.mu.Lock()
	order, ok := s.orders.orders[p.OrderID]
	if !ok {
		s.orders.mu.Unlock()
		return pgx.ErrNoRows
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	order.PaymentID = &p.ID
	s.orders.mu.Unlock()
	copied := *p
	s.payments[p.ID] = &copied
	return nil
}

func (s *fakePaymentStore) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

type fakeCustomerStore struct {
	customers map[uuid.UUID]*models.Customer
}

func newFakeCustomerStore(customers ...*models.Customer) *fakeCustomerStore {
	s := &fakeCustomerStore{customers: make(map[uuid.UUID]*models.Customer)}
	for _, c := range customers {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		s.customers[c.ID] = c
	}
	return s
}

func (s *fakeCustomerStore) GetByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

type fakeUserStore struct {
	users map[uuid.UUID]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

type fakeRefundStore struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]*models.Refund
}

func newFakeRefundStore() *fakeRefundStore {
	return &fakeRefundStore{refunds: make(map[uuid.UUID]*models.Refund)}
}

func (s *fakeRefundStore) Create(_ context.Context, refund *models.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund.ID = uuid.New()
	refund.CreatedAt = time.Now().UTC()
	copied := *refund
	s.refunds[refund.ID] = &copied
	return nil
}

func (s *fakeRefundStore) GetByID(_ context.Context, id uuid.UUID) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *refund
	return &copied, nil
}

func (s *fakeRefundStore) FindActive(_ context.Context, orderID, customerID uuid.UUID) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, refund := range s.refunds {
		if refund.OrderID == orderID && refund.CustomerID == customerID && refund.Active() {
			copied := *refund
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeRefundStore) List(_ context.Context, filter db.RefundFilter) ([]*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Refund
	for _, refund := range s.refunds {
		if filter.OrderID != nil && refund.OrderID != *filter.OrderID {
			continue
		}
		if filter.CustomerID != nil && refund.CustomerID != *filter.CustomerID {
			continue
		}
		copied := *refund
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeRefundStore) AppendStatus(_ context.Context, id uuid.UUID, previous models.RefundStatus, change models.RefundStatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[id]
	if !ok || refund.Status != previous {
		return db.ErrStaleStatus
	}
	refund.Status = change.NewStatus
	refund.StatusHistory = append(refund.StatusHistory, change)
	if refund.ProcessedAt == nil && change.NewStatus != models.RefundRequested {
		at := change.ProcessedAt
		refund.ProcessedAt = &at
	}
	return nil
}

func (s *fakeRefundStore) SetReceiptImage(_ context.Context, id uuid.UUID, receiptImage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[id]
	if !ok || refund.Status != models.RefundProcessed {
		return db.ErrStaleStatus
	}
	refund.ReceiptImage = receiptImage
	return nil
}

func (s *fakeRefundStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refunds[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.refunds, id)
	return nil
}

type fakeReturnStore struct {
	mu      sync.Mutex
	returns map[uuid.UUID]*models.Return
	// createDelay lets concurrency tests widen the validate-insert gap.
	createDelay time.Duration
}

func newFakeReturnStore() *fakeReturnStore {
	return &fakeReturnStore{returns: make(map[uuid.UUID]*models.Return)}
}

func (s *fakeReturnStore) Create(_ context.Context, ret *models.Return) error {
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ret.ID = uuid.New()
	ret.CreatedAt = time.Now().UTC()
	copied := *ret
	s.returns[ret.ID] = &copied
	return nil
}

func (s *fakeReturnStore) GetByID(_ context.Context, id uuid.UUID) (*models.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, ok := s.returns[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ret
	return &copied, nil
}

func (s *fakeReturnStore) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*models.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Return
	for _, ret := range s.returns {
		if ret.OrderID == orderID {
			copied := *ret
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeReturnStore) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]*models.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Return
	for _, ret := range s.returns {
		if ret.CustomerID == customerID {
			copied := *ret
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeReturnStore) AppendStatus(_ context.Context, id uuid.UUID, previous models.ReturnStatus, change models.ReturnStatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, ok := s.returns[id]
	if !ok || ret.Status != previous {
		return db.ErrStaleStatus
	}
	ret.Status = change.NewStatus
	ret.StatusHistory = append(ret.StatusHistory, change)
	return nil
}

type fakeGateway struct {
	status  models.PaymentStatus
	err     error
	lastTxn string
}

func (g *fakeGateway) Capture(ctx context.Context, _ uuid.UUID, _ int, _ models.PaymentMethod, _ map[string]any) (*payment.CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	g.lastTxn = "TXN-test"
	return &payment.CaptureResult{Status: g.status, TransactionID: g.lastTxn}, nil
}

type fakeTracker struct {
	info  *courier.TrackingInfo
	err   error
	calls int
}

func (t *fakeTracker) Track(_ context.Context, _ string) (*courier.TrackingInfo, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return t.info, nil
}

type fakeAnalyzer struct {
	result *fraud.Result
	err    error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, _ fraud.Input) (*fraud.Result, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}
