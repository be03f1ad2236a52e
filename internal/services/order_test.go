package services

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/orderhubapp/orderhub/internal/apperr"
	"github.com/orderhubapp/orderhub/internal/cache"
	"github.com/orderhubapp/orderhub/internal/courier"
	"github.com/orderhubapp/orderhub/internal/fraud"
	"github.com/orderhubapp/orderhub/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type orderServiceFixture struct {
	service   *OrderService
	orders    *fakeOrderStore
	products  *fakeProductStore
	shippings *fakeShippingStore
	payments  *fakePaymentStore
	gateway   *fakeGateway
	tracker   *fakeTracker
}

func newOrderServiceFixture(t *testing.T, analyzer FraudAnalyzer, products ...*models.Product) *orderServiceFixture {
	t.Helper()
	orders := newFakeOrderStore()
	f := &orderServiceFixture{
		orders:    orders,
		products:  newFakeProductStore(products...),
		shippings: newFakeShippingStore(),
		payments:  newFakePaymentStore(orders),
		gateway:   &fakeGateway{status: models.PaymentSuccess},
		tracker:   &fakeTracker{},
	}
	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("creating memory cache: %v", err)
	}
	f.service = NewOrderService(
		f.orders, f.products, f.shippings, f.payments,
		f.gateway, analyzer, f.tracker, cacheProvider,
		[]models.OrderStatus{models.OrderPending, models.OrderPaid},
		discardLogger(),
	)
	return f
}

func TestOrderService_Create(t *testing.T) {
	t.Parallel()

	widget := &models.Product{ID: uuid.New(), Name: "Blue Widget", PriceCents: 1500, Stock: 10}
	gadget := &models.Product{ID: uuid.New(), Name: "Red Gadget", PriceCents: 4200, Stock: 3}
	f := newOrderServiceFixture(t, nil, widget, gadget)

	order, err := f.service.Create(t.Context(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []CreateOrderItem{
			{ProductID: widget.ID, Quantity: 3},
			{ProductID: gadget.ID, Quantity: 1},
		},
		Shipping: ShippingInput{Address: "1 Main St", City: "Lahore", Country: "PK", Email: "a@b.co", Phone: "+923001234567"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("status = %q, want pending", order.Status)
	}
	if want := 3*1500 + 4200; order.TotalCents != want {
		t.Fatalf("total = %d, want %d", order.TotalCents, want)
	}
	if len(order.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(order.StatusHistory))
	}
	first := order.StatusHistory[0]
	if first.Status != models.OrderPending || first.ChangedBy != "system" || first.Note != "Order created" {
		t.Fatalf("unexpected first history entry: %+v", first)
	}
	if order.Items[0].ProductName != "Blue Widget" || order.Items[0].UnitPriceCents != 1500 {
		t.Fatalf("item snapshot not taken: %+v", order.Items[0])
	}
}

func TestOrderService_Create_Validation(t *testing.T) {
	t.Parallel()

	widget := &models.Product{ID: uuid.New(), Name: "Blue Widget", PriceCents: 1500, Stock: 2}

	tests := []struct {
		name  string
		input CreateOrderInput
		kind  apperr.Kind
	}{
		{
			name:  "no items",
			input: CreateOrderInput{CustomerID: uuid.New()},
			kind:  apperr.KindInvalidArgument,
		},
		{
			name: "zero quantity",
			input: CreateOrderInput{
				CustomerID: uuid.New(),
				Items:      []CreateOrderItem{{ProductID: widget.ID, Quantity: 0}},
			},
			kind: apperr.KindInvalidArgument,
		},
		{
			name: "unknown product",
			input: CreateOrderInput{
				CustomerID: uuid.New(),
				Items:      []CreateOrderItem{{ProductID: uuid.New(), Quantity: 1}},
			},
			kind: apperr.KindNotFound,
		},
		{
			name: "insufficient stock",
			input: CreateOrderInput{
				CustomerID: uuid.New(),
				Items:      []CreateOrderItem{{ProductID: widget.ID, Quantity: 5}},
			},
			kind: apperr.KindInvalidArgument,
		},
		{
			name: "unknown payment method",
			input: CreateOrderInput{
				CustomerID: uuid.New(),
				Items:      []CreateOrderItem{{ProductID: widget.ID, Quantity: 1}},
				Payment:    &PaymentInput{Method: "barter"},
			},
			kind: apperr.KindInvalidArgument,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newOrderServiceFixture(t, nil, widget)
			_, err := f.service.Create(t.Context(), tc.input)
			if !apperr.IsKind(err, tc.kind) {
				t.Fatalf("Create() error = %v, want kind %s", err, tc.kind)
			}
		})
	}
}

func TestOrderService_Create_FraudFlagging(t *testing.T) {
	t.Parallel()

	widget := &models.Product{ID: uuid.New(), Name: "Blue Widget", PriceCents: 1500, Stock: 5}
	analyzer := &fakeAnalyzer{result: &fraud.Result{IsFraud: true, Reason: "Invalid email format"}}
	f := newOrderServiceFixture(t, analyzer, widget)

	order, err := f.service.Create(t.Context(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items:      []CreateOrderItem{{ProductID: widget.ID, Quantity: 1}},
		Shipping:   ShippingInput{Email: "not-an-email"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !order.IsFraudulent || order.FraudReason != "Invalid email format" {
		t.Fatalf("order not flagged: fraudulent=%v reason=%q", order.IsFraudulent, order.FraudReason)
	}
}

func TestOrderService_Create_AnalyzerFailureDoesNotBlock(t *testing.T) {
	t.Parallel()

	widget := &models.Product{ID: uuid.New(), Name: "Blue Widget", PriceCents: 1500, Stock: 5}
	analyzer := &fakeAnalyzer{err: apperr.Upstream(nil, "geocoding service unavailable")}
	f := newOrderServiceFixture(t, analyzer, widget)

	order, err := f.service.Create(t.Context(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items:      []CreateOrderItem{{ProductID: widget.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if order.IsFraudulent {
		t.Fatal("analyzer failure must not flag the order")
	}
}

func TestOrderService_Create_WithPaymentSuccess(t *testing.T) {
	t.Parallel()

	widget := &models.Product{ID: uuid.New(), Name: "Blue Widget", PriceCents: 1500, Stock: 5}
	f := newOrderServiceFixture(t, nil, widget)

	order, err := f.service.Create(t.Context(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items:      []CreateOrderItem{{ProductID: widget.ID, Quantity: 2}},
		Payment:    &PaymentInput{Method: models.MethodCreditCard},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if order.Status != models.OrderPaid {
		t.Fatalf("status = %q, want paid after successful capture", order.Status)
	}
	if order.PaymentID == nil {
		t.Fatal("payment not linked to order")
	}
	p, err := f.payments.GetByID(t.Context(), *order.PaymentID)
	if err != nil {
		t.Fatalf("payment record missing: %v", err)
	}
	if p.Status != models.PaymentSuccess || p.AmountCents != 3000 {
		t.Fatalf("unexpected payment record: %+v", p)
	}

	stored, err := f.orders.GetByID(t.Context(), order.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(stored.StatusHistory) != 2 || stored.StatusHistory[1].Status != models.OrderPaid {
		t.Fatalf("paid transition not recorded in history: %+v", stored.StatusHistory)
	}
}

func TestOrderService_Create_WithPaymentFailureLeavesPending(t *testing.T) {
	t.Parallel()

	widget := &models.Product{ID: uuid.New(), Name: "Blue Widget", PriceCents: 1500, Stock: 5}
	f := newOrderServiceFixture(t, nil, widget)
	f.gateway.status = models.PaymentFailed

	order, err := f.service.Create(t.Context(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items:      []CreateOrderItem{{ProductID: widget.ID, Quantity: 1}},
		Payment:    &PaymentInput{Method: models.MethodDebitCard},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("status = %q, want pending after failed capture", order.Status)
	}
	if order.PaymentID == nil {
		t.Fatal("failed capture must still be recorded")
	}
	p, err := f.payments.GetByID(t.Context(), *order.PaymentID)
	if err != nil {
		t.Fatalf("payment record missing: %v", err)
	}
	if p.Status != models.PaymentFailed {
		t.Fatalf("payment status = %q, want failed", p.Status)
	}
}

// A capture whose write fails must not leave a payment record behind:
// the insert and the order link are one atomic store operation.
func TestOrderService_ProcessPayment_FailedWriteLeavesNoPayment(t *testing.T) {
	t.Parallel()

	f := newOrderServiceFixture(t, nil)
	order := &models.Order{CustomerID: uuid.New(), Status: models.OrderPending, TotalCents: 1500}
	f.orders.put(order)
	f.payments.linkErr = errors.New("write failed")

	_, err := f.service.ProcessPayment(t.Context(), order.ID, models.MethodCreditCard, nil)
	if err == nil {
		t.Fatal("ProcessPayment() expected error")
	}
	if len(f.payments.payments) != 0 {
		t.Fatalf("payments = %d, want none after failed write", len(f.payments.payments))
	}
	stored, err := f.orders.GetByID(t.Context(), order.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.PaymentID != nil {
		t.Fatalf("order linked to payment %s after failed write", *stored.PaymentID)
	}
}

func TestOrderService_UpdateStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from     models.OrderStatus
		to       models.OrderStatus
		wantKind apperr.Kind
	}{
		{name: "pending to paid", from: models.OrderPending, to: models.OrderPaid},
		{name: "paid to shipped", from: models.OrderPaid, to: models.OrderShipped},
		{name: "shipped to delivered", from: models.OrderShipped, to: models.OrderDelivered},
		{name: "pending to cancelled", from: models.OrderPending, to: models.OrderCancelled},
		{name: "paid to cancelled", from: models.OrderPaid, to: models.OrderCancelled},
		{name: "skip paid", from: models.OrderPending, to: models.OrderShipped, wantKind: apperr.KindInvalidTransition},
		{name: "backwards", from: models.OrderDelivered, to: models.OrderShipped, wantKind: apperr.KindInvalidTransition},
		{name: "cancel after shipping", from: models.OrderShipped, to: models.OrderCancelled, wantKind: apperr.KindInvalidTransition},
		{name: "same status", from: models.OrderPaid, to: models.OrderPaid, wantKind: apperr.KindInvalidTransition},
		{name: "out of terminal cancelled", from: models.OrderCancelled, to: models.OrderPending, wantKind: apperr.KindInvalidTransition},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newOrderServiceFixture(t, nil)
			order := &models.Order{CustomerID: uuid.New(), Status: tc.from}
			f.orders.put(order)

			updated, err := f.service.UpdateStatus(t.Context(), order.ID, tc.to, "admin-1", "")
			if tc.wantKind != "" {
				if !apperr.IsKind(err, tc.wantKind) {
					t.Fatalf("UpdateStatus() error = %v, want kind %s", err, tc.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			if updated.Status != tc.to {
				t.Fatalf("status = %q, want %q", updated.Status, tc.to)
			}
			last := updated.StatusHistory[len(updated.StatusHistory)-1]
			if last.Status != tc.to || last.ChangedBy != "admin-1" {
				t.Fatalf("unexpected history entry: %+v", last)
			}
		})
	}
}

func TestOrderService_UpdateStatus_UnknownStatusAndOrder(t *testing.T) {
	t.Parallel()

	f := newOrderServiceFixture(t, nil)

	if _, err := f.service.UpdateStatus(t.Context(), uuid.New(), "teleported", "", ""); !apperr.IsKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("unknown status: error = %v, want invalid_argument", err)
	}
	if _, err := f.service.UpdateStatus(t.Context(), uuid.New(), models.OrderPaid, "", ""); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("missing order: error = %v, want not_found", err)
	}
}

func TestOrderService_TrackCourier(t *testing.T) {
	t.Parallel()

	f := newOrderServiceFixture(t, nil)
	f.tracker.info = &courier.TrackingInfo{
		CustomerName:   "Ali",
		TrackingNumber: "PX-123",
		StatusEvents: []courier.TrackingEvent{
			{Message: "Picked up", Code: "100"},
		},
	}
	order := &models.Order{
		CustomerID:   uuid.New(),
		Status:       models.OrderShipped,
		DeliveryInfo: &models.DeliveryInfo{TrackingNumber: "PX-123"},
	}
	f.orders.put(order)

	info, err := f.service.TrackCourier(t.Context(), order.ID)
	if err != nil {
		t.Fatalf("TrackCourier() error = %v", err)
	}
	if info.TrackingNumber != "PX-123" || len(info.StatusEvents) != 1 {
		t.Fatalf("unexpected tracking info: %+v", info)
	}

	// Second call is served from cache.
	if _, err := f.service.TrackCourier(t.Context(), order.ID); err != nil {
		t.Fatalf("TrackCourier() second call error = %v", err)
	}
	if f.tracker.calls != 1 {
		t.Fatalf("courier called %d times, want 1 (cache miss only)", f.tracker.calls)
	}
}

func TestOrderService_TrackCourier_NoTrackingNumber(t *testing.T) {
	t.Parallel()

	f := newOrderServiceFixture(t, nil)
	order := &models.Order{CustomerID: uuid.New(), Status: models.OrderPaid}
	f.orders.put(order)

	if _, err := f.service.TrackCourier(t.Context(), order.ID); !apperr.IsKind(err, apperr.KindInvalidState) {
		t.Fatalf("TrackCourier() error = %v, want invalid_state", err)
	}
}

func TestOrderService_ProcessPayment_UnknownMethod(t *testing.T) {
	t.Parallel()

	f := newOrderServiceFixture(t, nil)
	if _, err := f.service.ProcessPayment(t.Context(), uuid.New(), "iou", nil); !apperr.IsKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("ProcessPayment() error = %v, want invalid_argument", err)
	}
}

func TestOrderService_SetDeliveryInfo(t *testing.T) {
	t.Parallel()

	f := newOrderServiceFixture(t, nil)
	order := &models.Order{CustomerID: uuid.New(), Status: models.OrderShipped}
	f.orders.put(order)

	shippedAt := time.Now().UTC()
	updated, err := f.service.SetDeliveryInfo(t.Context(), order.ID, models.DeliveryInfo{
		CourierCompany: "PostEx",
		TrackingNumber: "PX-999",
		ShippedAt:      &shippedAt,
	})
	if err != nil {
		t.Fatalf("SetDeliveryInfo() error = %v", err)
	}
	if updated.DeliveryInfo == nil || updated.DeliveryInfo.TrackingNumber != "PX-999" {
		t.Fatalf("delivery info not set: %+v", updated.DeliveryInfo)
	}

	if _, err := f.service.SetDeliveryInfo(t.Context(), order.ID, models.DeliveryInfo{}); !apperr.IsKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("empty tracking number: error = %v, want invalid_argument", err)
	}
}
