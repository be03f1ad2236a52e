package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orderhubapp/orderhub/internal/apperr"
	"github.com/orderhubapp/orderhub/internal/cache"
	"github.com/orderhubapp/orderhub/internal/courier"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/fraud"
	"github.com/orderhubapp/orderhub/internal/logging"
	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/observability"
	"github.com/orderhubapp/orderhub/internal/payment"
)

const (
	captureTimeout   = 15 * time.Second
	trackingCacheTTL = 5 * time.Minute
)

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter db.OrderFilter) ([]*models.Order, error)
	AppendStatus(ctx context.Context, id uuid.UUID, previous models.OrderStatus, change models.OrderStatusChange) error
	SetDeliveryInfo(ctx context.Context, orderID uuid.UUID, info models.DeliveryInfo) error
}

type productStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type shippingStore interface {
	Create(ctx context.Context, shipping *models.Shipping) error
}

type paymentStore interface {
	CreateForOrder(ctx context.Context, p *models.Payment) error
}

// FraudAnalyzer is satisfied by fraud.Analyzer; it is exported so the
// wiring layer can pass nil when no geocoding key is configured.
type FraudAnalyzer interface {
	Analyze(ctx context.Context, input fraud.Input) (*fraud.Result, error)
}

type courierTracker interface {
	Track(ctx context.Context, trackingNumber string) (*courier.TrackingInfo, error)
}

// OrderService owns the order lifecycle: creation with stock and fraud
// checks, payment capture, status transitions and courier tracking.
type OrderService struct {
	orders      orderStore
	products    productStore
	shippings   shippingStore
	payments    paymentStore
	gateway     payment.Gateway
	analyzer    FraudAnalyzer
	courier     courierTracker
	cache       cache.Provider
	transitions map[models.OrderStatus][]models.OrderStatus
	logger      *slog.Logger
}

func NewOrderService(
	orders orderStore,
	products productStore,
	shippings shippingStore,
	payments paymentStore,
	gateway payment.Gateway,
	analyzer FraudAnalyzer,
	courierClient courierTracker,
	cacheProvider cache.Provider,
	cancelableFrom []models.OrderStatus,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:      orders,
		products:    products,
		shippings:   shippings,
		payments:    payments,
		gateway:     gateway,
		analyzer:    analyzer,
		courier:     courierClient,
		cache:       cacheProvider,
		transitions: orderTransitionTable(cancelableFrom),
		logger:      logger.With("component", "order_service"),
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// orderTransitionTable is the forward lifecycle plus the configured set
// of statuses a cancellation may start from. Terminal statuses never
// gain outgoing edges here.
func orderTransitionTable(cancelableFrom []models.OrderStatus) map[models.OrderStatus][]models.OrderStatus {
	table := map[models.OrderStatus][]models.OrderStatus{
		models.OrderPending:   {models.OrderPaid},
		models.OrderPaid:      {models.OrderShipped},
		models.OrderShipped:   {models.OrderDelivered},
		models.OrderDelivered: {},
		models.OrderCancelled: {},
	}
	for _, from := range cancelableFrom {
		if !containsStatus(table[from], models.OrderCancelled) {
			table[from] = append(table[from], models.OrderCancelled)
		}
	}
	return table
}

type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type ShippingInput struct {
	Address    string
	City       string
	State      string
	Country    string
	PostalCode string
	Email      string
	Phone      string
}

type PaymentInput struct {
	Method  models.PaymentMethod
	Details map[string]any
}

type CreateOrderInput struct {
	CustomerID uuid.UUID
	Items      []CreateOrderItem
	Shipping   ShippingInput
	Payment    *PaymentInput
	RiderNote  string
}

// Create validates stock, runs the fraud check, persists the shipping
// address and the order, and captures payment when one was supplied. A
// failed capture leaves the order pending rather than failing creation.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	span := sentry.StartSpan(ctx,
		"service.order.create",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("Create"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if len(input.Items) == 0 {
		return nil, apperr.InvalidArgument("order must contain at least one item")
	}
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, apperr.InvalidArgument("item quantity must be at least 1")
		}
	}
	if input.Payment != nil && !models.ValidPaymentMethod(string(input.Payment.Method)) {
		return nil, apperr.InvalidArgument("unknown payment method %q", input.Payment.Method)
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	total := 0
	for _, item := range input.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.NotFound("no product found with ID %s", item.ProductID)
			}
			return nil, fmt.Errorf("loading product %s: %w", item.ProductID, err)
		}
		if product.Stock < item.Quantity {
			return nil, apperr.InvalidArgument("not enough stock for product %q: %d requested, %d available",
				product.Name, item.Quantity, product.Stock)
		}
		items = append(items, models.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
		})
		total += product.PriceCents * item.Quantity
	}

	isFraud, fraudReason := s.checkFraud(ctx, input)

	shipping := &models.Shipping{
		CustomerID: input.CustomerID,
		Address:    input.Shipping.Address,
		City:       input.Shipping.City,
		State:      input.Shipping.State,
		Country:    input.Shipping.Country,
		PostalCode: input.Shipping.PostalCode,
		Email:      input.Shipping.Email,
		Phone:      input.Shipping.Phone,
	}
	if err := s.shippings.Create(ctx, shipping); err != nil {
		return nil, fmt.Errorf("creating shipping address: %w", err)
	}

	order := &models.Order{
		CustomerID:        input.CustomerID,
		ShippingAddressID: shipping.ID,
		Items:             items,
		TotalCents:        total,
		Status:            models.OrderPending,
		IsFraudulent:      isFraud,
		FraudReason:       fraudReason,
		RiderNote:         input.RiderNote,
		StatusHistory: []models.OrderStatusChange{{
			Status:    models.OrderPending,
			ChangedAt: time.Now().UTC(),
			ChangedBy: "system",
			Note:      "Order created",
		}},
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	meter.Count("order.created", 1)
	logger.Info("order created",
		"order_id", order.ID, "customer_id", order.CustomerID,
		"total_cents", order.TotalCents, "is_fraudulent", order.IsFraudulent)

	if input.Payment != nil {
		if _, err := s.capture(ctx, order, input.Payment.Method, input.Payment.Details); err != nil {
			logger.Warn("payment capture after order creation failed",
				"order_id", order.ID, "error", err)
		}
	}
	return order, nil
}

// checkFraud is advisory: an unreachable analyzer never blocks order
// creation, it only leaves the order unflagged.
func (s *OrderService) checkFraud(ctx context.Context, input CreateOrderInput) (bool, string) {
	if s.analyzer == nil {
		return false, ""
	}
	result, err := s.analyzer.Analyze(ctx, fraud.Input{
		Address: input.Shipping.Address,
		Email:   input.Shipping.Email,
		Phone:   input.Shipping.Phone,
	})
	if err != nil {
		s.loggerFromContext(ctx).Warn("fraud analysis unavailable, skipping", "error", err)
		return false, ""
	}
	if result.IsFraud {
		observability.MeterFromContext(ctx).Count("order.fraud_flagged", 1, sentry.WithAttributes(
			attribute.String("reason", result.Reason),
		))
	}
	return result.IsFraud, result.Reason
}

// ProcessPayment captures payment for an existing order and, on
// success, moves a pending order to paid.
func (s *OrderService) ProcessPayment(ctx context.Context, orderID uuid.UUID, method models.PaymentMethod, details map[string]any) (*models.Payment, error) {
	span := sentry.StartSpan(ctx,
		"service.order.process_payment",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("ProcessPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if !models.ValidPaymentMethod(string(method)) {
		return nil, apperr.InvalidArgument("unknown payment method %q", method)
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", orderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	return s.capture(ctx, order, method, details)
}

func (s *OrderService) capture(ctx context.Context, order *models.Order, method models.PaymentMethod, details map[string]any) (*models.Payment, error) {
	captureCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	result, err := s.gateway.Capture(captureCtx, order.ID, order.TotalCents, method, details)
	if err != nil {
		return nil, apperr.Upstream(err, "payment gateway unavailable")
	}

	p := &models.Payment{
		OrderID:       order.ID,
		AmountCents:   order.TotalCents,
		Method:        method,
		Status:        result.Status,
		TransactionID: result.TransactionID,
		Details:       details,
	}
	if err := s.payments.CreateForOrder(ctx, p); err != nil {
		return nil, fmt.Errorf("recording payment: %w", err)
	}
	order.PaymentID = &p.ID

	observability.MeterFromContext(ctx).Count("payment.captured", 1, sentry.WithAttributes(
		attribute.String("status", string(result.Status)),
	))

	if result.Status == models.PaymentSuccess && order.Status == models.OrderPending {
		updated, err := s.UpdateStatus(ctx, order.ID, models.OrderPaid, "system", "Payment processed successfully")
		if err != nil {
			return p, fmt.Errorf("marking order paid: %w", err)
		}
		order.Status = updated.Status
		order.StatusHistory = updated.StatusHistory
	}
	return p, nil
}

// UpdateStatus moves an order along the lifecycle. The transition
// table is checked against a fresh read and enforced again at write
// time, so a concurrent writer surfaces as a conflict rather than a
// silently skipped state.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus models.OrderStatus, changedBy, note string) (*models.Order, error) {
	if !models.ValidOrderStatus(string(newStatus)) {
		return nil, apperr.InvalidArgument("unknown order status %q", newStatus)
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", orderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if order.Status == newStatus {
		return nil, apperr.InvalidTransition("order status is already %q", newStatus)
	}
	if !containsStatus(s.transitions[order.Status], newStatus) {
		return nil, apperr.InvalidTransition("cannot change order status from %q to %q", order.Status, newStatus)
	}
	if changedBy == "" {
		changedBy = "system"
	}

	change := models.OrderStatusChange{
		Status:    newStatus,
		ChangedAt: time.Now().UTC(),
		ChangedBy: changedBy,
		Note:      note,
	}
	if err := s.orders.AppendStatus(ctx, orderID, order.Status, change); err != nil {
		if errors.Is(err, db.ErrStaleStatus) {
			return nil, apperr.Conflict("order status changed concurrently, please retry")
		}
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	observability.MeterFromContext(ctx).Count("order.status_changed", 1, sentry.WithAttributes(
		attribute.String("to", string(newStatus)),
	))
	s.loggerFromContext(ctx).Info("order status changed",
		"order_id", orderID, "from", order.Status, "to", newStatus, "changed_by", changedBy)

	order.Status = newStatus
	order.StatusHistory = append(order.StatusHistory, change)
	return order, nil
}

// SetDeliveryInfo attaches courier tracking details to an order.
func (s *OrderService) SetDeliveryInfo(ctx context.Context, orderID uuid.UUID, info models.DeliveryInfo) (*models.Order, error) {
	if info.TrackingNumber == "" {
		return nil, apperr.InvalidArgument("tracking number must not be empty")
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", orderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if err := s.orders.SetDeliveryInfo(ctx, orderID, info); err != nil {
		return nil, fmt.Errorf("storing delivery info: %w", err)
	}
	order.DeliveryInfo = &info
	return order, nil
}

// TrackCourier fetches the live courier status for an order's tracking
// number, serving recent results from cache.
func (s *OrderService) TrackCourier(ctx context.Context, orderID uuid.UUID) (*courier.TrackingInfo, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", orderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if order.DeliveryInfo == nil || order.DeliveryInfo.TrackingNumber == "" {
		return nil, apperr.InvalidState("no tracking number assigned to this order yet")
	}
	trackingNumber := order.DeliveryInfo.TrackingNumber
	logger := s.loggerFromContext(ctx)

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cache.TrackingKey(trackingNumber))
		switch {
		case err == nil:
			var info courier.TrackingInfo
			if err := json.Unmarshal([]byte(raw), &info); err == nil {
				return &info, nil
			}
		case !errors.Is(err, cache.ErrNotFound):
			logger.Warn("tracking cache read failed", "error", err)
		}
	}

	info, err := s.courier.Track(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(info); err == nil {
			if err := s.cache.Set(ctx, cache.TrackingKey(trackingNumber), string(raw), trackingCacheTTL); err != nil {
				logger.Warn("tracking cache write failed", "error", err)
			}
		}
	}
	return info, nil
}

// Get returns a single order by ID.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", orderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	return order, nil
}

// ListCustomerOrders returns all orders of one customer, newest first.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID) ([]*models.Order, error) {
	orders, err := s.orders.List(ctx, db.OrderFilter{CustomerID: &customerID})
	if err != nil {
		return nil, fmt.Errorf("listing customer orders: %w", err)
	}
	return orders, nil
}

func containsStatus[S ~string](statuses []S, status S) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
