package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orderhubapp/orderhub/internal/apperr"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/logging"
	"github.com/orderhubapp/orderhub/internal/models"
)

type orderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter db.OrderFilter) ([]*models.Order, error)
}

type productBatchGetter interface {
	GetByIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error)
}

type shippingGetter interface {
	GetByID(ctx context.Context, shippingID uuid.UUID) (*models.Shipping, error)
}

type paymentGetter interface {
	GetByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
}

type refundLister interface {
	List(ctx context.Context, filter db.RefundFilter) ([]*models.Refund, error)
}

type returnLister interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Return, error)
}

// Include selects which related records to resolve into an order view.
// Every flag defaults to off; callers pay only for what they ask for.
type Include struct {
	Items           bool
	Customer        bool
	ShippingAddress bool
	Payment         bool
	Refunds         bool
	Returns         bool
}

// OrderQuery filters an order listing. CanReturn keeps only orders
// created within the return window, regardless of their current status.
type OrderQuery struct {
	CustomerID *uuid.UUID
	Status     *models.OrderStatus
	Email      string
	Phone      string
	CanReturn  bool
}

// OrderQueryService composes order read views: base order data plus
// the related records a caller opts into. It shares one filter and
// projection path between single-order and list reads.
type OrderQueryService struct {
	orders       orderReader
	products     productBatchGetter
	customers    customerGetter
	shippings    shippingGetter
	payments     paymentGetter
	refunds      refundLister
	returns      returnLister
	returnWindow time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

func NewOrderQueryService(
	orders orderReader,
	products productBatchGetter,
	customers customerGetter,
	shippings shippingGetter,
	payments paymentGetter,
	refunds refundLister,
	returns returnLister,
	returnWindow time.Duration,
	logger *slog.Logger,
) *OrderQueryService {
	return &OrderQueryService{
		orders:       orders,
		products:     products,
		customers:    customers,
		shippings:    shippings,
		payments:     payments,
		refunds:      refunds,
		returns:      returns,
		returnWindow: returnWindow,
		now:          time.Now,
		logger:       logger.With("component", "order_query_service"),
	}
}

func (s *OrderQueryService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// ProductView is the catalog subset exposed on order views. Stock and
// other operational fields stay internal.
type ProductView struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Images     []string  `json:"images,omitempty"`
}

type ItemView struct {
	ProductID      uuid.UUID    `json:"product_id"`
	ProductName    string       `json:"product_name"`
	Quantity       int          `json:"quantity"`
	UnitPriceCents int          `json:"unit_price_cents"`
	Product        *ProductView `json:"product,omitempty"`
}

type CustomerView struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

type ShippingView struct {
	ID         uuid.UUID `json:"id"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postal_code"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
}

type PaymentView struct {
	ID            uuid.UUID            `json:"id"`
	AmountCents   int                  `json:"amount_cents"`
	Method        models.PaymentMethod `json:"method"`
	Status        models.PaymentStatus `json:"status"`
	TransactionID string               `json:"transaction_id,omitempty"`
}

type RefundView struct {
	ID          uuid.UUID           `json:"id"`
	AmountCents int                 `json:"amount_cents"`
	Reason      string              `json:"reason"`
	Status      models.RefundStatus `json:"status"`
	ProcessedAt *time.Time          `json:"processed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type ReturnView struct {
	ID        uuid.UUID           `json:"id"`
	Status    models.ReturnStatus `json:"status"`
	Items     []models.ReturnItem `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
}

// OrderView is an order plus whatever related records were included.
// Refunds and Returns are pointers to slices so an included-but-empty
// collection serializes as [] while an excluded one is absent.
type OrderView struct {
	ID            uuid.UUID                  `json:"id"`
	CustomerID    uuid.UUID                  `json:"customer_id"`
	Status        models.OrderStatus         `json:"status"`
	TotalCents    int                        `json:"total_cents"`
	IsFraudulent  bool                       `json:"is_fraudulent"`
	FraudReason   string                     `json:"fraud_reason,omitempty"`
	RiderNote     string                     `json:"rider_note,omitempty"`
	DeliveryInfo  *models.DeliveryInfo       `json:"delivery_info,omitempty"`
	StatusHistory []models.OrderStatusChange `json:"status_history"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`

	Items           []ItemView    `json:"items,omitempty"`
	Customer        *CustomerView `json:"customer,omitempty"`
	ShippingAddress *ShippingView `json:"shipping_address,omitempty"`
	Payment         *PaymentView  `json:"payment,omitempty"`
	Refunds         *[]RefundView `json:"refunds,omitempty"`
	Returns         *[]ReturnView `json:"returns,omitempty"`
}

// GetOrder returns one order hydrated per the include flags.
func (s *OrderQueryService) GetOrder(ctx context.Context, orderID uuid.UUID, include Include) (*OrderView, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", orderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	products, err := s.resolveProducts(ctx, []*models.Order{order}, include)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, order, include, products)
}

// ListOrders returns all orders matching the query, newest first, each
// hydrated per the include flags. Product lookups are batched across
// the whole result set.
func (s *OrderQueryService) ListOrders(ctx context.Context, query OrderQuery, include Include) ([]*OrderView, error) {
	filter := db.OrderFilter{
		CustomerID: query.CustomerID,
		Status:     query.Status,
		Email:      query.Email,
		Phone:      query.Phone,
	}
	if query.CanReturn {
		windowStart := s.now().UTC().Add(-s.returnWindow)
		filter.CreatedAfter = &windowStart
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	products, err := s.resolveProducts(ctx, orders, include)
	if err != nil {
		return nil, err
	}

	views := make([]*OrderView, 0, len(orders))
	for _, order := range orders {
		view, err := s.hydrate(ctx, order, include, products)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *OrderQueryService) resolveProducts(ctx context.Context, orders []*models.Order, include Include) (map[uuid.UUID]*models.Product, error) {
	if !include.Items {
		return nil, nil
	}
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, order := range orders {
		for _, item := range order.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				ids = append(ids, item.ProductID)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	return products, nil
}

// hydrate builds the view for one order. Missing references are
// tolerated: a deleted product or customer leaves that sub-view absent
// while the order's own snapshot data still renders.
func (s *OrderQueryService) hydrate(ctx context.Context, order *models.Order, include Include, products map[uuid.UUID]*models.Product) (*OrderView, error) {
	view := &OrderView{
		ID:            order.ID,
		CustomerID:    order.CustomerID,
		Status:        order.Status,
		TotalCents:    order.TotalCents,
		IsFraudulent:  order.IsFraudulent,
		FraudReason:   order.FraudReason,
		RiderNote:     order.RiderNote,
		DeliveryInfo:  order.DeliveryInfo,
		StatusHistory: order.StatusHistory,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}

	if include.Items {
		items := make([]ItemView, 0, len(order.Items))
		for _, item := range order.Items {
			itemView := ItemView{
				ProductID:      item.ProductID,
				ProductName:    item.ProductName,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			}
			if product, ok := products[item.ProductID]; ok {
				itemView.Product = &ProductView{
					ID:         product.ID,
					Name:       product.Name,
					PriceCents: product.PriceCents,
					Images:     product.Images,
				}
			}
			items = append(items, itemView)
		}
		view.Items = items
	}

	if include.Customer {
		customer, err := s.customers.GetByID(ctx, order.CustomerID)
		switch {
		case err == nil:
			view.Customer = &CustomerView{
				ID:    customer.ID,
				Name:  customer.Name,
				Email: customer.Email,
				Phone: customer.Phone,
			}
		case errors.Is(err, pgx.ErrNoRows):
			s.loggerFromContext(ctx).Warn("order references missing customer",
				"order_id", order.ID, "customer_id", order.CustomerID)
		default:
			return nil, fmt.Errorf("loading customer: %w", err)
		}
	}

	if include.ShippingAddress {
		shipping, err := s.shippings.GetByID(ctx, order.ShippingAddressID)
		switch {
		case err == nil:
			view.ShippingAddress = &ShippingView{
				ID:         shipping.ID,
				Address:    shipping.Address,
				City:       shipping.City,
				State:      shipping.State,
				Country:    shipping.Country,
				PostalCode: shipping.PostalCode,
				Email:      shipping.Email,
				Phone:      shipping.Phone,
			}
		case errors.Is(err, pgx.ErrNoRows):
			s.loggerFromContext(ctx).Warn("order references missing shipping address",
				"order_id", order.ID, "shipping_address_id", order.ShippingAddressID)
		default:
			return nil, fmt.Errorf("loading shipping address: %w", err)
		}
	}

	if include.Payment && order.PaymentID != nil {
		p, err := s.payments.GetByID(ctx, *order.PaymentID)
		switch {
		case err == nil:
			view.Payment = &PaymentView{
				ID:            p.ID,
				AmountCents:   p.AmountCents,
				Method:        p.Method,
				Status:        p.Status,
				TransactionID: p.TransactionID,
			}
		case errors.Is(err, pgx.ErrNoRows):
			s.loggerFromContext(ctx).Warn("order references missing payment",
				"order_id", order.ID, "payment_id", *order.PaymentID)
		default:
			return nil, fmt.Errorf("loading payment: %w", err)
		}
	}

	if include.Refunds {
		refunds, err := s.refunds.List(ctx, db.RefundFilter{OrderID: &order.ID})
		if err != nil {
			return nil, fmt.Errorf("loading refunds: %w", err)
		}
		refundViews := make([]RefundView, 0, len(refunds))
		for _, refund := range refunds {
			refundViews = append(refundViews, RefundView{
				ID:          refund.ID,
				AmountCents: refund.AmountCents,
				Reason:      refund.Reason,
				Status:      refund.Status,
				ProcessedAt: refund.ProcessedAt,
				CreatedAt:   refund.CreatedAt,
			})
		}
		view.Refunds = &refundViews
	}

	if include.Returns {
		returns, err := s.returns.ListByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("loading returns: %w", err)
		}
		returnViews := make([]ReturnView, 0, len(returns))
		for _, ret := range returns {
			returnViews = append(returnViews, ReturnView{
				ID:        ret.ID,
				Status:    ret.Status,
				Items:     ret.Items,
				CreatedAt: ret.CreatedAt,
			})
		}
		view.Returns = &returnViews
	}

	return view, nil
}
