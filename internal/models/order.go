package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether value names a known order status.
func ValidOrderStatus(value string) bool {
	switch OrderStatus(value) {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// OrderItem is an immutable snapshot taken at checkout. ProductName and
// UnitPriceCents are copied from the product record so later catalog edits
// never rewrite what the customer actually ordered.
type OrderItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

type OrderStatusChange struct {
	Status    OrderStatus `json:"status"`
	ChangedAt time.Time   `json:"changed_at"`
	ChangedBy string      `json:"changed_by"`
	Note      string      `json:"note,omitempty"`
}

type DeliveryInfo struct {
	CourierCompany    string     `json:"courier_company,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// Order is the aggregate root for its items and status history. Refunds and
// returns reference an order by id but live as independent aggregates.
type Order struct {
	ID                uuid.UUID           `json:"id"`
	CustomerID        uuid.UUID           `json:"customer_id"`
	Items             []OrderItem         `json:"items"`
	ShippingAddressID uuid.UUID           `json:"shipping_address_id"`
	PaymentID         *uuid.UUID          `json:"payment_id,omitempty"`
	Status            OrderStatus         `json:"status"`
	StatusHistory     []OrderStatusChange `json:"status_history"`
	TotalCents        int                 `json:"total_cents"`
	IsFraudulent      bool                `json:"is_fraudulent"`
	FraudReason       string              `json:"fraud_reason,omitempty"`
	DeliveryInfo      *DeliveryInfo       `json:"delivery_info,omitempty"`
	RiderNote         string              `json:"rider_note,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Item returns the ordered item for the given product, or nil when the
// product was not part of this order.
func (o *Order) Item(productID uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}
