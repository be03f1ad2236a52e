package models

import (
	"time"

	"github.com/google/uuid"
)

type RefundStatus string

const (
	RefundRequested RefundStatus = "requested"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
	RefundProcessed RefundStatus = "processed"
)

func ValidRefundStatus(value string) bool {
	switch RefundStatus(value) {
	case RefundRequested, RefundApproved, RefundRejected, RefundProcessed:
		return true
	}
	return false
}

// RefundStatusChange records one transition. The first entry of every refund
// is a synthetic self-transition documenting creation.
type RefundStatusChange struct {
	PreviousStatus RefundStatus `json:"previous_status"`
	NewStatus      RefundStatus `json:"new_status"`
	ProcessedBy    string       `json:"processed_by"`
	ProcessedAt    time.Time    `json:"processed_at"`
	Notes          string       `json:"notes,omitempty"`
	ActionTaken    string       `json:"action_taken"`
}

type Refund struct {
	ID            uuid.UUID            `json:"id"`
	OrderID       uuid.UUID            `json:"order_id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	AmountCents   int                  `json:"amount_cents"`
	Reason        string               `json:"reason"`
	Status        RefundStatus         `json:"status"`
	ProcessedAt   *time.Time           `json:"processed_at,omitempty"`
	ReceiptImage  string               `json:"receipt_image,omitempty"`
	StatusHistory []RefundStatusChange `json:"status_history"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Active reports whether the refund still blocks a new refund for the same
// order/customer pair. Only the terminal processed state releases the slot.
func (r *Refund) Active() bool {
	return r.Status != RefundProcessed
}
