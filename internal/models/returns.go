package models

import (
	"time"

	"github.com/google/uuid"
)

type ReturnStatus string

const (
	ReturnInitiated ReturnStatus = "initiated"
	ReturnApproved  ReturnStatus = "approved"
	ReturnRejected  ReturnStatus = "rejected"
	ReturnCompleted ReturnStatus = "completed"
)

func ValidReturnStatus(value string) bool {
	switch ReturnStatus(value) {
	case ReturnInitiated, ReturnApproved, ReturnRejected, ReturnCompleted:
		return true
	}
	return false
}

// ReturnItem carries a product-name snapshot copied from the order at
// initiation time so the audit trail survives catalog edits and deletions.
type ReturnItem struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason,omitempty"`
}

type ReturnStatusChange struct {
	PreviousStatus ReturnStatus `json:"previous_status"`
	NewStatus      ReturnStatus `json:"new_status"`
	ProcessedBy    string       `json:"processed_by"`
	ProcessedAt    time.Time    `json:"processed_at"`
	Notes          string       `json:"notes,omitempty"`
	ActionTaken    string       `json:"action_taken"`
}

// Return is one return request against an order. An order can accumulate any
// number of returns over time as long as the per-product quantities never
// exceed what was ordered.
type Return struct {
	ID            uuid.UUID            `json:"id"`
	OrderID       uuid.UUID            `json:"order_id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	Items         []ReturnItem         `json:"items"`
	Status        ReturnStatus         `json:"status"`
	StatusHistory []ReturnStatusChange `json:"status_history"`
	CreatedAt     time.Time            `json:"created_at"`
}
