package models

import (
	"time"

	"github.com/google/uuid"
)

// Reference entities owned by external collaborators (catalog, accounts,
// payments). The lifecycle services only read them by id; the thin shapes
// here carry what order views and audit trails need.

type Product struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
	Images     []string  `json:"images,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Customer struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	IsRegistered bool      `json:"is_registered"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is an internal operator (admin/agent) recorded as processed_by on
// refund and return transitions.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Shipping struct {
	ID               uuid.UUID `json:"id"`
	CustomerID       uuid.UUID `json:"customer_id"`
	Address          string    `json:"address"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Country          string    `json:"country"`
	PostalCode       string    `json:"postal_code"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	IsValidated      bool      `json:"is_validated"`
	ValidationResult string    `json:"validation_result,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCreditCard     PaymentMethod = "credit_card"
	MethodDebitCard      PaymentMethod = "debit_card"
	MethodPaypal         PaymentMethod = "paypal"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodCashOnDelivery PaymentMethod = "cod"
)

func ValidPaymentMethod(value string) bool {
	switch PaymentMethod(value) {
	case MethodCreditCard, MethodDebitCard, MethodPaypal, MethodBankTransfer, MethodCashOnDelivery:
		return true
	}
	return false
}

type Payment struct {
	ID            uuid.UUID      `json:"id"`
	OrderID       uuid.UUID      `json:"order_id"`
	AmountCents   int            `json:"amount_cents"`
	Method        PaymentMethod  `json:"method"`
	Status        PaymentStatus  `json:"status"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
