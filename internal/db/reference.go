package db

// Stores for the reference entities owned by external collaborators. The
// lifecycle services mostly read these by id; shippings and payments are also
// written as part of order creation.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhubapp/orderhub/internal/models"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

func (s *ProductStore) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	query := `SELECT id, name, price_cents, stock, images, created_at FROM products WHERE id = $1`
	return scanProduct(s.pool.QueryRow(ctx, query, productID))
}

// GetByIDs loads products in one round trip for view hydration. Missing ids
// are simply absent from the result map.
func (s *ProductStore) GetByIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]*models.Product{}, nil
	}

	query := `SELECT id, name, price_cents, stock, images, created_at FROM products WHERE id = ANY($1)`
	rows, err := s.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[uuid.UUID]*models.Product, len(productIDs))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[product.ID] = product
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		product    models.Product
		imagesJSON []byte
	)
	if err := row.Scan(&product.ID, &product.Name, &product.PriceCents, &product.Stock, &imagesJSON, &product.CreatedAt); err != nil {
		return nil, err
	}
	if imagesJSON != nil {
		if err := json.Unmarshal(imagesJSON, &product.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product images: %w", err)
		}
	}
	return &product, nil
}

type CustomerStore struct {
	pool *pgxpool.Pool
}

func NewCustomerStore(pool *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{pool: pool}
}

func (s *CustomerStore) GetByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	query := `SELECT id, name, email, phone, is_registered, created_at FROM customers WHERE id = $1`
	var customer models.Customer
	err := s.pool.QueryRow(ctx, query, customerID).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.IsRegistered,
		&customer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT id, name, email, role, created_at FROM users WHERE id = $1`
	var user models.User
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type ShippingStore struct {
	pool *pgxpool.Pool
}

func NewShippingStore(pool *pgxpool.Pool) *ShippingStore {
	return &ShippingStore{pool: pool}
}

func (s *ShippingStore) Create(ctx context.Context, shipping *models.Shipping) error {
	query := `
		INSERT INTO shippings (customer_id, address, city, state, country, postal_code,
			email, phone, is_validated, validation_result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	row := s.pool.QueryRow(ctx, query,
		shipping.CustomerID,
		shipping.Address,
		shipping.City,
		shipping.State,
		shipping.Country,
		shipping.PostalCode,
		shipping.Email,
		shipping.Phone,
		shipping.IsValidated,
		textOrNull(shipping.ValidationResult),
	)
	return row.Scan(&shipping.ID, &shipping.CreatedAt)
}

func (s *ShippingStore) GetByID(ctx context.Context, shippingID uuid.UUID) (*models.Shipping, error) {
	query := `
		SELECT id, customer_id, address, city, state, country, postal_code,
			email, phone, is_validated, validation_result, created_at
		FROM shippings WHERE id = $1
	`
	var (
		shipping         models.Shipping
		validationResult pgtype.Text
	)
	err := s.pool.QueryRow(ctx, query, shippingID).Scan(
		&shipping.ID,
		&shipping.CustomerID,
		&shipping.Address,
		&shipping.City,
		&shipping.State,
		&shipping.Country,
		&shipping.PostalCode,
		&shipping.Email,
		&shipping.Phone,
		&shipping.IsValidated,
		&validationResult,
		&shipping.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if validationResult.Valid {
		shipping.ValidationResult = validationResult.String
	}
	return &shipping, nil
}

type PaymentStore struct {
	pool *pgxpool.Pool
}

func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// CreateForOrder inserts the payment and links it to its order in one
// transaction, so a failed link never leaves an orphaned payment row.
func (s *PaymentStore) CreateForOrder(ctx context.Context, payment *models.Payment) error {
	detailsJSON, err := json.Marshal(payment.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal payment details: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `
		INSERT INTO payments (order_id, amount_cents, method, status, transaction_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	row := tx.QueryRow(ctx, insert,
		payment.OrderID,
		payment.AmountCents,
		string(payment.Method),
		string(payment.Status),
		textOrNull(payment.TransactionID),
		detailsJSON,
	)
	if err := row.Scan(&payment.ID, &payment.CreatedAt); err != nil {
		return err
	}

	link := `UPDATE orders SET payment_id = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := tx.Exec(ctx, link, payment.ID, payment.OrderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

func (s *PaymentStore) GetByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	query := `SELECT id, order_id, amount_cents, method, status, transaction_id, details, created_at FROM payments WHERE id = $1`
	var (
		payment       models.Payment
		method        string
		status        string
		transactionID pgtype.Text
		detailsJSON   []byte
	)
	err := s.pool.QueryRow(ctx, query, paymentID).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.AmountCents,
		&method,
		&status,
		&transactionID,
		&detailsJSON,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	payment.Method = models.PaymentMethod(method)
	payment.Status = models.PaymentStatus(status)
	if transactionID.Valid {
		payment.TransactionID = transactionID.String
	}
	if detailsJSON != nil {
		if err := json.Unmarshal(detailsJSON, &payment.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment details: %w", err)
		}
	}
	return &payment, nil
}
