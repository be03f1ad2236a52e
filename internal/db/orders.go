package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhubapp/orderhub/internal/models"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, customer_id, shipping_address_id, payment_id, items, status,
	status_history, total_cents, is_fraudulent, fraud_reason, delivery_info,
	rider_note, created_at, updated_at`

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	historyJSON, err := json.Marshal(order.StatusHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal status history: %w", err)
	}

	var deliveryJSON []byte
	if order.DeliveryInfo != nil {
		deliveryJSON, err = json.Marshal(order.DeliveryInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal delivery info: %w", err)
		}
	}

	query := `
		INSERT INTO orders (customer_id, shipping_address_id, payment_id, items, status,
			status_history, total_cents, is_fraudulent, fraud_reason, delivery_info, rider_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	row := s.pool.QueryRow(ctx, query,
		order.CustomerID,
		order.ShippingAddressID,
		order.PaymentID,
		itemsJSON,
		string(order.Status),
		historyJSON,
		order.TotalCents,
		order.IsFraudulent,
		textOrNull(order.FraudReason),
		deliveryJSON,
		textOrNull(order.RiderNote),
	)
	return row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(s.pool.QueryRow(ctx, query, orderID))
}

// OrderFilter narrows List results. Email matches the linked shipping
// address's email case-insensitively; Phone matches exactly, the way the
// shipping collaborator stores it.
type OrderFilter struct {
	CustomerID   *uuid.UUID
	Status       *models.OrderStatus
	Email        string
	Phone        string
	CreatedAfter *time.Time
}

func (s *OrderStore) List(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + prefixColumns("o.", orderColumns) + ` FROM orders o`
	if filter.Email != "" || filter.Phone != "" {
		query += ` JOIN shippings sh ON sh.id = o.shipping_address_id`
	}

	if filter.CustomerID != nil {
		conditions = append(conditions, "o.customer_id = "+arg(*filter.CustomerID))
	}
	if filter.Status != nil {
		conditions = append(conditions, "o.status = "+arg(string(*filter.Status)))
	}
	if filter.Email != "" {
		conditions = append(conditions, "LOWER(sh.email) = LOWER("+arg(filter.Email)+")")
	}
	if filter.Phone != "" {
		conditions = append(conditions, "sh.phone = "+arg(filter.Phone))
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, "o.created_at >= "+arg(*filter.CreatedAfter))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// AppendStatus sets the new status and appends the history entry in one
// conditional write. The WHERE clause on the previous status is the
// concurrency control: a racing writer leaves zero rows affected and the
// caller gets ErrStaleStatus instead of a lost update.
func (s *OrderStore) AppendStatus(ctx context.Context, orderID uuid.UUID, previous models.OrderStatus, change models.OrderStatusChange) error {
	entryJSON, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal status change: %w", err)
	}

	query := `
		UPDATE orders
		SET status = $1, status_history = status_history || $2::jsonb, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	cmdTag, err := s.pool.Exec(ctx, query, string(change.Status), entryJSON, orderID, string(previous))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrStaleStatus, previous)
	}
	return nil
}

func (s *OrderStore) SetDeliveryInfo(ctx context.Context, orderID uuid.UUID, info models.DeliveryInfo) error {
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery info: %w", err)
	}

	query := `UPDATE orders SET delivery_info = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := s.pool.Exec(ctx, query, infoJSON, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order        models.Order
		paymentID    pgtype.UUID
		itemsJSON    []byte
		historyJSON  []byte
		fraudReason  pgtype.Text
		deliveryJSON []byte
		riderNote    pgtype.Text
		status       string
	)

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.ShippingAddressID,
		&paymentID,
		&itemsJSON,
		&status,
		&historyJSON,
		&order.TotalCents,
		&order.IsFraudulent,
		&fraudReason,
		&deliveryJSON,
		&riderNote,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatus(status)
	if paymentID.Valid {
		id := uuid.UUID(paymentID.Bytes)
		order.PaymentID = &id
	}
	if fraudReason.Valid {
		order.FraudReason = fraudReason.String
	}
	if riderNote.Valid {
		order.RiderNote = riderNote.String
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &order.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}
	if deliveryJSON != nil {
		order.DeliveryInfo = &models.DeliveryInfo{}
		if err := json.Unmarshal(deliveryJSON, order.DeliveryInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal delivery info: %w", err)
		}
	}

	return &order, nil
}

func textOrNull(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
