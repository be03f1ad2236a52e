package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhubapp/orderhub/internal/models"
)

type RefundStore struct {
	pool *pgxpool.Pool
}

func NewRefundStore(pool *pgxpool.Pool) *RefundStore {
	return &RefundStore{pool: pool}
}

const refundColumns = `id, order_id, customer_id, amount_cents, reason, status,
	processed_at, receipt_image, status_history, created_at`

func (s *RefundStore) Create(ctx context.Context, refund *models.Refund) error {
	historyJSON, err := json.Marshal(refund.StatusHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal status history: %w", err)
	}

	query := `
		INSERT INTO refunds (order_id, customer_id, amount_cents, reason, status, status_history)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	row := s.pool.QueryRow(ctx, query,
		refund.OrderID,
		refund.CustomerID,
		refund.AmountCents,
		refund.Reason,
		string(refund.Status),
		historyJSON,
	)
	return row.Scan(&refund.ID, &refund.CreatedAt)
}

func (s *RefundStore) GetByID(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`
	return scanRefund(s.pool.QueryRow(ctx, query, refundID))
}

// FindActive returns the refund blocking a new request for the order/customer
// pair, i.e. any refund that has not yet reached processed. pgx.ErrNoRows
// means the slot is free.
func (s *RefundStore) FindActive(ctx context.Context, orderID, customerID uuid.UUID) (*models.Refund, error) {
	query := `
		SELECT ` + refundColumns + `
		FROM refunds
		WHERE order_id = $1 AND customer_id = $2 AND status <> 'processed'
		LIMIT 1
	`
	return scanRefund(s.pool.QueryRow(ctx, query, orderID, customerID))
}

type RefundFilter struct {
	OrderID     *uuid.UUID
	CustomerID  *uuid.UUID
	ProcessedBy string
}

func (s *RefundStore) List(ctx context.Context, filter RefundFilter) ([]*models.Refund, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + refundColumns + ` FROM refunds`
	if filter.OrderID != nil {
		conditions = append(conditions, "order_id = "+arg(*filter.OrderID))
	}
	if filter.CustomerID != nil {
		conditions = append(conditions, "customer_id = "+arg(*filter.CustomerID))
	}
	if filter.ProcessedBy != "" {
		// Matches any history entry recorded by the given processor.
		conditions = append(conditions, "status_history @> "+arg(fmt.Sprintf(`[{"processed_by":%q}]`, filter.ProcessedBy))+"::jsonb")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []*models.Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, refund)
	}
	return refunds, rows.Err()
}

// AppendStatus applies a transition with a compare-and-swap on the previous
// status. processed_at is stamped on the first transition out of requested
// and never overwritten afterwards.
func (s *RefundStore) AppendStatus(ctx context.Context, refundID uuid.UUID, previous models.RefundStatus, change models.RefundStatusChange) error {
	entryJSON, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal status change: %w", err)
	}

	query := `
		UPDATE refunds
		SET status = $1,
		    status_history = status_history || $2::jsonb,
		    processed_at = CASE WHEN $1 <> 'requested' THEN COALESCE(processed_at, NOW()) ELSE processed_at END
		WHERE id = $3 AND status = $4
	`
	cmdTag, err := s.pool.Exec(ctx, query, string(change.NewStatus), entryJSON, refundID, string(previous))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrStaleStatus, previous)
	}
	return nil
}

// SetReceiptImage only succeeds on processed refunds; the status condition is
// enforced in the same statement as the write.
func (s *RefundStore) SetReceiptImage(ctx context.Context, refundID uuid.UUID, receiptImage string) error {
	query := `UPDATE refunds SET receipt_image = $1 WHERE id = $2 AND status = 'processed'`
	cmdTag, err := s.pool.Exec(ctx, query, receiptImage, refundID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected processed", ErrStaleStatus)
	}
	return nil
}

// Delete is the administrative hard delete; it bypasses the state machine.
func (s *RefundStore) Delete(ctx context.Context, refundID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `DELETE FROM refunds WHERE id = $1`, refundID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRefund(row pgx.Row) (*models.Refund, error) {
	var (
		refund       models.Refund
		status       string
		processedAt  pgtype.Timestamptz
		receiptImage pgtype.Text
		historyJSON  []byte
	)

	err := row.Scan(
		&refund.ID,
		&refund.OrderID,
		&refund.CustomerID,
		&refund.AmountCents,
		&refund.Reason,
		&status,
		&processedAt,
		&receiptImage,
		&historyJSON,
		&refund.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	refund.Status = models.RefundStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		refund.ProcessedAt = &t
	}
	if receiptImage.Valid {
		refund.ReceiptImage = receiptImage.String
	}
	if err := json.Unmarshal(historyJSON, &refund.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}

	return &refund, nil
}
