package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhubapp/orderhub/internal/models"
)

type ReturnStore struct {
	pool *pgxpool.Pool
}

func NewReturnStore(pool *pgxpool.Pool) *ReturnStore {
	return &ReturnStore{pool: pool}
}

const returnColumns = `id, order_id, customer_id, items, status, status_history, created_at`

func (s *ReturnStore) Create(ctx context.Context, ret *models.Return) error {
	itemsJSON, err := json.Marshal(ret.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal return items: %w", err)
	}
	historyJSON, err := json.Marshal(ret.StatusHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal status history: %w", err)
	}

	query := `
		INSERT INTO returns (order_id, customer_id, items, status, status_history)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	row := s.pool.QueryRow(ctx, query,
		ret.OrderID,
		ret.CustomerID,
		itemsJSON,
		string(ret.Status),
		historyJSON,
	)
	return row.Scan(&ret.ID, &ret.CreatedAt)
}

func (s *ReturnStore) GetByID(ctx context.Context, returnID uuid.UUID) (*models.Return, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE id = $1`
	return scanReturn(s.pool.QueryRow(ctx, query, returnID))
}

// ListByOrder loads every return ever filed against the order, regardless of
// status. The reconciler counts all of them: a rejected return still holds
// its quantities until an operator deletes it.
func (s *ReturnStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Return, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE order_id = $1 ORDER BY created_at ASC`
	return s.list(ctx, query, orderID)
}

func (s *ReturnStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Return, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE customer_id = $1 ORDER BY created_at DESC`
	return s.list(ctx, query, customerID)
}

func (s *ReturnStore) list(ctx context.Context, query string, args ...any) ([]*models.Return, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returns []*models.Return
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

func (s *ReturnStore) AppendStatus(ctx context.Context, returnID uuid.UUID, previous models.ReturnStatus, change models.ReturnStatusChange) error {
	entryJSON, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal status change: %w", err)
	}

	query := `
		UPDATE returns
		SET status = $1, status_history = status_history || $2::jsonb
		WHERE id = $3 AND status = $4
	`
	cmdTag, err := s.pool.Exec(ctx, query, string(change.NewStatus), entryJSON, returnID, string(previous))
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrStaleStatus, previous)
	}
	return nil
}

func scanReturn(row pgx.Row) (*models.Return, error) {
	var (
		ret         models.Return
		itemsJSON   []byte
		status      string
		historyJSON []byte
	)

	err := row.Scan(
		&ret.ID,
		&ret.OrderID,
		&ret.CustomerID,
		&itemsJSON,
		&status,
		&historyJSON,
		&ret.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ret.Status = models.ReturnStatus(status)
	if err := json.Unmarshal(itemsJSON, &ret.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal return items: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &ret.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}

	return &ret, nil
}
