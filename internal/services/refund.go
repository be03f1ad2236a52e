package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orderhubapp/orderhub/internal/apperr"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/logging"
	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/observability"
)

// refundTransitions is the full refund state machine. Processed is
// terminal; a rejected refund is still finalized through processed so
// every refund ends in the same state.
var refundTransitions = map[models.RefundStatus][]models.RefundStatus{
	models.RefundRequested: {models.RefundApproved, models.RefundRejected},
	models.RefundApproved:  {models.RefundProcessed},
	models.RefundRejected:  {models.RefundProcessed},
	models.RefundProcessed: {},
}

type refundStore interface {
	Create(ctx context.Context, refund *models.Refund) error
	GetByID(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	FindActive(ctx context.Context, orderID, customerID uuid.UUID) (*models.Refund, error)
	List(ctx context.Context, filter db.RefundFilter) ([]*models.Refund, error)
	AppendStatus(ctx context.Context, refundID uuid.UUID, previous models.RefundStatus, change models.RefundStatusChange) error
	SetReceiptImage(ctx context.Context, refundID uuid.UUID, receiptImage string) error
	Delete(ctx context.Context, refundID uuid.UUID) error
}

type orderGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type customerGetter interface {
	GetByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

type userGetter interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// RefundService manages refund requests: one active refund per
// order/customer pair, a strict approval state machine and a full
// audit trail on every transition.
type RefundService struct {
	refunds   refundStore
	orders    orderGetter
	customers customerGetter
	users     userGetter
	logger    *slog.Logger
}

func NewRefundService(refunds refundStore, orders orderGetter, customers customerGetter, users userGetter, logger *slog.Logger) *RefundService {
	return &RefundService{
		refunds:   refunds,
		orders:    orders,
		customers: customers,
		users:     users,
		logger:    logger.With("component", "refund_service"),
	}
}

func (s *RefundService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CreateRefundInput struct {
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	ProcessedBy *uuid.UUID
	AmountCents int
	Reason      string
	Notes       string
}

// Create opens a refund request in the requested state. The first
// history entry is synthetic so the audit trail covers creation too.
func (s *RefundService) Create(ctx context.Context, input CreateRefundInput) (*models.Refund, error) {
	span := sentry.StartSpan(ctx,
		"service.refund.create",
		sentry.WithOpName("service.refund"),
		sentry.WithDescription("Create"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if input.AmountCents < 1 {
		return nil, apperr.InvalidArgument("refund amount must be at least 1 cent")
	}
	if input.Reason == "" {
		return nil, apperr.InvalidArgument("refund reason must not be empty")
	}

	if _, err := s.orders.GetByID(ctx, input.OrderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", input.OrderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if _, err := s.customers.GetByID(ctx, input.CustomerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no customer found with ID %s", input.CustomerID)
		}
		return nil, fmt.Errorf("loading customer: %w", err)
	}
	processedBy := "system"
	if input.ProcessedBy != nil {
		user, err := s.users.GetByID(ctx, *input.ProcessedBy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.NotFound("no user found with ID %s", *input.ProcessedBy)
			}
			return nil, fmt.Errorf("loading user: %w", err)
		}
		processedBy = user.ID.String()
	}

	if _, err := s.refunds.FindActive(ctx, input.OrderID, input.CustomerID); err == nil {
		return nil, apperr.Conflict("a refund for this order and customer already exists and has not been processed yet")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("checking for active refund: %w", err)
	}

	refund := &models.Refund{
		OrderID:     input.OrderID,
		CustomerID:  input.CustomerID,
		AmountCents: input.AmountCents,
		Reason:      input.Reason,
		Status:      models.RefundRequested,
		StatusHistory: []models.RefundStatusChange{{
			PreviousStatus: models.RefundRequested,
			NewStatus:      models.RefundRequested,
			ProcessedBy:    processedBy,
			ProcessedAt:    time.Now().UTC(),
			Notes:          input.Notes,
			ActionTaken:    "Initial status set to requested",
		}},
	}
	if err := s.refunds.Create(ctx, refund); err != nil {
		return nil, fmt.Errorf("creating refund: %w", err)
	}

	observability.MeterFromContext(ctx).Count("refund.created", 1)
	s.loggerFromContext(ctx).Info("refund requested",
		"refund_id", refund.ID, "order_id", refund.OrderID,
		"customer_id", refund.CustomerID, "amount_cents", refund.AmountCents)
	return refund, nil
}

// UpdateStatus advances a refund through the approval state machine
// and appends the audit entry atomically with the status write.
func (s *RefundService) UpdateStatus(ctx context.Context, refundID uuid.UUID, newStatus models.RefundStatus, processedBy, notes string) (*models.Refund, error) {
	if !models.ValidRefundStatus(string(newStatus)) {
		return nil, apperr.InvalidArgument("unknown refund status %q", newStatus)
	}
	refund, err := s.refunds.GetByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no refund found with ID %s", refundID)
		}
		return nil, fmt.Errorf("loading refund: %w", err)
	}
	if refund.Status == newStatus {
		return nil, apperr.InvalidTransition("refund status is already %q", newStatus)
	}
	if !containsStatus(refundTransitions[refund.Status], newStatus) {
		return nil, apperr.InvalidTransition("cannot change refund status from %q to %q", refund.Status, newStatus)
	}
	if processedBy == "" {
		processedBy = "system"
	}

	now := time.Now().UTC()
	change := models.RefundStatusChange{
		PreviousStatus: refund.Status,
		NewStatus:      newStatus,
		ProcessedBy:    processedBy,
		ProcessedAt:    now,
		Notes:          notes,
		ActionTaken:    fmt.Sprintf("Changed status from %s to %s", refund.Status, newStatus),
	}
	if err := s.refunds.AppendStatus(ctx, refundID, refund.Status, change); err != nil {
		if errors.Is(err, db.ErrStaleStatus) {
			return nil, apperr.Conflict("refund status changed concurrently, please retry")
		}
		return nil, fmt.Errorf("updating refund status: %w", err)
	}

	observability.MeterFromContext(ctx).Count("refund.status_changed", 1, sentry.WithAttributes(
		attribute.String("to", string(newStatus)),
	))
	s.loggerFromContext(ctx).Info("refund status changed",
		"refund_id", refundID, "from", refund.Status, "to", newStatus, "processed_by", processedBy)

	refund.Status = newStatus
	refund.StatusHistory = append(refund.StatusHistory, change)
	if refund.ProcessedAt == nil && newStatus != models.RefundRequested {
		refund.ProcessedAt = &now
	}
	return refund, nil
}

// AttachReceipt stores the receipt image of a processed refund.
// Receipts document the completed payout, so earlier states reject it.
func (s *RefundService) AttachReceipt(ctx context.Context, refundID uuid.UUID, receiptImage string) (*models.Refund, error) {
	if receiptImage == "" {
		return nil, apperr.InvalidArgument("receipt image must not be empty")
	}
	refund, err := s.refunds.GetByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no refund found with ID %s", refundID)
		}
		return nil, fmt.Errorf("loading refund: %w", err)
	}
	if refund.Status != models.RefundProcessed {
		return nil, apperr.InvalidState("receipt image can only be attached once the refund is processed, current status is %q", refund.Status)
	}
	if err := s.refunds.SetReceiptImage(ctx, refundID, receiptImage); err != nil {
		if errors.Is(err, db.ErrStaleStatus) {
			return nil, apperr.Conflict("refund status changed concurrently, please retry")
		}
		return nil, fmt.Errorf("storing receipt image: %w", err)
	}
	refund.ReceiptImage = receiptImage
	return refund, nil
}

// Get returns a single refund by ID.
func (s *RefundService) Get(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	refund, err := s.refunds.GetByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no refund found with ID %s", refundID)
		}
		return nil, fmt.Errorf("loading refund: %w", err)
	}
	return refund, nil
}

// List returns refunds matching the filter, newest first.
func (s *RefundService) List(ctx context.Context, filter db.RefundFilter) ([]*models.Refund, error) {
	refunds, err := s.refunds.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing refunds: %w", err)
	}
	return refunds, nil
}

// Delete removes a refund record entirely. Administrative cleanup
// only; regular workflows finalize through the processed state.
func (s *RefundService) Delete(ctx context.Context, refundID uuid.UUID) error {
	if err := s.refunds.Delete(ctx, refundID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("no refund found with ID %s", refundID)
		}
		return fmt.Errorf("deleting refund: %w", err)
	}
	s.loggerFromContext(ctx).Info("refund deleted", "refund_id", refundID)
	return nil
}
