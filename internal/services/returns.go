package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orderhubapp/orderhub/internal/apperr"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/lock"
	"github.com/orderhubapp/orderhub/internal/logging"
	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/observability"
)

const returnLockTTL = 10 * time.Second

// returnTransitions mirrors the refund machine's shape but ends at
// completed: rejected and completed are terminal.
var returnTransitions = map[models.ReturnStatus][]models.ReturnStatus{
	models.ReturnInitiated: {models.ReturnApproved, models.ReturnRejected},
	models.ReturnApproved:  {models.ReturnCompleted},
	models.ReturnRejected:  {},
	models.ReturnCompleted: {},
}

type returnStore interface {
	Create(ctx context.Context, ret *models.Return) error
	GetByID(ctx context.Context, returnID uuid.UUID) (*models.Return, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Return, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Return, error)
	AppendStatus(ctx context.Context, returnID uuid.UUID, previous models.ReturnStatus, change models.ReturnStatusChange) error
}

// ReturnService manages return requests against delivered orders. Its
// core job is the quantity ledger: across any number of returns, the
// per-product sum may never exceed what the order holds.
type ReturnService struct {
	returns returnStore
	orders  orderGetter
	locker  lock.Locker
	logger  *slog.Logger
}

func NewReturnService(returns returnStore, orders orderGetter, locker lock.Locker, logger *slog.Logger) *ReturnService {
	return &ReturnService{
		returns: returns,
		orders:  orders,
		locker:  locker,
		logger:  logger.With("component", "return_service"),
	}
}

func (s *ReturnService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type ReturnItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Reason    string
}

type InitiateReturnInput struct {
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	Items       []ReturnItemInput
	InitiatedBy string
}

// InitiateReturn validates a new return request against the order and
// all previously recorded returns, then records it in the initiated
// state. The per-order lock keeps the read-validate-insert sequence
// atomic against concurrent initiations for the same order.
func (s *ReturnService) InitiateReturn(ctx context.Context, input InitiateReturnInput) (*models.Return, error) {
	span := sentry.StartSpan(ctx,
		"service.return.initiate",
		sentry.WithOpName("service.return"),
		sentry.WithDescription("InitiateReturn"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if len(input.Items) == 0 {
		return nil, apperr.InvalidArgument("return must contain at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, apperr.InvalidArgument("return quantity must be at least 1")
		}
		if seen[item.ProductID] {
			return nil, apperr.InvalidArgument("product %s appears more than once in the return", item.ProductID)
		}
		seen[item.ProductID] = true
	}

	release, err := s.locker.Acquire(ctx, lock.ReturnKey(input.OrderID.String()), returnLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring return lock for order %s: %w", input.OrderID, err)
	}
	defer release()

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", input.OrderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if order.Status != models.OrderDelivered {
		return nil, apperr.InvalidState("cannot initiate return: order has not been delivered yet (status %q)", order.Status)
	}
	if order.CustomerID != input.CustomerID {
		return nil, apperr.Forbidden("order %s does not belong to this customer", input.OrderID)
	}

	prior, err := s.returns.ListByOrder(ctx, input.OrderID)
	if err != nil {
		return nil, fmt.Errorf("loading prior returns: %w", err)
	}
	ledger := returnedQuantities(prior)

	items := make([]models.ReturnItem, 0, len(input.Items))
	var noteParts []string
	for _, item := range input.Items {
		ordered := order.Item(item.ProductID)
		if ordered == nil {
			return nil, apperr.InvalidArgument("product %s is not part of order %s", item.ProductID, input.OrderID)
		}
		alreadyReturned := ledger[item.ProductID]
		available := ordered.Quantity - alreadyReturned
		if item.Quantity > available {
			return nil, apperr.InvalidArgument(
				"cannot return %d of product %q: only %d of %d ordered units remain returnable (%d already returned)",
				item.Quantity, ordered.ProductName, available, ordered.Quantity, alreadyReturned)
		}
		items = append(items, models.ReturnItem{
			ProductID:   item.ProductID,
			ProductName: ordered.ProductName,
			Quantity:    item.Quantity,
			Reason:      item.Reason,
		})
		noteParts = append(noteParts, fmt.Sprintf("%dx %s", item.Quantity, ordered.ProductName))
	}

	initiatedBy := input.InitiatedBy
	if initiatedBy == "" {
		initiatedBy = "system"
	}
	ret := &models.Return{
		OrderID:    input.OrderID,
		CustomerID: input.CustomerID,
		Items:      items,
		Status:     models.ReturnInitiated,
		StatusHistory: []models.ReturnStatusChange{{
			PreviousStatus: models.ReturnInitiated,
			NewStatus:      models.ReturnInitiated,
			ProcessedBy:    initiatedBy,
			ProcessedAt:    time.Now().UTC(),
			Notes:          strings.Join(noteParts, ", "),
			ActionTaken:    "Return initiated",
		}},
	}
	if err := s.returns.Create(ctx, ret); err != nil {
		return nil, fmt.Errorf("creating return: %w", err)
	}

	observability.MeterFromContext(ctx).Count("return.initiated", 1)
	s.loggerFromContext(ctx).Info("return initiated",
		"return_id", ret.ID, "order_id", ret.OrderID,
		"customer_id", ret.CustomerID, "item_count", len(ret.Items))
	return ret, nil
}

// returnedQuantities folds all returns of an order into a per-product
// quantity ledger. Every return counts regardless of status: rejected
// and in-flight requests keep holding their quantities so a customer
// cannot oversubscribe an order by re-requesting while one is pending.
func returnedQuantities(returns []*models.Return) map[uuid.UUID]int {
	ledger := make(map[uuid.UUID]int)
	for _, ret := range returns {
		for _, item := range ret.Items {
			ledger[item.ProductID] += item.Quantity
		}
	}
	return ledger
}

// ItemReturnSummary reports, for one ordered product, how much has
// been returned so far and how much is still returnable.
type ItemReturnSummary struct {
	ProductID         uuid.UUID `json:"product_id"`
	ProductName       string    `json:"product_name"`
	OrderedQuantity   int       `json:"ordered_quantity"`
	ReturnedQuantity  int       `json:"returned_quantity"`
	AvailableToReturn int       `json:"available_to_return"`
}

// OrderReturnSummary computes the per-product return ledger of an
// order. It uses the same fold as InitiateReturn, so the summary
// always agrees with what a new return would be validated against.
func (s *ReturnService) OrderReturnSummary(ctx context.Context, orderID uuid.UUID) ([]ItemReturnSummary, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no order found with ID %s", orderID)
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	returns, err := s.returns.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading returns: %w", err)
	}
	ledger := returnedQuantities(returns)

	summary := make([]ItemReturnSummary, 0, len(order.Items))
	for _, item := range order.Items {
		returned := ledger[item.ProductID]
		summary = append(summary, ItemReturnSummary{
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			OrderedQuantity:   item.Quantity,
			ReturnedQuantity:  returned,
			AvailableToReturn: item.Quantity - returned,
		})
	}
	return summary, nil
}

// UpdateStatus advances a return through its state machine.
func (s *ReturnService) UpdateStatus(ctx context.Context, returnID uuid.UUID, newStatus models.ReturnStatus, processedBy, notes string) (*models.Return, error) {
	if !models.ValidReturnStatus(string(newStatus)) {
		return nil, apperr.InvalidArgument("unknown return status %q", newStatus)
	}
	ret, err := s.returns.GetByID(ctx, returnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no return found with ID %s", returnID)
		}
		return nil, fmt.Errorf("loading return: %w", err)
	}
	if ret.Status == newStatus {
		return nil, apperr.InvalidTransition("return status is already %q", newStatus)
	}
	if !containsStatus(returnTransitions[ret.Status], newStatus) {
		return nil, apperr.InvalidTransition("cannot change return status from %q to %q", ret.Status, newStatus)
	}
	if processedBy == "" {
		processedBy = "system"
	}

	change := models.ReturnStatusChange{
		PreviousStatus: ret.Status,
		NewStatus:      newStatus,
		ProcessedBy:    processedBy,
		ProcessedAt:    time.Now().UTC(),
		Notes:          notes,
		ActionTaken:    fmt.Sprintf("Changed status from %s to %s", ret.Status, newStatus),
	}
	if err := s.returns.AppendStatus(ctx, returnID, ret.Status, change); err != nil {
		if errors.Is(err, db.ErrStaleStatus) {
			return nil, apperr.Conflict("return status changed concurrently, please retry")
		}
		return nil, fmt.Errorf("updating return status: %w", err)
	}

	observability.MeterFromContext(ctx).Count("return.status_changed", 1, sentry.WithAttributes(
		attribute.String("to", string(newStatus)),
	))
	s.loggerFromContext(ctx).Info("return status changed",
		"return_id", returnID, "from", ret.Status, "to", newStatus, "processed_by", processedBy)

	ret.Status = newStatus
	ret.StatusHistory = append(ret.StatusHistory, change)
	return ret, nil
}

// Get returns a single return request by ID.
func (s *ReturnService) Get(ctx context.Context, returnID uuid.UUID) (*models.Return, error) {
	ret, err := s.returns.GetByID(ctx, returnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no return found with ID %s", returnID)
		}
		return nil, fmt.Errorf("loading return: %w", err)
	}
	return ret, nil
}

// ListCustomerReturns returns all returns of one customer, newest first.
func (s *ReturnService) ListCustomerReturns(ctx context.Context, customerID uuid.UUID) ([]*models.Return, error) {
	returns, err := s.returns.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing customer returns: %w", err)
	}
	return returns, nil
}
