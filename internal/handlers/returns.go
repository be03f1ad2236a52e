package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/services"
)

type returnItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"   validate:"min=1"`
	Reason    string    `json:"reason"`
}

type initiateReturnRequest struct {
	OrderID    uuid.UUID           `json:"order_id"    validate:"required"`
	CustomerID uuid.UUID           `json:"customer_id" validate:"required"`
	Items      []returnItemRequest `json:"items"       validate:"min=1,dive"`
}

func (h *Handlers) InitiateReturn(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	var req initiateReturnRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	input := services.InitiateReturnInput{
		OrderID:     req.OrderID,
		CustomerID:  req.CustomerID,
		InitiatedBy: ActorFromContext(r.Context()),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, services.ReturnItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Reason:    item.Reason,
		})
	}

	ret, err := h.returns.InitiateReturn(r.Context(), input)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusCreated, ret)
}

func (h *Handlers) GetReturn(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	returnID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	ret, err := h.returns.Get(r.Context(), returnID)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, ret)
}

type updateReturnStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handlers) UpdateReturnStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	returnID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}
	var req updateReturnStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	ret, err := h.returns.UpdateStatus(r.Context(), returnID,
		models.ReturnStatus(req.Status), ActorFromContext(r.Context()), req.Notes)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, ret)
}

func (h *Handlers) OrderReturnSummary(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	orderID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	summary, err := h.returns.OrderReturnSummary(r.Context(), orderID)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, summary)
}

func (h *Handlers) ListCustomerReturns(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	customerID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	returns, err := h.returns.ListCustomerReturns(r.Context(), customerID)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, returns)
}
