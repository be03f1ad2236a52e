package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/orderhubapp/orderhub/internal/apperr"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/services"
)

type createRefundRequest struct {
	OrderID     uuid.UUID  `json:"order_id"     validate:"required"`
	CustomerID  uuid.UUID  `json:"customer_id"  validate:"required"`
	ProcessedBy *uuid.UUID `json:"processed_by"`
	AmountCents int        `json:"amount_cents" validate:"min=1"`
	Reason      string     `json:"reason"       validate:"required"`
	Notes       string     `json:"notes"`
}

func (h *Handlers) CreateRefund(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	var req createRefundRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	refund, err := h.refunds.Create(r.Context(), services.CreateRefundInput{
		OrderID:     req.OrderID,
		CustomerID:  req.CustomerID,
		ProcessedBy: req.ProcessedBy,
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusCreated, refund)
}

func (h *Handlers) GetRefund(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	refundID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	refund, err := h.refunds.Get(r.Context(), refundID)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, refund)
}

func (h *Handlers) ListRefunds(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())
	params := r.URL.Query()

	var filter db.RefundFilter
	if raw := strings.TrimSpace(params.Get("order_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, logger, apperr.InvalidArgument("invalid order_id: %q is not a UUID", raw))
			return
		}
		filter.OrderID = &id
	}
	if raw := strings.TrimSpace(params.Get("customer_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, logger, apperr.InvalidArgument("invalid customer_id: %q is not a UUID", raw))
			return
		}
		filter.CustomerID = &id
	}
	filter.ProcessedBy = strings.TrimSpace(params.Get("processed_by"))

	refunds, err := h.refunds.List(r.Context(), filter)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, refunds)
}

type updateRefundStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

func (h *Handlers) UpdateRefundStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	refundID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}
	var req updateRefundStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	refund, err := h.refunds.UpdateStatus(r.Context(), refundID,
		models.RefundStatus(req.Status), ActorFromContext(r.Context()), req.Notes)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, refund)
}

type attachReceiptRequest struct {
	ReceiptImage string `json:"receipt_image" validate:"required"`
}

func (h *Handlers) AttachRefundReceipt(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	refundID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}
	var req attachReceiptRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	refund, err := h.refunds.AttachReceipt(r.Context(), refundID, req.ReceiptImage)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, refund)
}

func (h *Handlers) DeleteRefund(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	refundID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	if err := h.refunds.Delete(r.Context(), refundID); err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, map[string]string{"deleted": refundID.String()})
}
