package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/orderhubapp/orderhub/internal/apperr"
	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/services"
)

type createOrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"   validate:"min=1"`
}

type shippingRequest struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone"`
}

type paymentRequest struct {
	Method  string         `json:"method" validate:"required"`
	Details map[string]any `json:"details"`
}

type createOrderRequest struct {
	CustomerID uuid.UUID                `json:"customer_id" validate:"required"`
	Items      []createOrderItemRequest `json:"items"       validate:"min=1,dive"`
	Shipping   shippingRequest          `json:"shipping"`
	Payment    *paymentRequest          `json:"payment"`
	RiderNote  string                   `json:"rider_note"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	var req createOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	input := services.CreateOrderInput{
		CustomerID: req.CustomerID,
		RiderNote:  req.RiderNote,
		Shipping: services.ShippingInput{
			Address:    req.Shipping.Address,
			City:       req.Shipping.City,
			State:      req.Shipping.State,
			Country:    req.Shipping.Country,
			PostalCode: req.Shipping.PostalCode,
			Email:      req.Shipping.Email,
			Phone:      req.Shipping.Phone,
		},
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, services.CreateOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	if req.Payment != nil {
		input.Payment = &services.PaymentInput{
			Method:  models.PaymentMethod(req.Payment.Method),
			Details: req.Payment.Details,
		}
	}

	order, err := h.orderService.Create(r.Context(), input)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusCreated, order)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	orderID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	view, err := h.orderQueries.GetOrder(r.Context(), orderID, includeFromQuery(r))
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, view)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	query, err := orderQueryFromRequest(r)
	if err != nil {
		respondError(w, logger, err)
		return
	}

	views, err := h.orderQueries.ListOrders(r.Context(), query, includeFromQuery(r))
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, views)
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	orderID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}
	var req updateOrderStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), orderID,
		models.OrderStatus(req.Status), ActorFromContext(r.Context()), req.Note)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, order)
}

type deliveryInfoRequest struct {
	CourierCompany    string     `json:"courier_company"`
	TrackingNumber    string     `json:"tracking_number"`
	TrackingURL       string     `json:"tracking_url"`
	ShippedAt         *time.Time `json:"shipped_at"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

func (h *Handlers) SetDeliveryInfo(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	orderID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}
	var req deliveryInfoRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	order, err := h.orderService.SetDeliveryInfo(r.Context(), orderID, models.DeliveryInfo{
		CourierCompany:    req.CourierCompany,
		TrackingNumber:    req.TrackingNumber,
		TrackingURL:       req.TrackingURL,
		ShippedAt:         req.ShippedAt,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, order)
}

func (h *Handlers) TrackOrder(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	orderID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	info, err := h.orderService.TrackCourier(r.Context(), orderID)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, info)
}

func (h *Handlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	orderID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}
	var req paymentRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	p, err := h.orderService.ProcessPayment(r.Context(), orderID, models.PaymentMethod(req.Method), req.Details)
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusCreated, p)
}

func (h *Handlers) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	customerID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, logger, err)
		return
	}

	views, err := h.orderQueries.ListOrders(r.Context(),
		services.OrderQuery{CustomerID: &customerID}, includeFromQuery(r))
	if err != nil {
		respondError(w, logger, err)
		return
	}
	respondSuccess(w, logger, http.StatusOK, views)
}

// pathUUID parses a uuid path variable.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("invalid %s: %q is not a UUID", name, raw)
	}
	return id, nil
}

// includeFromQuery reads the include query parameter, a comma-separated
// list of related records to resolve, e.g. ?include=items,customer.
func includeFromQuery(r *http.Request) services.Include {
	var include services.Include
	for _, part := range strings.Split(r.URL.Query().Get("include"), ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "items":
			include.Items = true
		case "customer":
			include.Customer = true
		case "shipping_address", "shipping":
			include.ShippingAddress = true
		case "payment":
			include.Payment = true
		case "refunds":
			include.Refunds = true
		case "returns":
			include.Returns = true
		}
	}
	return include
}

func orderQueryFromRequest(r *http.Request) (services.OrderQuery, error) {
	var query services.OrderQuery
	params := r.URL.Query()

	if raw := strings.TrimSpace(params.Get("customer_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return query, apperr.InvalidArgument("invalid customer_id: %q is not a UUID", raw)
		}
		query.CustomerID = &id
	}
	if raw := strings.TrimSpace(params.Get("status")); raw != "" {
		if !models.ValidOrderStatus(raw) {
			return query, apperr.InvalidArgument("unknown order status %q", raw)
		}
		status := models.OrderStatus(raw)
		query.Status = &status
	}
	query.Email = strings.TrimSpace(params.Get("email"))
	query.Phone = strings.TrimSpace(params.Get("phone"))
	query.CanReturn = params.Get("can_return") == "true"
	return query, nil
}
