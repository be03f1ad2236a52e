package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/orderhubapp/orderhub/internal/config"
	"github.com/orderhubapp/orderhub/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.Use(h.ActorContext)
	r.Use(h.MetricsContext)

	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")
	api.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("orders.list")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	api.HandleFunc("/orders/{id}/status", h.UpdateOrderStatus).Methods("PATCH").Name("orders.status")
	api.HandleFunc("/orders/{id}/delivery", h.SetDeliveryInfo).Methods("PUT").Name("orders.delivery")
	api.HandleFunc("/orders/{id}/tracking", h.TrackOrder).Methods("GET").Name("orders.tracking")
	api.HandleFunc("/orders/{id}/payments", h.ProcessPayment).Methods("POST").Name("orders.payments")
	api.HandleFunc("/orders/{id}/return-summary", h.OrderReturnSummary).Methods("GET").Name("orders.return_summary")

	api.HandleFunc("/refunds", h.CreateRefund).Methods("POST").Name("refunds.create")
	api.HandleFunc("/refunds", h.ListRefunds).Methods("GET").Name("refunds.list")
	api.HandleFunc("/refunds/{id}", h.GetRefund).Methods("GET").Name("refunds.get")
	api.HandleFunc("/refunds/{id}", h.DeleteRefund).Methods("DELETE").Name("refunds.delete")
	api.HandleFunc("/refunds/{id}/status", h.UpdateRefundStatus).Methods("PATCH").Name("refunds.status")
	api.HandleFunc("/refunds/{id}/receipt", h.AttachRefundReceipt).Methods("PUT").Name("refunds.receipt")

	api.HandleFunc("/returns", h.InitiateReturn).Methods("POST").Name("returns.create")
	api.HandleFunc("/returns/{id}", h.GetReturn).Methods("GET").Name("returns.get")
	api.HandleFunc("/returns/{id}/status", h.UpdateReturnStatus).Methods("PATCH").Name("returns.status")

	api.HandleFunc("/customers/{id}/orders", h.ListCustomerOrders).Methods("GET").Name("customers.orders")
	api.HandleFunc("/customers/{id}/returns", h.ListCustomerReturns).Methods("GET").Name("customers.returns")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"fail","error":{"kind":"not_found","message":"no such route"}}`))
	})

	return r
}
