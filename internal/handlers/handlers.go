package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhubapp/orderhub/internal/config"
	"github.com/orderhubapp/orderhub/internal/logging"
	"github.com/orderhubapp/orderhub/internal/services"
)

const maxBodyBytes = 1 << 20 // 1 MB

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handlers provides the HTTP request handlers for the order lifecycle API.
type Handlers struct {
	config       *config.Config
	db           *pgxpool.Pool
	orderService *services.OrderService
	orderQueries *services.OrderQueryService
	refunds      *services.RefundService
	returns      *services.ReturnService
	logger       *slog.Logger
}

type Dependencies struct {
	Config            *config.Config
	DB                *pgxpool.Pool
	OrderService      *services.OrderService
	OrderQueryService *services.OrderQueryService
	RefundService     *services.RefundService
	ReturnService     *services.ReturnService
	Logger            *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.OrderQueryService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderQueryService is required")
	}
	if deps.RefundService == nil {
		return nil, fmt.Errorf("handlers dependencies: refundService is required")
	}
	if deps.ReturnService == nil {
		return nil, fmt.Errorf("handlers dependencies: returnService is required")
	}

	return &Handlers{
		config:       deps.Config,
		db:           deps.DB,
		orderService: deps.OrderService,
		orderQueries: deps.OrderQueryService,
		refunds:      deps.RefundService,
		returns:      deps.ReturnService,
		logger:       logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

// decodeBody decodes a JSON request body into dst with a size cap, then runs
// the struct validation tags on the result.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
