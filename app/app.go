package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhubapp/orderhub/internal/cache"
	"github.com/orderhubapp/orderhub/internal/config"
	"github.com/orderhubapp/orderhub/internal/courier"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/fraud"
	"github.com/orderhubapp/orderhub/internal/handlers"
	"github.com/orderhubapp/orderhub/internal/lock"
	"github.com/orderhubapp/orderhub/internal/models"
	"github.com/orderhubapp/orderhub/internal/observability"
	"github.com/orderhubapp/orderhub/internal/payment"
	"github.com/orderhubapp/orderhub/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Locker        lock.Locker
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Warn("failed to initialize sentry, continuing without it", "error", err)
		}
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	locker, err := lock.NewLocker(lock.Config{
		Provider:              cfg.LockProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize locker: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	refundStore := db.NewRefundStore(database)
	returnStore := db.NewReturnStore(database)
	productStore := db.NewProductStore(database)
	customerStore := db.NewCustomerStore(database)
	userStore := db.NewUserStore(database)
	shippingStore := db.NewShippingStore(database)
	paymentStore := db.NewPaymentStore(database)

	gateway := payment.NewSimulatedGateway(cfg.PaymentSuccessRate)
	courierClient := courier.NewClient(cfg.CourierAPIBaseURL, observability.NewHTTPClient(cfg.CourierTimeout))

	var analyzer *fraud.Analyzer
	if cfg.GeocodeAPIKey != "" {
		analyzer = fraud.NewAnalyzer(cfg.GeocodeAPIKey, observability.NewHTTPClient(cfg.GeocodeTimeout))
	}

	orderService := services.NewOrderService(
		orderStore,
		productStore,
		shippingStore,
		paymentStore,
		gateway,
		fraudAnalyzerOrNil(analyzer),
		courierClient,
		cacheProvider,
		cancelableFromStatuses(cfg.OrderCancelableFrom),
		logger,
	)
	orderQueryService := services.NewOrderQueryService(
		orderStore,
		productStore,
		customerStore,
		shippingStore,
		paymentStore,
		refundStore,
		returnStore,
		time.Duration(cfg.ReturnWindowDays)*24*time.Hour,
		logger,
	)
	refundService := services.NewRefundService(refundStore, orderStore, customerStore, userStore, logger)
	returnService := services.NewReturnService(returnStore, orderStore, locker, logger)

	h, err := handlers.New(handlers.Dependencies{
		Config:            cfg,
		DB:                database,
		OrderService:      orderService,
		OrderQueryService: orderQueryService,
		RefundService:     refundService,
		ReturnService:     returnService,
		Logger:            logger,
	})
	if err != nil {
		closeLocker(logger, locker)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Locker:        locker,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Locker != nil {
		closeLocker(a.Logger, a.Locker)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	default:
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
}

// cancelableFromStatuses maps the validated config values onto typed
// order statuses.
func cancelableFromStatuses(raw []string) []models.OrderStatus {
	statuses := make([]models.OrderStatus, 0, len(raw))
	for _, value := range raw {
		statuses = append(statuses, models.OrderStatus(strings.TrimSpace(strings.ToLower(value))))
	}
	return statuses
}

// fraudAnalyzerOrNil keeps a nil *fraud.Analyzer from becoming a
// non-nil interface value inside the order service.
func fraudAnalyzerOrNil(analyzer *fraud.Analyzer) services.FraudAnalyzer {
	if analyzer == nil {
		return nil
	}
	return analyzer
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}

func closeLocker(logger *slog.Logger, locker lock.Locker) {
	if locker == nil {
		return
	}
	if err := locker.Close(); err != nil && logger != nil {
		logger.Warn("failed to close locker", "error", err)
	}
}
