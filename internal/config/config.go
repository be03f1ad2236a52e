package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	LockProvider          string `env:"LOCK_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=LockProvider redis"`

	// JWTSecret enables the bearer-token actor middleware. When empty every
	// mutation is attributed to "system".
	JWTSecret string `env:"JWT_SECRET"`

	PaymentSuccessRate float64 `env:"PAYMENT_SUCCESS_RATE" envDefault:"0.8" validate:"gte=0,lte=1"`

	CourierAPIBaseURL string        `env:"COURIER_API_BASE_URL" envDefault:"https://api.postex.pk/services/courier/api" validate:"required,url"`
	CourierTimeout    time.Duration `env:"COURIER_TIMEOUT" envDefault:"10s"`

	GeocodeAPIKey  string        `env:"GEOCODE_API_KEY"`
	GeocodeTimeout time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`

	// ReturnWindowDays bounds the canReturn listing filter: only orders
	// created within the window are considered returnable.
	ReturnWindowDays int `env:"RETURN_WINDOW_DAYS" envDefault:"15" validate:"gt=0"`

	// OrderCancelableFrom lists the order statuses from which cancelled is
	// reachable.
	OrderCancelableFrom []string `env:"ORDER_CANCELABLE_FROM" envDefault:"pending,paid"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	for _, status := range c.OrderCancelableFrom {
		switch strings.TrimSpace(strings.ToLower(status)) {
		case "pending", "paid", "shipped":
		case "delivered", "cancelled":
			return fmt.Errorf("ORDER_CANCELABLE_FROM must not include terminal status %q", status)
		default:
			return fmt.Errorf("ORDER_CANCELABLE_FROM contains unknown status %q", status)
		}
	}

	return nil
}
