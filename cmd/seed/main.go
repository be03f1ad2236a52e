package main

// seed loads reference fixtures from a YAML file into the database.

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/orderhubapp/orderhub/internal/config"
	"github.com/orderhubapp/orderhub/internal/db"
	"github.com/orderhubapp/orderhub/internal/seed"
)

func main() {
	fixturesPath := flag.String("fixtures", "fixtures/seed.yaml", "path to the fixtures YAML file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	content, err := os.ReadFile(*fixturesPath)
	if err != nil {
		logger.Error("failed to read fixtures file", "path", *fixturesPath, "error", err)
		os.Exit(1)
	}
	fixtures, err := seed.Parse(content)
	if err != nil {
		logger.Error("failed to parse fixtures", "path", *fixturesPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := seed.Apply(ctx, pool, fixtures); err != nil {
		logger.Error("failed to apply fixtures", "error", err)
		os.Exit(1)
	}

	logger.Info("fixtures applied",
		"products", len(fixtures.Products),
		"customers", len(fixtures.Customers),
		"users", len(fixtures.Users),
	)
}
