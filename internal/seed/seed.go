package seed

// Package seed loads reference fixtures (products, customers, users) from a
// YAML file and upserts them, so local environments have catalog and account
// rows for the lifecycle services to reference.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

type Fixtures struct {
	Products  []ProductFixture  `yaml:"products"`
	Customers []CustomerFixture `yaml:"customers"`
	Users     []UserFixture     `yaml:"users"`
}

type ProductFixture struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	PriceCents int      `yaml:"price_cents"`
	Stock      int      `yaml:"stock"`
	Images     []string `yaml:"images"`
}

type CustomerFixture struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Phone        string `yaml:"phone"`
	IsRegistered bool   `yaml:"is_registered"`
}

type UserFixture struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Role  string `yaml:"role"`
}

func Parse(content []byte) (*Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(content, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := fixtures.validate(); err != nil {
		return nil, err
	}
	return &fixtures, nil
}

func (f *Fixtures) validate() error {
	for i, product := range f.Products {
		if err := validID(product.ID); err != nil {
			return fmt.Errorf("products[%d]: %w", i, err)
		}
		if product.Name == "" {
			return fmt.Errorf("products[%d]: name is required", i)
		}
		if product.PriceCents < 0 {
			return fmt.Errorf("products[%d]: price_cents must not be negative", i)
		}
	}
	for i, customer := range f.Customers {
		if err := validID(customer.ID); err != nil {
			return fmt.Errorf("customers[%d]: %w", i, err)
		}
		if customer.Name == "" {
			return fmt.Errorf("customers[%d]: name is required", i)
		}
	}
	for i, user := range f.Users {
		if err := validID(user.ID); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if user.Name == "" {
			return fmt.Errorf("users[%d]: name is required", i)
		}
	}
	return nil
}

func validID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}
	return nil
}

// Apply upserts the fixtures keyed by id, so reruns refresh rows in place
// instead of duplicating them.
func Apply(ctx context.Context, pool *pgxpool.Pool, fixtures *Fixtures) error {
	for _, product := range fixtures.Products {
		imagesJSON, err := json.Marshal(product.Images)
		if err != nil {
			return fmt.Errorf("failed to marshal images for product %q: %w", product.Name, err)
		}
		query := `
			INSERT INTO products (id, name, price_cents, stock, images)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, price_cents = EXCLUDED.price_cents,
				stock = EXCLUDED.stock, images = EXCLUDED.images
		`
		if _, err := pool.Exec(ctx, query, product.ID, product.Name, product.PriceCents, product.Stock, imagesJSON); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", product.Name, err)
		}
	}

	for _, customer := range fixtures.Customers {
		query := `
			INSERT INTO customers (id, name, email, phone, is_registered)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, email = EXCLUDED.email,
				phone = EXCLUDED.phone, is_registered = EXCLUDED.is_registered
		`
		if _, err := pool.Exec(ctx, query, customer.ID, customer.Name, customer.Email, customer.Phone, customer.IsRegistered); err != nil {
			return fmt.Errorf("failed to seed customer %q: %w", customer.Name, err)
		}
	}

	for _, user := range fixtures.Users {
		query := `
			INSERT INTO users (id, name, email, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role
		`
		if _, err := pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.Role); err != nil {
			return fmt.Errorf("failed to seed user %q: %w", user.Name, err)
		}
	}

	return nil
}
