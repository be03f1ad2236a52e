package payment

// Package payment abstracts the payment capture collaborator. No real
// gateway is wired in; SimulatedGateway stands in with a probabilistic
// outcome the way a sandbox environment would.

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderhubapp/orderhub/internal/models"
)

type CaptureResult struct {
	Status        models.PaymentStatus
	TransactionID string
}

type Gateway interface {
	Capture(ctx context.Context, orderID uuid.UUID, amountCents int, method models.PaymentMethod, details map[string]any) (*CaptureResult, error)
}

type SimulatedGateway struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSimulatedGateway(successRate float64) *SimulatedGateway {
	return &SimulatedGateway{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Capture reports success with the configured probability. It never returns
// an error: a declined capture is a failed payment, not a gateway fault.
func (g *SimulatedGateway) Capture(ctx context.Context, orderID uuid.UUID, amountCents int, method models.PaymentMethod, details map[string]any) (*CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	roll := g.rng.Float64()
	now := g.now()
	g.mu.Unlock()

	status := models.PaymentFailed
	if roll < g.successRate {
		status = models.PaymentSuccess
	}

	return &CaptureResult{
		Status:        status,
		TransactionID: fmt.Sprintf("TXN-%d", now.UnixMilli()),
	}, nil
}
