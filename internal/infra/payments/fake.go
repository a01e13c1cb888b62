package payments

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"booking-service/internal/app/policies"
)

// FakeGateway is an in-process gateway for development and tests.
type FakeGateway struct {
	mu        sync.Mutex
	fail      error
	intents   map[string]policies.IntentRequest
	byKey     map[string]string
	cancelled map[string]bool

	createdCount atomic.Int64
	voidedCount  atomic.Int64
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		intents:   make(map[string]policies.IntentRequest),
		byKey:     make(map[string]string),
		cancelled: make(map[string]bool),
	}
}

// FailWith makes every subsequent call fail with err; nil restores normal behaviour.
func (g *FakeGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

func (g *FakeGateway) CreateIntent(ctx context.Context, req policies.IntentRequest) (policies.Intent, error) {
	if err := ctx.Err(); err != nil {
		return policies.Intent{}, fmt.Errorf("%w: %w", policies.ErrGateway, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return policies.Intent{}, fmt.Errorf("%w: %w", policies.ErrGateway, g.fail)
	}
	if id, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return policies.Intent{ID: id, ClientToken: id + "_secret"}, nil
	}
	id := "pi_" + uuid.NewString()
	g.intents[id] = req
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = id
	}
	g.createdCount.Add(1)
	return policies.Intent{ID: id, ClientToken: id + "_secret"}, nil
}

func (g *FakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return fmt.Errorf("%w: %w", policies.ErrGateway, g.fail)
	}
	if _, ok := g.intents[intentID]; !ok {
		return fmt.Errorf("%w: unknown intent %s", policies.ErrGateway, intentID)
	}
	if !g.cancelled[intentID] {
		g.cancelled[intentID] = true
		g.voidedCount.Add(1)
	}
	return nil
}

// Created reports how many distinct intents were issued.
func (g *FakeGateway) Created() int { return int(g.createdCount.Load()) }

// Cancelled reports how many intents were voided.
func (g *FakeGateway) Cancelled() int { return int(g.voidedCount.Load()) }

// IsCancelled reports whether intentID was voided.
func (g *FakeGateway) IsCancelled(intentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled[intentID]
}

// Request returns the request an intent was created with.
func (g *FakeGateway) Request(intentID string) (policies.IntentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.intents[intentID]
	return req, ok
}

var _ policies.PaymentGateway = (*FakeGateway)(nil)
