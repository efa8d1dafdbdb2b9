package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// MockPostgresClient runs transactional callbacks inline. In-memory stores
// are not rolled back when fn fails.
type MockPostgresClient struct {
	logger *logger.Logger

	mu      sync.Mutex
	txCount int
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function without a real transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	c.mu.Lock()
	c.txCount++
	c.mu.Unlock()

	return fn(ctx)
}

// TxCount returns how many times WithTx was entered
func (c *MockPostgresClient) TxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCount
}
