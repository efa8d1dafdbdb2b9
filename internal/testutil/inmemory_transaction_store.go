package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/residence-billing/internal/domain/transaction"
	ierr "github.com/flexprice/residence-billing/internal/errors"
)

// InMemoryTransactionStore implements transaction.Repository keyed by
// provider invoice id
type InMemoryTransactionStore struct {
	*InMemoryStore[*transaction.Transaction]
	mu sync.Mutex

	// UpsertErr, when set, is returned by every UpsertByInvoiceID call
	UpsertErr error
}

var _ transaction.Repository = (*InMemoryTransactionStore)(nil)

func NewInMemoryTransactionStore() *InMemoryTransactionStore {
	return &InMemoryTransactionStore{
		InMemoryStore: NewInMemoryStore[*transaction.Transaction](),
	}
}

func (s *InMemoryTransactionStore) UpsertByInvoiceID(ctx context.Context, txn *transaction.Transaction) (*transaction.Transaction, error) {
	if s.UpsertErr != nil {
		return nil, s.UpsertErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c := *txn
	c.UpdatedAt = now

	if existing, err := s.GetByInvoiceID(ctx, txn.ProviderInvoiceID); err == nil {
		// the stored id and reference survive redelivery
		c.ID = existing.ID
		c.Reference = existing.Reference
		c.CreatedAt = existing.CreatedAt
		if err := s.Update(ctx, c.ID, &c); err != nil {
			return nil, err
		}
	} else {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if err := s.Create(ctx, c.ID, &c); err != nil {
			return nil, err
		}
	}

	saved := c
	return &saved, nil
}

func (s *InMemoryTransactionStore) GetByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error) {
	txns, err := s.List(ctx, func(_ context.Context, t *transaction.Transaction) bool {
		return t.ProviderInvoiceID == invoiceID
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, ierr.NewErrorf("transaction for invoice %s not found", invoiceID).
			Mark(ierr.ErrNotFound)
	}
	return txns[0], nil
}

func (s *InMemoryTransactionStore) ListByUser(ctx context.Context, userID string) ([]*transaction.Transaction, error) {
	return s.List(ctx, func(_ context.Context, t *transaction.Transaction) bool {
		return t.UserID == userID
	}, func(i, j *transaction.Transaction) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
}
