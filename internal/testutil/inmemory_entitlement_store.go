package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryEntitlementStore implements entitlement.Repository with the same
// upsert key and merge rules as the postgres repository
type InMemoryEntitlementStore struct {
	*InMemoryStore[*entitlement.Record]
	// upsertMu serialises Upsert the way the unique index does
	upsertMu sync.Mutex

	// UpsertErr, when set, is returned by every Upsert call
	UpsertErr error
}

var _ entitlement.Repository = (*InMemoryEntitlementStore)(nil)

// NewInMemoryEntitlementStore creates a new in-memory entitlement store
func NewInMemoryEntitlementStore() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{
		InMemoryStore: NewInMemoryStore[*entitlement.Record](),
	}
}

func copyRecord(r *entitlement.Record) *entitlement.Record {
	c := *r
	c.Metadata = lo.Assign(types.Metadata{}, r.Metadata)
	if r.RankingCategoryID != nil {
		c.RankingCategoryID = lo.ToPtr(*r.RankingCategoryID)
	}
	return &c
}

func sameUpsertKey(a, b *entitlement.Record) bool {
	return a.Scope().Equal(b.Scope()) && a.ProviderSubscriptionID == b.ProviderSubscriptionID
}

// newestFirst matches the postgres ordering
func newestFirst(i, j *entitlement.Record) bool {
	if !i.CreatedAt.Equal(j.CreatedAt) {
		return i.CreatedAt.After(j.CreatedAt)
	}
	return i.ID > j.ID
}

func (s *InMemoryEntitlementStore) Upsert(ctx context.Context, record *entitlement.Record) (*entitlement.Record, error) {
	if s.UpsertErr != nil {
		return nil, s.UpsertErr
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	now := time.Now().UTC()
	existing, err := s.List(ctx, func(_ context.Context, r *entitlement.Record) bool {
		return sameUpsertKey(r, record)
	}, nil)
	if err != nil {
		return nil, err
	}

	if len(existing) > 0 {
		merged := copyRecord(existing[0])
		merged.Status = record.Status
		merged.CurrentPeriodEnd = record.CurrentPeriodEnd
		merged.ProviderPriceID = record.ProviderPriceID
		merged.Metadata = lo.Assign(merged.Metadata, record.Metadata)
		merged.UpdatedAt = now
		if err := s.Update(ctx, merged.ID, merged); err != nil {
			return nil, err
		}
		return copyRecord(merged), nil
	}

	created := copyRecord(record)
	if created.ID == "" {
		created.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	if err := s.Create(ctx, created.ID, created); err != nil {
		return nil, err
	}
	return copyRecord(created), nil
}

func (s *InMemoryEntitlementStore) MarkCanceled(ctx context.Context, providerSubscriptionID string) (int64, error) {
	return s.setStatus(ctx, providerSubscriptionID, types.SubscriptionStatusCanceled)
}

func (s *InMemoryEntitlementStore) MarkFailed(ctx context.Context, providerSubscriptionID string) (int64, error) {
	return s.setStatus(ctx, providerSubscriptionID, types.SubscriptionStatusPastDue, types.SubscriptionStatusCanceled)
}

func (s *InMemoryEntitlementStore) setStatus(
	ctx context.Context,
	providerSubscriptionID string,
	status types.SubscriptionStatus,
	exclude ...types.SubscriptionStatus,
) (int64, error) {
	skip := append([]types.SubscriptionStatus{status}, exclude...)
	return s.updateWhere(ctx, func(r *entitlement.Record) bool {
		return r.ProviderSubscriptionID == providerSubscriptionID && !lo.Contains(skip, r.Status)
	}, status)
}

func (s *InMemoryEntitlementStore) CancelOtherActiveInScope(ctx context.Context, scope types.Scope, keepProviderSubscriptionID string) (int64, error) {
	return s.updateWhere(ctx, func(r *entitlement.Record) bool {
		return r.Scope().Equal(scope) &&
			r.Status == types.SubscriptionStatusActive &&
			r.ProviderSubscriptionID != keepProviderSubscriptionID
	}, types.SubscriptionStatusCanceled)
}

func (s *InMemoryEntitlementStore) updateWhere(ctx context.Context, match func(*entitlement.Record) bool, status types.SubscriptionStatus) (int64, error) {
	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	records, err := s.List(ctx, func(_ context.Context, r *entitlement.Record) bool {
		return match(r)
	}, nil)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	for _, r := range records {
		updated := copyRecord(r)
		updated.Status = status
		updated.UpdatedAt = now
		if err := s.Update(ctx, updated.ID, updated); err != nil {
			return 0, err
		}
	}
	return int64(len(records)), nil
}

func (s *InMemoryEntitlementStore) Get(ctx context.Context, id string) (*entitlement.Record, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyRecord(r), nil
}

func (s *InMemoryEntitlementStore) ListByUser(ctx context.Context, userID string) ([]*entitlement.Record, error) {
	return s.list(ctx, func(r *entitlement.Record) bool {
		return r.UserID == userID
	})
}

func (s *InMemoryEntitlementStore) ListByUserAndResidence(ctx context.Context, userID, residenceID string) ([]*entitlement.Record, error) {
	return s.list(ctx, func(r *entitlement.Record) bool {
		return r.UserID == userID && r.ResidenceID == residenceID
	})
}

func (s *InMemoryEntitlementStore) GetByScope(ctx context.Context, scope types.Scope) (*entitlement.Record, error) {
	records, err := s.list(ctx, func(r *entitlement.Record) bool {
		return r.Scope().Equal(scope)
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ierr.NewError("subscription not found for scope").
			Mark(ierr.ErrNotFound)
	}
	return records[0], nil
}

func (s *InMemoryEntitlementStore) ListActiveResidence(ctx context.Context, userID, residenceID string) ([]*entitlement.Record, error) {
	return s.list(ctx, func(r *entitlement.Record) bool {
		return r.UserID == userID && r.ResidenceID == residenceID && r.IsActive() && r.IsResidenceTier()
	})
}

func (s *InMemoryEntitlementStore) ListActiveRanking(ctx context.Context, userID, residenceID string) ([]*entitlement.Record, error) {
	return s.list(ctx, func(r *entitlement.Record) bool {
		return r.UserID == userID && r.ResidenceID == residenceID && r.IsActive() && r.IsRankingTier()
	})
}

func (s *InMemoryEntitlementStore) ListByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) ([]*entitlement.Record, error) {
	return s.list(ctx, func(r *entitlement.Record) bool {
		return r.ProviderSubscriptionID == providerSubscriptionID
	})
}

func (s *InMemoryEntitlementStore) list(ctx context.Context, match func(*entitlement.Record) bool) ([]*entitlement.Record, error) {
	records, err := s.List(ctx, func(_ context.Context, r *entitlement.Record) bool {
		return match(r)
	}, newestFirst)
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(r *entitlement.Record, _ int) *entitlement.Record {
		return copyRecord(r)
	}), nil
}

// All returns every stored record, newest first
func (s *InMemoryEntitlementStore) All() []*entitlement.Record {
	records, _ := s.list(context.Background(), func(*entitlement.Record) bool { return true })
	return records
}
