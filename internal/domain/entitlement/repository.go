package entitlement

import (
	"context"

	"github.com/flexprice/residence-billing/internal/types"
)

// Repository is the entitlement store. Upsert is the only path that creates
// rows; the remaining writes are status transitions.
type Repository interface {
	// Upsert inserts the record or, when a row already exists for the same
	// (user, residence, category, provider subscription) tuple, merges status,
	// period end, price and metadata into it. Concurrent callers for the same
	// tuple end with one row.
	Upsert(ctx context.Context, record *Record) (*Record, error)

	// MarkCanceled sets every record of the provider subscription to CANCELED.
	// Zero matching rows is not an error.
	MarkCanceled(ctx context.Context, providerSubscriptionID string) (int64, error)

	// MarkFailed sets every non-CANCELED record of the provider subscription
	// to PAST_DUE. Zero matching rows is not an error.
	MarkFailed(ctx context.Context, providerSubscriptionID string) (int64, error)

	// CancelOtherActiveInScope cancels ACTIVE records of the scope that belong to
	// a different provider subscription
	CancelOtherActiveInScope(ctx context.Context, scope types.Scope, keepProviderSubscriptionID string) (int64, error)

	Get(ctx context.Context, id string) (*Record, error)
	ListByUser(ctx context.Context, userID string) ([]*Record, error)
	ListByUserAndResidence(ctx context.Context, userID, residenceID string) ([]*Record, error)
	// GetByScope returns the newest record of the scope or a NotFound error
	GetByScope(ctx context.Context, scope types.Scope) (*Record, error)
	// ListActiveResidence returns ACTIVE records without a ranking category
	ListActiveResidence(ctx context.Context, userID, residenceID string) ([]*Record, error)
	// ListActiveRanking returns ACTIVE records with a ranking category
	ListActiveRanking(ctx context.Context, userID, residenceID string) ([]*Record, error)
	ListByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) ([]*Record, error)
}
