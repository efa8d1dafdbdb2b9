package postgres

import (
	"context"
	"time"

	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/postgres"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/lib/pq"
)

type entitlementRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewEntitlementRepository(db *postgres.DB, logger *logger.Logger) entitlement.Repository {
	return &entitlementRepository{db: db, logger: logger}
}

const entitlementColumns = `
	id, user_id, residence_id, ranking_category_id, product_id,
	provider_subscription_id, provider_price_id, status, current_period_end,
	metadata, created_at, updated_at`

// upsertEntitlementQuery relies on the unique index
// billing_subscriptions_scope_provider_idx over the same expression list
const upsertEntitlementQuery = `
	INSERT INTO billing_subscriptions (` + entitlementColumns + `
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	)
	ON CONFLICT (user_id, residence_id, (COALESCE(ranking_category_id, '')), provider_subscription_id)
	DO UPDATE SET
		status = EXCLUDED.status,
		current_period_end = EXCLUDED.current_period_end,
		provider_price_id = EXCLUDED.provider_price_id,
		metadata = billing_subscriptions.metadata || EXCLUDED.metadata,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + entitlementColumns

func (r *entitlementRepository) Upsert(ctx context.Context, record *entitlement.Record) (*entitlement.Record, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Metadata == nil {
		record.Metadata = types.Metadata{}
	}

	saved, err := r.upsertOnce(ctx, record)
	if err != nil && postgres.IsUniqueViolation(err) {
		// a racing insert committed between our conflict check and write; the
		// second attempt takes the merge branch
		r.logger.Warnw("unique violation during entitlement upsert, retrying through merge",
			"provider_subscription_id", record.ProviderSubscriptionID,
			"user_id", record.UserID,
			"residence_id", record.ResidenceID,
		)
		saved, err = r.upsertOnce(ctx, record)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to save subscription record").
			WithReportableDetails(map[string]any{
				"provider_subscription_id": record.ProviderSubscriptionID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return saved, nil
}

// upsertOnce runs the statement inside a savepoint so a failed attempt does
// not poison an enclosing transaction
func (r *entitlementRepository) upsertOnce(ctx context.Context, record *entitlement.Record) (*entitlement.Record, error) {
	var saved entitlement.Record
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		return r.db.GetQuerier(ctx).QueryRowxContext(ctx, upsertEntitlementQuery,
			record.ID,
			record.UserID,
			record.ResidenceID,
			record.RankingCategoryID,
			record.ProductID,
			record.ProviderSubscriptionID,
			record.ProviderPriceID,
			record.Status,
			record.CurrentPeriodEnd,
			record.Metadata,
			record.CreatedAt,
			record.UpdatedAt,
		).StructScan(&saved)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *entitlementRepository) MarkCanceled(ctx context.Context, providerSubscriptionID string) (int64, error) {
	return r.setStatus(ctx, providerSubscriptionID, types.SubscriptionStatusCanceled)
}

// MarkFailed leaves CANCELED records alone; cancellation is terminal
func (r *entitlementRepository) MarkFailed(ctx context.Context, providerSubscriptionID string) (int64, error) {
	return r.setStatus(ctx, providerSubscriptionID, types.SubscriptionStatusPastDue, types.SubscriptionStatusCanceled)
}

// setStatus moves every record of the provider subscription to status,
// skipping records already in status or in one of the excluded states
func (r *entitlementRepository) setStatus(
	ctx context.Context,
	providerSubscriptionID string,
	status types.SubscriptionStatus,
	exclude ...types.SubscriptionStatus,
) (int64, error) {
	query := `
		UPDATE billing_subscriptions
		SET status = $1, updated_at = $2
		WHERE provider_subscription_id = $3
			AND NOT (status = ANY($4))
	`

	skip := pq.StringArray{string(status)}
	for _, e := range exclude {
		skip = append(skip, string(e))
	}

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, status, time.Now().UTC(), providerSubscriptionID, skip)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("Failed to mark subscription %s", status).
			WithReportableDetails(map[string]any{
				"provider_subscription_id": providerSubscriptionID,
			}).
			Mark(ierr.ErrDatabase)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to read affected rows").
			Mark(ierr.ErrDatabase)
	}
	return affected, nil
}

func (r *entitlementRepository) CancelOtherActiveInScope(ctx context.Context, scope types.Scope, keepProviderSubscriptionID string) (int64, error) {
	query := `
		UPDATE billing_subscriptions
		SET status = $1, updated_at = $2
		WHERE user_id = $3
			AND residence_id = $4
			AND COALESCE(ranking_category_id, '') = $5
			AND status = $6
			AND provider_subscription_id <> $7
	`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.SubscriptionStatusCanceled,
		time.Now().UTC(),
		scope.UserID,
		scope.ResidenceID,
		scope.CategoryID(),
		types.SubscriptionStatusActive,
		keepProviderSubscriptionID,
	)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to supersede previous subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return result.RowsAffected()
}

func (r *entitlementRepository) Get(ctx context.Context, id string) (*entitlement.Record, error) {
	query := `SELECT ` + entitlementColumns + ` FROM billing_subscriptions WHERE id = $1`

	var record entitlement.Record
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &record, query, id); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription %s not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &record, nil
}

func (r *entitlementRepository) ListByUser(ctx context.Context, userID string) ([]*entitlement.Record, error) {
	return r.list(ctx, `WHERE user_id = $1`, userID)
}

func (r *entitlementRepository) ListByUserAndResidence(ctx context.Context, userID, residenceID string) ([]*entitlement.Record, error) {
	return r.list(ctx, `WHERE user_id = $1 AND residence_id = $2`, userID, residenceID)
}

func (r *entitlementRepository) GetByScope(ctx context.Context, scope types.Scope) (*entitlement.Record, error) {
	records, err := r.list(ctx,
		`WHERE user_id = $1 AND residence_id = $2 AND COALESCE(ranking_category_id, '') = $3`,
		scope.UserID, scope.ResidenceID, scope.CategoryID(),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ierr.NewError("subscription not found for scope").
			WithHint("No subscription exists for this residence and category").
			WithReportableDetails(map[string]any{
				"residence_id":        scope.ResidenceID,
				"ranking_category_id": scope.CategoryID(),
			}).
			Mark(ierr.ErrNotFound)
	}
	return records[0], nil
}

func (r *entitlementRepository) ListActiveResidence(ctx context.Context, userID, residenceID string) ([]*entitlement.Record, error) {
	return r.list(ctx,
		`WHERE user_id = $1 AND residence_id = $2 AND status = $3 AND ranking_category_id IS NULL`,
		userID, residenceID, types.SubscriptionStatusActive,
	)
}

func (r *entitlementRepository) ListActiveRanking(ctx context.Context, userID, residenceID string) ([]*entitlement.Record, error) {
	return r.list(ctx,
		`WHERE user_id = $1 AND residence_id = $2 AND status = $3 AND ranking_category_id IS NOT NULL`,
		userID, residenceID, types.SubscriptionStatusActive,
	)
}

func (r *entitlementRepository) ListByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) ([]*entitlement.Record, error) {
	return r.list(ctx, `WHERE provider_subscription_id = $1`, providerSubscriptionID)
}

// list returns matching records newest first
func (r *entitlementRepository) list(ctx context.Context, where string, args ...interface{}) ([]*entitlement.Record, error) {
	query := `SELECT ` + entitlementColumns + ` FROM billing_subscriptions ` + where + ` ORDER BY created_at DESC, id DESC`

	var records []*entitlement.Record
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &records, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return records, nil
}
