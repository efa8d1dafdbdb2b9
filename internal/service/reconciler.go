package service

import (
	"context"
	"time"

	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/notification"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
)

// SubscriptionReconciler applies payment provider lifecycle events to the
// entitlement store. Every handler is safe to run more than once and in any
// order relative to other events of the same provider subscription.
//
// Events that do not map to the billing domain (missing scope metadata,
// unknown prices) are logged and dropped. Store errors are returned so the
// webhook caller can ask the provider to redeliver.
type SubscriptionReconciler interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
	HandleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error
	HandleInvoicePaid(ctx context.Context, inv *stripe.Invoice) error
	HandleInvoiceFailed(ctx context.Context, inv *stripe.Invoice) error
	HandleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error
	HandleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error
}

// applyMode selects how an item is applied when the provider subscription
// already has records
type applyMode string

const (
	// modeCheckout drops the item when the subscription is already reconciled
	modeCheckout applyMode = "checkout.session.completed"
	// modeInvoicePaid refreshes existing non-canceled records to ACTIVE
	modeInvoicePaid applyMode = "invoice.paid"
	// modeSync overwrites status and period end from the provider
	modeSync applyMode = "customer.subscription.updated"
)

type applyInput struct {
	scope  types.Scope
	sub    *stripe.Subscription
	item   *stripe.SubscriptionItem
	status types.SubscriptionStatus
	mode   applyMode
}

// applyResult describes what happened to one subscription item
type applyResult struct {
	ref     *types.ProductReference
	record  *entitlement.Record
	created bool
}

type subscriptionReconciler struct {
	ServiceParams
	resolver  ProductResolver
	validator EntitlementValidator
	ledger    *ledger
}

func NewSubscriptionReconciler(params ServiceParams, resolver ProductResolver, validator EntitlementValidator) SubscriptionReconciler {
	return &subscriptionReconciler{
		ServiceParams: params,
		resolver:      resolver,
		validator:     validator,
		ledger:        newLedger(params),
	}
}

func (s *subscriptionReconciler) HandleEvent(ctx context.Context, event *stripe.Event) error {
	log := s.Logger.WithContext(ctx)
	log.Infow("reconciling provider event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	switch event.Type {
	case stripeIntegration.EventCheckoutSessionCompleted:
		session, err := stripeIntegration.DecodeEventObject[stripe.CheckoutSession](event)
		if err != nil {
			return s.dropUndecodable(ctx, event, err)
		}
		return s.HandleCheckoutCompleted(ctx, session)

	case stripeIntegration.EventInvoicePaid, stripeIntegration.EventInvoicePaymentSucceeded:
		inv, err := stripeIntegration.DecodeEventObject[stripe.Invoice](event)
		if err != nil {
			return s.dropUndecodable(ctx, event, err)
		}
		return s.HandleInvoicePaid(ctx, inv)

	case stripeIntegration.EventInvoicePaymentFailed:
		inv, err := stripeIntegration.DecodeEventObject[stripe.Invoice](event)
		if err != nil {
			return s.dropUndecodable(ctx, event, err)
		}
		return s.HandleInvoiceFailed(ctx, inv)

	case stripeIntegration.EventCustomerSubscriptionUpdated:
		sub, err := stripeIntegration.DecodeEventObject[stripe.Subscription](event)
		if err != nil {
			return s.dropUndecodable(ctx, event, err)
		}
		return s.HandleSubscriptionUpdated(ctx, sub)

	case stripeIntegration.EventCustomerSubscriptionDeleted:
		sub, err := stripeIntegration.DecodeEventObject[stripe.Subscription](event)
		if err != nil {
			return s.dropUndecodable(ctx, event, err)
		}
		return s.HandleSubscriptionDeleted(ctx, sub)
	}

	log.Debugw("ignoring unhandled provider event", "event_type", event.Type)
	return nil
}

// dropUndecodable acknowledges a verified event whose object cannot be
// decoded. Redelivery would carry the same payload.
func (s *subscriptionReconciler) dropUndecodable(ctx context.Context, event *stripe.Event, err error) error {
	s.Logger.WithContext(ctx).Errorw("dropping provider event with undecodable object",
		"event_id", event.ID,
		"event_type", event.Type,
		"error", err,
	)
	return nil
}

func (s *subscriptionReconciler) HandleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	log := s.Logger.WithContext(ctx)

	if session.Subscription == nil || session.Subscription.ID == "" {
		log.Infow("checkout session has no subscription, skipping", "session_id", session.ID)
		return nil
	}
	subID := session.Subscription.ID

	scope, ok := types.ScopeFromMetadata(session.Metadata)
	if !ok {
		log.Warnw("checkout session metadata has no scope, skipping",
			"session_id", session.ID,
			"provider_subscription_id", subID,
		)
		return nil
	}

	// the session does not carry item detail, so the price comes from the subscription
	sub, err := s.fetchSubscription(ctx, subID)
	if err != nil || sub == nil {
		return err
	}

	paid := session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		session.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
	status := confirmationStatus(sub, paid)

	results, err := s.applyItems(ctx, scope, sub, stripeIntegration.SubscriptionItems(sub), status, modeCheckout)
	if err != nil {
		return err
	}

	created := lo.Filter(results, func(r *applyResult, _ int) bool { return r.created })
	if len(created) == 0 {
		return nil
	}

	// first invoice of a new subscription
	if inv := s.latestInvoice(ctx, sub); inv != nil {
		s.ledger.recordInvoiceBestEffort(ctx, inv, scope, created[0].ref, sub.ID)
	}
	s.notifyActivated(ctx, created)
	return nil
}

func (s *subscriptionReconciler) HandleInvoicePaid(ctx context.Context, inv *stripe.Invoice) error {
	log := s.Logger.WithContext(ctx)

	subID := stripeIntegration.InvoiceSubscriptionID(inv)
	if subID == "" {
		log.Infow("invoice has no subscription, skipping", "invoice_id", inv.ID)
		return nil
	}

	sub, err := s.fetchSubscription(ctx, subID)
	if err != nil || sub == nil {
		return err
	}

	scope, ok := types.ScopeFromMetadata(sub.Metadata)
	if !ok && inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		scope, ok = types.ScopeFromMetadata(inv.Parent.SubscriptionDetails.Metadata)
	}
	if !ok {
		log.Warnw("subscription metadata has no scope, skipping invoice",
			"invoice_id", inv.ID,
			"provider_subscription_id", subID,
		)
		return nil
	}

	results, err := s.applyItems(ctx, scope, sub, invoicedItems(sub, inv), types.SubscriptionStatusActive, modeInvoicePaid)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	// the ledger is written for duplicates too; it is keyed by invoice id
	s.ledger.recordInvoiceBestEffort(ctx, inv, scope, results[0].ref, subID)
	s.notifyActivated(ctx, lo.Filter(results, func(r *applyResult, _ int) bool { return r.created }))
	return nil
}

func (s *subscriptionReconciler) HandleInvoiceFailed(ctx context.Context, inv *stripe.Invoice) error {
	log := s.Logger.WithContext(ctx)

	subID := stripeIntegration.InvoiceSubscriptionID(inv)
	if subID == "" {
		log.Infow("failed invoice has no subscription, skipping", "invoice_id", inv.ID)
		return nil
	}

	n, err := s.EntitlementRepo.MarkFailed(ctx, subID)
	if err != nil {
		return err
	}

	log.Infow("marked subscription past due",
		"invoice_id", inv.ID,
		"provider_subscription_id", subID,
		"records", n,
	)
	return nil
}

func (s *subscriptionReconciler) HandleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	log := s.Logger.WithContext(ctx)

	scope, ok := types.ScopeFromMetadata(sub.Metadata)
	if !ok {
		log.Warnw("subscription metadata has no scope, skipping update",
			"provider_subscription_id", sub.ID,
		)
		return nil
	}

	status := stripeIntegration.MapSubscriptionStatus(sub.Status)
	results, err := s.applyItems(ctx, scope, sub, stripeIntegration.SubscriptionItems(sub), status, modeSync)
	if err != nil {
		return err
	}

	s.notifyActivated(ctx, lo.Filter(results, func(r *applyResult, _ int) bool { return r.created }))
	return nil
}

func (s *subscriptionReconciler) HandleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	n, err := s.EntitlementRepo.MarkCanceled(ctx, sub.ID)
	if err != nil {
		return err
	}

	s.Logger.WithContext(ctx).Infow("marked subscription canceled",
		"provider_subscription_id", sub.ID,
		"records", n,
	)
	return nil
}

// applyItems applies the given items of sub. Items whose price is unknown
// are skipped and do not appear in the result.
func (s *subscriptionReconciler) applyItems(
	ctx context.Context,
	scope types.Scope,
	sub *stripe.Subscription,
	items []*stripe.SubscriptionItem,
	status types.SubscriptionStatus,
	mode applyMode,
) ([]*applyResult, error) {
	if len(items) == 0 {
		s.Logger.WithContext(ctx).Warnw("provider subscription has no items",
			"provider_subscription_id", sub.ID,
		)
		return nil, nil
	}

	results := make([]*applyResult, 0, len(items))
	for _, item := range items {
		result, err := s.applyItem(ctx, applyInput{
			scope:  scope,
			sub:    sub,
			item:   item,
			status: status,
			mode:   mode,
		})
		if err != nil {
			return nil, err
		}
		if result != nil {
			results = append(results, result)
		}
	}
	return results, nil
}

// applyItem is the single write path from provider state to the store.
// The duplicate check and the write share one transaction.
func (s *subscriptionReconciler) applyItem(ctx context.Context, in applyInput) (*applyResult, error) {
	log := s.Logger.WithContext(ctx)
	priceID := stripeIntegration.ItemPriceID(in.item)

	ref, err := s.resolver.Resolve(ctx, priceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			log.Infow("price does not belong to the billing catalog, skipping",
				"price_id", priceID,
				"provider_subscription_id", in.sub.ID,
			)
			return nil, nil
		}
		return nil, err
	}

	// the price decides the tier; metadata only supplies user and residence
	scope := types.Scope{
		UserID:            in.scope.UserID,
		ResidenceID:       in.scope.ResidenceID,
		RankingCategoryID: ref.ScopeCategoryID(),
	}
	if !scope.Equal(in.scope) {
		log.Warnw("metadata ranking category does not match the price, using the price",
			"provider_subscription_id", in.sub.ID,
			"metadata_category_id", in.scope.CategoryID(),
			"price_category_id", scope.CategoryID(),
		)
	}

	periodEnd := stripeIntegration.ItemPeriodEnd(in.item)
	result := &applyResult{ref: ref}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.EntitlementRepo.ListByProviderSubscriptionID(ctx, in.sub.ID)
		if err != nil {
			return err
		}

		if len(existing) > 0 {
			s.warnOnScopeDrift(log, scope, existing)

			switch in.mode {
			case modeCheckout:
				log.Infow("provider subscription already reconciled, skipping",
					"provider_subscription_id", in.sub.ID,
					"records", len(existing),
				)
				return nil
			case modeInvoicePaid:
				record, err := s.refreshExisting(ctx, existing, ref, in.status, periodEnd, in.mode)
				result.record = record
				return err
			case modeSync:
				matching := lo.Filter(existing, func(r *entitlement.Record, _ int) bool {
					return r.ProductID == ref.EntitlementProductID()
				})
				if len(matching) > 0 {
					record, err := s.refreshExisting(ctx, matching, ref, in.status, periodEnd, in.mode)
					result.record = record
					return err
				}
			}
		}

		if ref.IsRankingCategory() && in.status == types.SubscriptionStatusActive {
			if err := s.validator.RequireActiveResidence(ctx, scope.UserID, scope.ResidenceID); err != nil {
				if ierr.IsPreconditionFailed(err) {
					log.Errorw("ranking subscription confirmed without an active residence subscription, not recording",
						"provider_subscription_id", in.sub.ID,
						"user_id", scope.UserID,
						"residence_id", scope.ResidenceID,
						"ranking_category_id", scope.CategoryID(),
					)
					result = nil
					return nil
				}
				return err
			}
		}

		record := entitlement.NewRecord(scope, ref.EntitlementProductID(), in.sub.ID, priceID, in.status, periodEnd)
		record.Metadata = types.Metadata{
			types.MetadataKeySource:           string(in.mode),
			types.MetadataKeySubscriptionType: string(ref.SubscriptionType()),
			types.MetadataKeyProviderPriceID:  priceID,
		}
		record.BaseModel = types.GetDefaultBaseModel(ctx)

		saved, err := s.EntitlementRepo.Upsert(ctx, record)
		if err != nil {
			return err
		}
		result.record = saved
		result.created = true

		return s.supersede(ctx, saved)
	})
	if err != nil {
		return nil, err
	}
	if result != nil && result.created {
		log.Infow("recorded entitlement",
			"subscription_id", result.record.ID,
			"provider_subscription_id", in.sub.ID,
			"status", result.record.Status,
			"ranking_category_id", scope.CategoryID(),
		)
	}
	return result, nil
}

// refreshExisting overwrites status and period end of already reconciled
// records through the upsert merge path. CANCELED records stay canceled
// unless the provider reports cancellation itself.
func (s *subscriptionReconciler) refreshExisting(
	ctx context.Context,
	existing []*entitlement.Record,
	ref *types.ProductReference,
	status types.SubscriptionStatus,
	periodEnd time.Time,
	mode applyMode,
) (*entitlement.Record, error) {
	var last *entitlement.Record
	for _, e := range existing {
		if e.Status == types.SubscriptionStatusCanceled && status != types.SubscriptionStatusCanceled {
			continue
		}
		if e.IsRankingTier() && status == types.SubscriptionStatusActive && !e.IsActive() {
			ok, err := s.validator.HasActiveResidenceSubscription(ctx, e.UserID, e.ResidenceID)
			if err != nil {
				return nil, err
			}
			if !ok {
				s.Logger.WithContext(ctx).Warnw("not reactivating ranking subscription without an active residence subscription",
					"subscription_id", e.ID,
					"provider_subscription_id", e.ProviderSubscriptionID,
				)
				continue
			}
		}

		update := *e
		update.Status = status
		if !periodEnd.IsZero() {
			update.CurrentPeriodEnd = periodEnd
		}
		update.ProviderPriceID = lo.CoalesceOrEmpty(ref.PriceID, e.ProviderPriceID)
		update.Metadata = types.Metadata{"last_event": string(mode)}

		saved, err := s.EntitlementRepo.Upsert(ctx, &update)
		if err != nil {
			return nil, err
		}
		if err := s.supersede(ctx, saved); err != nil {
			return nil, err
		}
		last = saved
	}
	return last, nil
}

// supersede cancels other ACTIVE records of the same scope once record is
// ACTIVE, keeping a single ACTIVE subscription per scope in either tier
func (s *subscriptionReconciler) supersede(ctx context.Context, record *entitlement.Record) error {
	return supersedeInScope(ctx, s.EntitlementRepo, s.Logger, record)
}

func supersedeInScope(ctx context.Context, repo entitlement.Repository, log *logger.Logger, record *entitlement.Record) error {
	if !record.IsActive() {
		return nil
	}

	n, err := repo.CancelOtherActiveInScope(ctx, record.Scope(), record.ProviderSubscriptionID)
	if err != nil {
		return err
	}
	if n > 0 {
		log.WithContext(ctx).Infow("superseded subscriptions in scope",
			"ranking_category_id", lo.FromPtr(record.RankingCategoryID),
			"subscription_id", record.ID,
			"provider_subscription_id", record.ProviderSubscriptionID,
			"canceled", n,
		)
	}
	return nil
}

// warnOnScopeDrift logs when the incoming scope differs from what is stored.
// The stored scope always wins.
func (s *subscriptionReconciler) warnOnScopeDrift(log *logger.Logger, incoming types.Scope, existing []*entitlement.Record) {
	for _, e := range existing {
		if e.Scope().Equal(incoming) {
			continue
		}
		log.Warnw("provider subscription scope differs from the stored record, keeping stored scope",
			"subscription_id", e.ID,
			"provider_subscription_id", e.ProviderSubscriptionID,
			"stored_user_id", e.UserID,
			"stored_residence_id", e.ResidenceID,
			"stored_category_id", lo.FromPtr(e.RankingCategoryID),
			"incoming_user_id", incoming.UserID,
			"incoming_residence_id", incoming.ResidenceID,
			"incoming_category_id", incoming.CategoryID(),
		)
	}
}

// fetchSubscription loads the provider subscription. A subscription the
// provider no longer knows is dropped as foreign, returning nil, nil.
func (s *subscriptionReconciler) fetchSubscription(ctx context.Context, subID string) (*stripe.Subscription, error) {
	sub, err := s.Provider.GetSubscription(ctx, subID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.WithContext(ctx).Warnw("provider subscription not found, skipping",
				"provider_subscription_id", subID,
			)
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// latestInvoice returns the subscription's latest invoice, loading it when
// the subscription only carries its id
func (s *subscriptionReconciler) latestInvoice(ctx context.Context, sub *stripe.Subscription) *stripe.Invoice {
	if sub.LatestInvoice == nil || sub.LatestInvoice.ID == "" {
		return nil
	}
	if sub.LatestInvoice.Status != "" {
		return sub.LatestInvoice
	}

	inv, err := s.Provider.GetInvoice(ctx, sub.LatestInvoice.ID)
	if err != nil {
		s.Logger.WithContext(ctx).Errorw("failed to load first invoice",
			"error", err,
			"invoice_id", sub.LatestInvoice.ID,
			"provider_subscription_id", sub.ID,
		)
		return nil
	}
	return inv
}

func (s *subscriptionReconciler) notifyActivated(ctx context.Context, results []*applyResult) {
	for _, r := range results {
		if r.record == nil || !r.record.IsActive() {
			continue
		}
		s.ledger.notify(ctx, types.NotificationSubscriptionActivated, r.record.Scope(),
			r.record.ProviderSubscriptionID+":"+r.record.ProductID,
			&notification.SubscriptionActivatedPayload{
				SubscriptionID:         r.record.ID,
				ProviderSubscriptionID: r.record.ProviderSubscriptionID,
				SubscriptionType:       string(r.ref.SubscriptionType()),
				ProductID:              r.record.ProductID,
				RankingCategoryID:      lo.FromPtr(r.record.RankingCategoryID),
				CurrentPeriodEnd:       r.record.CurrentPeriodEnd,
			},
		)
	}
}

// confirmationStatus is the status a newly confirmed subscription is
// recorded with. A confirmed payment activates it unless the provider has
// already ended the subscription.
// invoicedItems narrows the subscription's items to the prices billed on
// inv. Invoices without line pricing fall back to every item.
func invoicedItems(sub *stripe.Subscription, inv *stripe.Invoice) []*stripe.SubscriptionItem {
	items := stripeIntegration.SubscriptionItems(sub)
	billed := stripeIntegration.InvoiceLinePriceIDs(inv)
	if len(billed) == 0 {
		return items
	}

	matched := lo.Filter(items, func(item *stripe.SubscriptionItem, _ int) bool {
		return lo.Contains(billed, stripeIntegration.ItemPriceID(item))
	})
	if len(matched) == 0 {
		return items
	}
	return matched
}

func confirmationStatus(sub *stripe.Subscription, paid bool) types.SubscriptionStatus {
	status := stripeIntegration.MapSubscriptionStatus(sub.Status)
	if paid && status != types.SubscriptionStatusCanceled {
		return types.SubscriptionStatusActive
	}
	return status
}
