package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope represents the scope of idempotency
type Scope string

const (
	// ScopeInvoiceTransaction keys ledger entries by provider invoice
	ScopeInvoiceTransaction Scope = "invoice_transaction"
	// ScopeNotification keys outbound notifications so the mailer can dedupe redeliveries
	ScopeNotification Scope = "notification"
	// ScopeDirectSubscription keys provider subscription creation from the direct ranking flow
	ScopeDirectSubscription Scope = "direct_subscription"
)

// Generator generates idempotency keys
type Generator struct{}

// NewGenerator creates a new idempotency key generator
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey generates an idempotency key from a scope and parameters.
// Parameter order does not matter.
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:8]))
}

// ValidateKey validates if an idempotency key matches expected parameters
func (g *Generator) ValidateKey(scope Scope, params map[string]interface{}, key string) bool {
	return g.GenerateKey(scope, params) == key
}

// InvoiceTransactionKey is stable across redeliveries of the same invoice event
func (g *Generator) InvoiceTransactionKey(providerInvoiceID string) string {
	return g.GenerateKey(ScopeInvoiceTransaction, map[string]interface{}{
		"invoice_id": providerInvoiceID,
	})
}

// NotificationKey identifies one notification of a kind about one provider object
func (g *Generator) NotificationKey(kind, providerObjectID string) string {
	return g.GenerateKey(ScopeNotification, map[string]interface{}{
		"kind":      kind,
		"object_id": providerObjectID,
	})
}

// DirectSubscriptionKey dedupes provider creation for one scope within a request
func (g *Generator) DirectSubscriptionKey(requestID, userID, residenceID, categoryID string) string {
	return g.GenerateKey(ScopeDirectSubscription, map[string]interface{}{
		"request_id":   requestID,
		"user_id":      userID,
		"residence_id": residenceID,
		"category_id":  categoryID,
	})
}
