package types

import (
	"encoding/json"
	"time"
)

// NotificationName identifies the kind of a billing notification
type NotificationName string

const (
	NotificationSubscriptionActivated NotificationName = "subscription.activated"
	NotificationInvoicePaid           NotificationName = "invoice.paid"
)

// Notification is the envelope published to the notification topic and
// delivered to the mailer endpoint
type Notification struct {
	ID             string           `json:"id"`
	Name           NotificationName `json:"name"`
	UserID         string           `json:"user_id"`
	ResidenceID    string           `json:"residence_id"`
	IdempotencyKey string           `json:"idempotency_key"`
	Timestamp      time.Time        `json:"timestamp"`
	Payload        json.RawMessage  `json:"payload"`
}
