package transaction

import "context"

type Repository interface {
	// UpsertByInvoiceID inserts the entry or overwrites the row that already
	// holds the same provider invoice id. The stored id and reference are kept.
	UpsertByInvoiceID(ctx context.Context, txn *Transaction) (*Transaction, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]*Transaction, error)
}
