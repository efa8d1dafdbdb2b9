package types

// TransactionStatus mirrors the provider invoice status at the time the ledger
// entry was written (paid, open, void, uncollectible, draft)
type TransactionStatus string

const (
	TransactionStatusPaid          TransactionStatus = "paid"
	TransactionStatusOpen          TransactionStatus = "open"
	TransactionStatusVoid          TransactionStatus = "void"
	TransactionStatusUncollectible TransactionStatus = "uncollectible"
	TransactionStatusDraft         TransactionStatus = "draft"
)

func (s TransactionStatus) String() string {
	return string(s)
}
