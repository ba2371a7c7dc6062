package banking

import (
	"context"

	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
)

// Gateway is the reconciliation backend as seen by this service.
// Implemented by the console API client in the infrastructure layer.
type Gateway interface {
	matching.Submitter

	ListBankAccounts(ctx context.Context) ([]BankAccount, error)
	ListTransactions(ctx context.Context, bankAccountID string) ([]matching.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*matching.Transaction, error)
	ListSuggestions(ctx context.Context, transactionID string) ([]matching.Suggestion, error)
	Dematch(ctx context.Context, transactionID string) error
	DeleteTransaction(ctx context.Context, transactionID string) error
	Reconcile(ctx context.Context, transactionIDs []string, period Period) error
}

// Recorder keeps a history of accepted backend calls.
type Recorder interface {
	Record(ctx context.Context, params matchlog.CreateParams) error
}
