package banking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bizconsole/internal/domain/matching"
)

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSuggestionNotFound  = errors.New("suggestion not found")
	ErrAlreadyMatched      = errors.New("transaction is already fully matched")
	ErrInvalidPeriod       = errors.New("invalid reconciliation period")
	ErrMissingAccountID    = errors.New("bank account ID is required")
)

// BankAccount is a bank account known to the backend.
type BankAccount struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	BankName       string          `json:"bank_name,omitempty"`
	AccountNumber  string          `json:"account_number,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

const periodLayout = "2006-01-02"

// Period is an inclusive date range, formatted YYYY-MM-DD.
type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Validate checks both dates parse and From is not after To.
func (p Period) Validate() error {
	from, err := time.Parse(periodLayout, p.From)
	if err != nil {
		return fmt.Errorf("%w: from %q is not YYYY-MM-DD", ErrInvalidPeriod, p.From)
	}
	to, err := time.Parse(periodLayout, p.To)
	if err != nil {
		return fmt.Errorf("%w: to %q is not YYYY-MM-DD", ErrInvalidPeriod, p.To)
	}
	if from.After(to) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidPeriod, p.From, p.To)
	}
	return nil
}

// ReconcileParams lists the transactions to lock for a period.
type ReconcileParams struct {
	TransactionIDs []string `json:"transactionIds"`
	Period         Period   `json:"period"`
}

func (p ReconcileParams) Validate() error {
	if len(p.TransactionIDs) == 0 {
		return fmt.Errorf("%w: no transactions to reconcile", matching.ErrInvalidInput)
	}
	for _, id := range p.TransactionIDs {
		if id == "" {
			return fmt.Errorf("%w: empty transaction ID", matching.ErrInvalidInput)
		}
	}
	return p.Period.Validate()
}

// AllocationInput is one edit to an open matching session. Amount is the raw text the
// user typed; anything unparseable counts as zero and clears the allocation.
type AllocationInput struct {
	EntityType matching.EntityType
	EntityID   string
	Amount     string
}
