package matching

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// AcceptAmount is the amount submitted when a suggestion is accepted as-is:
// the smaller of the suggestion's pending amount and the transaction amount.
func AcceptAmount(tx Transaction, s Suggestion) decimal.Decimal {
	return decimal.Min(s.PendingAmount, tx.Amount)
}

// AcceptSuggestion submits a single suggested candidate directly, bypassing manual entry.
// A suggestion whose pending amount is larger than the transaction is refused before
// anything is sent.
func AcceptSuggestion(ctx context.Context, tx Transaction, s Suggestion, submitter Submitter) (*MatchResult, error) {
	if !s.PendingAmount.IsPositive() {
		return nil, fmt.Errorf("%w: suggestion %s has nothing outstanding", ErrInvalidInput, s.ID)
	}
	if s.PendingAmount.GreaterThan(tx.Amount) {
		return nil, fmt.Errorf("%w: pending %s is more than the transaction amount %s", ErrExceedsTransactionRemaining, s.PendingAmount.StringFixed(2), tx.Amount.StringFixed(2))
	}

	allocator := NewAllocator(tx)
	if err := allocator.SetAllocation(s.Type, s.ID, AcceptAmount(tx, s), s.Candidate()); err != nil {
		return nil, err
	}
	return allocator.Commit(ctx, submitter)
}

// EnsureMutable refuses destructive actions (dematch, delete) on reconciled transactions.
func EnsureMutable(tx Transaction) error {
	if tx.IsReconciled {
		return fmt.Errorf("%w: %s", ErrLocked, tx.ID)
	}
	return nil
}
