package matching

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies what kind of document an allocation targets.
type EntityType string

const (
	EntityInvoice EntityType = "invoice"
	EntityBill    EntityType = "bill"
)

// IsValid reports whether t is a known entity type.
func (t EntityType) IsValid() bool {
	return t == EntityInvoice || t == EntityBill
}

// TransactionType is the direction of a bank movement.
type TransactionType string

const (
	Credit TransactionType = "Credit"
	Debit  TransactionType = "Debit"
)

// MatchableEntity returns the entity type a transaction of this type is matched against.
// Credits settle customer invoices, debits settle vendor bills.
func (t TransactionType) MatchableEntity() EntityType {
	if t == Debit {
		return EntityBill
	}
	return EntityInvoice
}

// Status is the backend-owned matching status of a transaction.
type Status string

const (
	StatusUncategorized    Status = "Uncategorized"
	StatusPartiallyMatched Status = "Partially Matched"
	StatusMatched          Status = "Matched"
)

// Transaction is the read-only snapshot of a bank movement being matched.
type Transaction struct {
	ID              string          `json:"id"`
	BankAccountID   string          `json:"bank_account_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType TransactionType `json:"transaction_type"`
	Status          Status          `json:"status"`
	IsReconciled    bool            `json:"is_reconciled"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	Date            string          `json:"date,omitempty"`
}

// Candidate is an invoice or bill the user may allocate part of a transaction to.
type Candidate struct {
	ID                string          `json:"id"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding"`
}

// Allocation attributes part of a transaction to one invoice or bill.
type Allocation struct {
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Suggestion is a backend-scored match candidate for a transaction.
type Suggestion struct {
	ID            string          `json:"id"`
	Type          EntityType      `json:"type"`
	Reference     string          `json:"reference"`
	Party         string          `json:"party"`
	Amount        decimal.Decimal `json:"amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	MatchScore    float64         `json:"match_score"`
	NameMatch     *bool           `json:"name_match,omitempty"`
	AmountMatch   *bool           `json:"amount_match,omitempty"`
	MatchReason   *string         `json:"match_reason,omitempty"`
}

// Candidate converts the suggestion into the candidate record used for allocation checks.
func (s Suggestion) Candidate() Candidate {
	return Candidate{
		ID:                s.ID,
		TotalAmount:       s.Amount,
		AmountOutstanding: s.PendingAmount,
	}
}

// MatchResult is what the backend reports after accepting an allocation set.
type MatchResult struct {
	Status        Status   `json:"status"`
	AllocationIDs []string `json:"allocation_ids"`
	Message       string   `json:"message,omitempty"`
}

// Summary is a point-in-time view of an allocator, used for display.
type Summary struct {
	Transaction    Transaction     `json:"transaction"`
	Allocations    []Allocation    `json:"allocations"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Remaining      decimal.Decimal `json:"remaining"`
	Committing     bool            `json:"committing"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CanMatch reports whether the matching workflow applies to tx at all.
func CanMatch(tx Transaction) bool {
	return !tx.IsReconciled && tx.Status != StatusMatched
}

var (
	amountReplacer = strings.NewReplacer(",", "", "₹", "", "$", "", " ", "", "\u00a0", "")

	// Plain decimal text only: at most 18 integer digits and 8 fractional digits.
	// Exponent forms such as 1e9 are not amounts a user types.
	amountPattern = regexp.MustCompile(`^-?\d{1,18}(\.\d{1,8})?$`)
)

// ParseAmount parses an amount typed by a user. Anything that is not a plain number yields zero.
func ParseAmount(text string) decimal.Decimal {
	cleaned := amountReplacer.Replace(strings.TrimSpace(text))
	if !amountPattern.MatchString(cleaned) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
