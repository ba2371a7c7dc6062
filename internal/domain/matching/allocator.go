package matching

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	matchTracer       = otel.Tracer("bizconsole/matching")
	matchMeter        = otel.Meter("bizconsole/matching")
	commitTotal, _    = matchMeter.Int64Counter("matching.commit.total", metric.WithDescription("Allocation commits by outcome"))
	rejectedEdits, _  = matchMeter.Int64Counter("matching.allocation.rejected", metric.WithDescription("Allocation edits rejected by kind"))
	commitDuration, _ = matchMeter.Float64Histogram("matching.commit.duration", metric.WithDescription("Commit round-trip in seconds"), metric.WithUnit("s"))
)

// Amounts are compared after rescaling, so the exponent is kept to a range that
// rescales in constant time.
const maxAmountScale = 18

// Submitter sends an allocation set to the reconciliation backend.
type Submitter interface {
	SubmitMatches(ctx context.Context, transactionID string, matches []Allocation) (*MatchResult, error)
}

// Allocator tracks the working set of partial allocations for one transaction.
//
// Every mutation is validated before it is applied, so the set always satisfies:
// each amount is positive, no amount exceeds its candidate's outstanding balance,
// the sum never exceeds the transaction amount, and each entity appears once.
type Allocator struct {
	mu          sync.Mutex
	tx          Transaction
	allocations []Allocation
	committing  bool
	updatedAt   time.Time
}

// NewAllocator creates an empty allocator for tx.
func NewAllocator(tx Transaction) *Allocator {
	return &Allocator{
		tx:        tx,
		updatedAt: time.Now(),
	}
}

// Transaction returns the transaction snapshot the allocator works against.
func (a *Allocator) Transaction() Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tx
}

// UpdateTransaction replaces the transaction snapshot, e.g. after a refetch.
// Existing allocations are kept; Commit re-validates them against the new amount.
func (a *Allocator) UpdateTransaction(tx Transaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if tx.ID != a.tx.ID {
		return fmt.Errorf("%w: transaction %s cannot replace %s", ErrInvalidInput, tx.ID, a.tx.ID)
	}
	a.tx = tx
	a.touch()
	return nil
}

// SetAllocation inserts, replaces or removes the allocation for entityID.
// A non-positive amount removes the allocation and never fails.
func (a *Allocator) SetAllocation(entityType EntityType, entityID string, amount decimal.Decimal, candidate Candidate) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.committing {
		return ErrCommitInFlight
	}
	if !amount.IsPositive() {
		a.remove(entityID)
		return nil
	}
	if exp := amount.Exponent(); exp < -maxAmountScale || exp > maxAmountScale {
		return fmt.Errorf("%w: amount is out of range", ErrInvalidInput)
	}
	if err := a.validateTarget(entityType, entityID, candidate); err != nil {
		return err
	}

	remaining := a.tx.Amount.Sub(a.totalExcluding(entityID))
	if amount.GreaterThan(remaining) {
		rejectedEdits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", KindExceedsTransactionRemaining)))
		return fmt.Errorf("%w: %s is more than the remaining %s", ErrExceedsTransactionRemaining, amount.StringFixed(2), remaining.StringFixed(2))
	}
	if amount.GreaterThan(candidate.AmountOutstanding) {
		rejectedEdits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", KindExceedsCandidateOutstanding)))
		return fmt.Errorf("%w: %s is more than the %s outstanding on %s", ErrExceedsCandidateOutstanding, amount.StringFixed(2), candidate.AmountOutstanding.StringFixed(2), entityID)
	}

	alloc := Allocation{EntityType: entityType, EntityID: entityID, Amount: amount}
	if i := a.indexOf(entityID); i >= 0 {
		a.allocations[i] = alloc
	} else {
		a.allocations = append(a.allocations, alloc)
	}
	a.touch()
	return nil
}

// RemoveAllocation drops the allocation for entityID, if any.
func (a *Allocator) RemoveAllocation(entityID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.committing {
		return ErrCommitInFlight
	}
	a.remove(entityID)
	return nil
}

// TotalAllocated returns the sum of all current allocation amounts.
func (a *Allocator) TotalAllocated() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalExcluding("")
}

// Remaining returns the transaction amount not yet allocated.
func (a *Allocator) Remaining() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tx.Amount.Sub(a.totalExcluding(""))
}

// Allocations returns a copy of the current set in insertion order.
func (a *Allocator) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// Len returns the number of allocations.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocations)
}

// Clear empties the allocation set.
func (a *Allocator) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.committing {
		return ErrCommitInFlight
	}
	a.allocations = nil
	a.touch()
	return nil
}

// Summary returns the current totals for display.
func (a *Allocator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.totalExcluding("")
	return Summary{
		Transaction:    a.tx,
		Allocations:    a.snapshot(),
		TotalAllocated: total,
		Remaining:      a.tx.Amount.Sub(total),
		Committing:     a.committing,
		UpdatedAt:      a.updatedAt,
	}
}

// Commit submits the allocation set. On success the set is cleared; on failure it is
// left untouched so the user can adjust and retry.
func (a *Allocator) Commit(ctx context.Context, submitter Submitter) (*MatchResult, error) {
	a.mu.Lock()
	if a.committing {
		a.mu.Unlock()
		return nil, ErrCommitInFlight
	}
	if err := a.preflight(); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	a.committing = true
	tx := a.tx
	matches := a.snapshot()
	a.mu.Unlock()

	result, err := submit(ctx, submitter, tx, matches)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.committing = false
	if err != nil {
		return nil, err
	}
	a.allocations = nil
	a.touch()
	return result, nil
}

// preflight re-checks the set before it leaves the process. Callers hold a.mu.
func (a *Allocator) preflight() error {
	if len(a.allocations) == 0 {
		return ErrEmptySelection
	}
	if a.tx.IsReconciled {
		return ErrLocked
	}
	total := a.totalExcluding("")
	if total.GreaterThan(a.tx.Amount) {
		return fmt.Errorf("%w: allocated %s but the transaction is %s", ErrExceedsTransactionRemaining, total.StringFixed(2), a.tx.Amount.StringFixed(2))
	}
	return nil
}

func (a *Allocator) validateTarget(entityType EntityType, entityID string, candidate Candidate) error {
	if !entityType.IsValid() {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType)
	}
	if entityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	if candidate.ID != "" && candidate.ID != entityID {
		return fmt.Errorf("%w: candidate %s does not match entity %s", ErrInvalidInput, candidate.ID, entityID)
	}
	if want := a.tx.TransactionType.MatchableEntity(); entityType != want {
		return fmt.Errorf("%w: %s transactions are matched against %ss", ErrInvalidInput, a.tx.TransactionType, want)
	}
	return nil
}

func (a *Allocator) totalExcluding(entityID string) decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range a.allocations {
		if alloc.EntityID == entityID {
			continue
		}
		total = total.Add(alloc.Amount)
	}
	return total
}

func (a *Allocator) indexOf(entityID string) int {
	for i, alloc := range a.allocations {
		if alloc.EntityID == entityID {
			return i
		}
	}
	return -1
}

func (a *Allocator) remove(entityID string) {
	i := a.indexOf(entityID)
	if i < 0 {
		return
	}
	a.allocations = append(a.allocations[:i], a.allocations[i+1:]...)
	a.touch()
}

func (a *Allocator) snapshot() []Allocation {
	out := make([]Allocation, len(a.allocations))
	copy(out, a.allocations)
	return out
}

func (a *Allocator) touch() {
	a.updatedAt = time.Now()
}

// submit performs the backend round-trip with tracing and metrics.
func submit(ctx context.Context, submitter Submitter, tx Transaction, matches []Allocation) (*MatchResult, error) {
	ctx, span := matchTracer.Start(ctx, "matching.commit",
		trace.WithAttributes(
			attribute.String("transaction.id", tx.ID),
			attribute.Int("allocation.count", len(matches)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := submitter.SubmitMatches(ctx, tx.ID, matches)
	commitDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		commitTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		log.Printf("Match submission for transaction %s failed: %v", tx.ID, err)
		return nil, NewSubmitError(err)
	}
	if result == nil {
		result = &MatchResult{}
	}

	commitTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	span.SetAttributes(attribute.String("transaction.status", string(result.Status)))
	log.Printf("Submitted %d allocation(s) for transaction %s: status=%s", len(matches), tx.ID, result.Status)
	return result, nil
}
