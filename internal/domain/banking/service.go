package banking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
)

// Service drives the matching workflow against the backend.
type Service struct {
	gateway  Gateway
	sessions *matching.Store
	recorder Recorder
}

// NewService creates a new banking service. recorder may be nil.
func NewService(gateway Gateway, sessions *matching.Store, recorder Recorder) *Service {
	return &Service{gateway: gateway, sessions: sessions, recorder: recorder}
}

func (s *Service) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	return s.gateway.ListBankAccounts(ctx)
}

func (s *Service) ListTransactions(ctx context.Context, bankAccountID string) ([]matching.Transaction, error) {
	if bankAccountID == "" {
		return nil, ErrMissingAccountID
	}
	return s.gateway.ListTransactions(ctx, bankAccountID)
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*matching.Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: transaction ID is required", matching.ErrInvalidInput)
	}
	return s.gateway.GetTransaction(ctx, id)
}

// Suggestions returns the backend's scored candidates for a transaction.
func (s *Service) Suggestions(ctx context.Context, transactionID string) ([]matching.Suggestion, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction ID is required", matching.ErrInvalidInput)
	}
	return s.gateway.ListSuggestions(ctx, transactionID)
}

// OpenMatching starts a matching session for a transaction that can still be matched.
func (s *Service) OpenMatching(ctx context.Context, transactionID string) (*matching.Session, error) {
	tx, err := s.matchableTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	suggestions, err := s.gateway.ListSuggestions(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	session := s.sessions.Open(*tx, suggestions)
	log.Printf("Opened matching session %s for transaction %s (%d candidates)", session.ID, tx.ID, len(suggestions))
	return session, nil
}

// Session returns an open matching session.
func (s *Service) Session(sessionID string) (*matching.Session, error) {
	return s.sessions.Get(sessionID)
}

// CloseSession discards a session without submitting it.
func (s *Service) CloseSession(sessionID string) {
	s.sessions.Discard(sessionID)
}

// SetAllocation applies one edit to a session and returns the updated totals.
func (s *Service) SetAllocation(sessionID string, input AllocationInput) (*matching.Summary, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	amount := matching.ParseAmount(input.Amount)
	if !amount.IsPositive() {
		if err := session.Allocator.RemoveAllocation(input.EntityID); err != nil {
			return nil, err
		}
		summary := session.Allocator.Summary()
		return &summary, nil
	}

	candidate, entityType, ok := session.Candidate(input.EntityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a candidate for this transaction", matching.ErrInvalidInput, input.EntityID)
	}
	if input.EntityType == "" {
		input.EntityType = entityType
	}

	if err := session.Allocator.SetAllocation(input.EntityType, input.EntityID, amount, candidate); err != nil {
		return nil, err
	}
	summary := session.Allocator.Summary()
	return &summary, nil
}

// ClearAllocations empties a session.
func (s *Service) ClearAllocations(sessionID string) (*matching.Summary, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Allocator.Clear(); err != nil {
		return nil, err
	}
	summary := session.Allocator.Summary()
	return &summary, nil
}

// Commit refreshes the session's transaction and submits its allocations.
// The session is closed once the backend accepts them.
func (s *Service) Commit(ctx context.Context, sessionID string) (*matching.MatchResult, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	allocator := session.Allocator

	if allocator.Len() == 0 {
		return nil, matching.ErrEmptySelection
	}

	latest, err := s.gateway.GetTransaction(ctx, allocator.Transaction().ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh transaction: %w", err)
	}
	if err := allocator.UpdateTransaction(*latest); err != nil {
		return nil, err
	}

	allocations := allocator.Allocations()
	result, err := allocator.Commit(ctx, s.gateway)
	if err != nil {
		return nil, err
	}

	s.sessions.Discard(sessionID)
	s.record(ctx, matchlog.CreateParams{
		TransactionID: latest.ID,
		Action:        matchlog.ActionMatch,
		Allocations:   allocations,
		Status:        result.Status,
		Message:       result.Message,
	})
	return result, nil
}

// AcceptSuggestion matches a transaction to one of its suggestions in a single step.
func (s *Service) AcceptSuggestion(ctx context.Context, transactionID, suggestionID string) (*matching.MatchResult, error) {
	tx, err := s.matchableTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	suggestions, err := s.gateway.ListSuggestions(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}
	suggestion, err := findSuggestion(suggestions, suggestionID)
	if err != nil {
		return nil, err
	}

	result, err := matching.AcceptSuggestion(ctx, *tx, suggestion, s.gateway)
	if err != nil {
		return nil, err
	}

	s.sessions.DiscardTransaction(tx.ID)
	s.record(ctx, matchlog.CreateParams{
		TransactionID: tx.ID,
		Action:        matchlog.ActionAcceptSuggestion,
		Allocations: []matching.Allocation{{
			EntityType: suggestion.Type,
			EntityID:   suggestion.ID,
			Amount:     matching.AcceptAmount(*tx, suggestion),
		}},
		Status:  result.Status,
		Message: result.Message,
	})
	return result, nil
}

// Dematch removes all allocations from a transaction on the backend.
func (s *Service) Dematch(ctx context.Context, transactionID string) error {
	tx, err := s.mutableTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if err := s.gateway.Dematch(ctx, tx.ID); err != nil {
		return matching.NewSubmitError(err)
	}

	s.sessions.DiscardTransaction(tx.ID)
	s.record(ctx, matchlog.CreateParams{
		TransactionID: tx.ID,
		Action:        matchlog.ActionDematch,
		Status:        matching.StatusUncategorized,
	})
	return nil
}

// DeleteTransaction removes a transaction on the backend.
func (s *Service) DeleteTransaction(ctx context.Context, transactionID string) error {
	tx, err := s.mutableTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if err := s.gateway.DeleteTransaction(ctx, tx.ID); err != nil {
		return matching.NewSubmitError(err)
	}

	s.sessions.DiscardTransaction(tx.ID)
	s.record(ctx, matchlog.CreateParams{
		TransactionID: tx.ID,
		Action:        matchlog.ActionDelete,
	})
	return nil
}

// Reconcile locks the listed transactions for a period.
func (s *Service) Reconcile(ctx context.Context, params ReconcileParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := s.gateway.Reconcile(ctx, params.TransactionIDs, params.Period); err != nil {
		return matching.NewSubmitError(err)
	}

	log.Printf("Reconciled %d transaction(s) for %s..%s", len(params.TransactionIDs), params.Period.From, params.Period.To)
	for _, id := range params.TransactionIDs {
		s.sessions.DiscardTransaction(id)
		s.record(ctx, matchlog.CreateParams{
			TransactionID: id,
			Action:        matchlog.ActionReconcile,
			Message:       params.Period.From + ".." + params.Period.To,
		})
	}
	return nil
}

func (s *Service) matchableTransaction(ctx context.Context, transactionID string) (*matching.Transaction, error) {
	tx, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := matching.EnsureMutable(*tx); err != nil {
		return nil, err
	}
	if !matching.CanMatch(*tx) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMatched, tx.ID)
	}
	return tx, nil
}

func (s *Service) mutableTransaction(ctx context.Context, transactionID string) (*matching.Transaction, error) {
	tx, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := matching.EnsureMutable(*tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// record writes to the match log. Failures are logged and never fail the caller,
// the backend call has already succeeded.
func (s *Service) record(ctx context.Context, params matchlog.CreateParams) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, params); err != nil {
		log.Printf("Warning: failed to record %s for transaction %s: %v", params.Action, params.TransactionID, err)
	}
}

func findSuggestion(suggestions []matching.Suggestion, id string) (matching.Suggestion, error) {
	for _, sg := range suggestions {
		if sg.ID == id {
			return sg, nil
		}
	}
	return matching.Suggestion{}, fmt.Errorf("%w: %s", ErrSuggestionNotFound, id)
}

// IsNotFound reports whether err means the requested resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrSuggestionNotFound) ||
		errors.Is(err, matching.ErrSessionNotFound)
}
