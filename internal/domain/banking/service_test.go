package banking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
)

// MockGateway is a mock implementation of Gateway interface
type MockGateway struct {
	ListBankAccountsFunc  func(ctx context.Context) ([]BankAccount, error)
	ListTransactionsFunc  func(ctx context.Context, bankAccountID string) ([]matching.Transaction, error)
	GetTransactionFunc    func(ctx context.Context, id string) (*matching.Transaction, error)
	ListSuggestionsFunc   func(ctx context.Context, transactionID string) ([]matching.Suggestion, error)
	SubmitMatchesFunc     func(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error)
	DematchFunc           func(ctx context.Context, transactionID string) error
	DeleteTransactionFunc func(ctx context.Context, transactionID string) error
	ReconcileFunc         func(ctx context.Context, transactionIDs []string, period Period) error

	submitCalls int
}

func (m *MockGateway) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	if m.ListBankAccountsFunc != nil {
		return m.ListBankAccountsFunc(ctx)
	}
	return nil, nil
}

func (m *MockGateway) ListTransactions(ctx context.Context, bankAccountID string) ([]matching.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, bankAccountID)
	}
	return nil, nil
}

func (m *MockGateway) GetTransaction(ctx context.Context, id string) (*matching.Transaction, error) {
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, id)
	}
	return nil, ErrTransactionNotFound
}

func (m *MockGateway) ListSuggestions(ctx context.Context, transactionID string) ([]matching.Suggestion, error) {
	if m.ListSuggestionsFunc != nil {
		return m.ListSuggestionsFunc(ctx, transactionID)
	}
	return nil, nil
}

func (m *MockGateway) SubmitMatches(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error) {
	m.submitCalls++
	if m.SubmitMatchesFunc != nil {
		return m.SubmitMatchesFunc(ctx, transactionID, matches)
	}
	return &matching.MatchResult{Status: matching.StatusMatched}, nil
}

func (m *MockGateway) Dematch(ctx context.Context, transactionID string) error {
	if m.DematchFunc != nil {
		return m.DematchFunc(ctx, transactionID)
	}
	return nil
}

func (m *MockGateway) DeleteTransaction(ctx context.Context, transactionID string) error {
	if m.DeleteTransactionFunc != nil {
		return m.DeleteTransactionFunc(ctx, transactionID)
	}
	return nil
}

func (m *MockGateway) Reconcile(ctx context.Context, transactionIDs []string, period Period) error {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, transactionIDs, period)
	}
	return nil
}

// MockRecorder captures recorded match log entries
type MockRecorder struct {
	Entries []matchlog.CreateParams
	Err     error
}

func (m *MockRecorder) Record(ctx context.Context, params matchlog.CreateParams) error {
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, params)
	return nil
}

type apiErr struct{ msg string }

func (e *apiErr) Error() string          { return "API error (status 400): " + e.msg }
func (e *apiErr) BackendMessage() string { return e.msg }
func (e *apiErr) HTTPStatus() int        { return 400 }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testTx() *matching.Transaction {
	return &matching.Transaction{
		ID:              "txn-100",
		BankAccountID:   "acc-1",
		Amount:          d("10000"),
		TransactionType: matching.Credit,
		Status:          matching.StatusUncategorized,
	}
}

func testSuggestions() []matching.Suggestion {
	return []matching.Suggestion{
		{ID: "INV-A", Type: matching.EntityInvoice, Amount: d("6000"), PendingAmount: d("6000"), MatchScore: 0.95},
		{ID: "INV-B", Type: matching.EntityInvoice, Amount: d("5000"), PendingAmount: d("5000"), MatchScore: 0.6},
		{ID: "INV-C", Type: matching.EntityInvoice, Amount: d("3000"), PendingAmount: d("3000"), MatchScore: 0.4},
	}
}

func newTestService(gw *MockGateway, rec *MockRecorder) *Service {
	if gw.GetTransactionFunc == nil {
		gw.GetTransactionFunc = func(ctx context.Context, id string) (*matching.Transaction, error) {
			if id != "txn-100" {
				return nil, ErrTransactionNotFound
			}
			return testTx(), nil
		}
	}
	if gw.ListSuggestionsFunc == nil {
		gw.ListSuggestionsFunc = func(ctx context.Context, transactionID string) ([]matching.Suggestion, error) {
			return testSuggestions(), nil
		}
	}
	var recorder Recorder
	if rec != nil {
		recorder = rec
	}
	return NewService(gw, matching.NewStore(time.Minute), recorder)
}

func TestService_ListTransactionsRequiresAccount(t *testing.T) {
	svc := newTestService(&MockGateway{}, nil)
	if _, err := svc.ListTransactions(context.Background(), ""); !errors.Is(err, ErrMissingAccountID) {
		t.Errorf("expected ErrMissingAccountID, got %v", err)
	}
}

func TestService_OpenMatching(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tx *matching.Transaction)
		txID    string
		wantErr error
	}{
		{name: "uncategorized", txID: "txn-100"},
		{name: "partially matched", txID: "txn-100", mutate: func(tx *matching.Transaction) { tx.Status = matching.StatusPartiallyMatched }},
		{name: "matched", txID: "txn-100", mutate: func(tx *matching.Transaction) { tx.Status = matching.StatusMatched }, wantErr: ErrAlreadyMatched},
		{name: "reconciled", txID: "txn-100", mutate: func(tx *matching.Transaction) { tx.IsReconciled = true }, wantErr: matching.ErrLocked},
		{name: "unknown", txID: "txn-404", wantErr: ErrTransactionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &MockGateway{
				GetTransactionFunc: func(ctx context.Context, id string) (*matching.Transaction, error) {
					if id != "txn-100" {
						return nil, ErrTransactionNotFound
					}
					tx := testTx()
					if tt.mutate != nil {
						tt.mutate(tx)
					}
					return tx, nil
				},
			}
			svc := newTestService(gw, nil)

			session, err := svc.OpenMatching(context.Background(), tt.txID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("OpenMatching() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && len(session.Suggestions) != 3 {
				t.Errorf("expected 3 candidates on the session, got %d", len(session.Suggestions))
			}
		})
	}
}

func TestService_SetAllocation(t *testing.T) {
	svc := newTestService(&MockGateway{}, nil)
	session, err := svc.OpenMatching(context.Background(), "txn-100")
	if err != nil {
		t.Fatalf("OpenMatching() error = %v", err)
	}

	summary, err := svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-A", Amount: "6,000"})
	if err != nil {
		t.Fatalf("SetAllocation() error = %v", err)
	}
	if !summary.Remaining.Equal(d("4000")) {
		t.Errorf("remaining = %s, want 4000", summary.Remaining)
	}
	if summary.Allocations[0].EntityType != matching.EntityInvoice {
		t.Errorf("entity type not taken from the suggestion: %q", summary.Allocations[0].EntityType)
	}

	_, err = svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-B", Amount: "5000"})
	if !errors.Is(err, matching.ErrExceedsTransactionRemaining) {
		t.Errorf("expected ErrExceedsTransactionRemaining, got %v", err)
	}

	_, err = svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-C", Amount: "3500"})
	if !errors.Is(err, matching.ErrExceedsCandidateOutstanding) {
		t.Errorf("expected ErrExceedsCandidateOutstanding, got %v", err)
	}

	_, err = svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-Z", Amount: "10"})
	if !errors.Is(err, matching.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown candidate, got %v", err)
	}

	summary, err = svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-A", Amount: ""})
	if err != nil {
		t.Fatalf("clearing an allocation failed: %v", err)
	}
	if len(summary.Allocations) != 0 {
		t.Errorf("expected allocation to be cleared, got %d", len(summary.Allocations))
	}

	if _, err := svc.SetAllocation("missing", AllocationInput{EntityID: "INV-A", Amount: "1"}); !errors.Is(err, matching.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestService_ClearAllocations(t *testing.T) {
	svc := newTestService(&MockGateway{}, nil)
	session, _ := svc.OpenMatching(context.Background(), "txn-100")
	if _, err := svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-C", Amount: "3000"}); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.ClearAllocations(session.ID)
	if err != nil {
		t.Fatalf("ClearAllocations() error = %v", err)
	}
	if !summary.Remaining.Equal(d("10000")) {
		t.Errorf("remaining = %s, want 10000", summary.Remaining)
	}
}

func TestService_CommitSuccess(t *testing.T) {
	rec := &MockRecorder{}
	gw := &MockGateway{
		SubmitMatchesFunc: func(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error) {
			if len(matches) != 2 {
				t.Errorf("expected 2 matches, got %d", len(matches))
			}
			return &matching.MatchResult{Status: matching.StatusMatched, AllocationIDs: []string{"a1", "a2"}}, nil
		},
	}
	svc := newTestService(gw, rec)

	session, _ := svc.OpenMatching(context.Background(), "txn-100")
	svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-A", Amount: "6000"})
	svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-B", Amount: "4000"})

	result, err := svc.Commit(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if result.Status != matching.StatusMatched {
		t.Errorf("status = %q", result.Status)
	}
	if _, err := svc.Session(session.ID); !errors.Is(err, matching.ErrSessionNotFound) {
		t.Error("session should be closed after a successful commit")
	}
	if len(rec.Entries) != 1 || rec.Entries[0].Action != matchlog.ActionMatch || len(rec.Entries[0].Allocations) != 2 {
		t.Errorf("unexpected match log entries: %+v", rec.Entries)
	}
}

func TestService_CommitFailureKeepsSession(t *testing.T) {
	rec := &MockRecorder{}
	gw := &MockGateway{
		SubmitMatchesFunc: func(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error) {
			return nil, &apiErr{msg: "Invoice INV-A was paid in the meantime"}
		},
	}
	svc := newTestService(gw, rec)

	session, _ := svc.OpenMatching(context.Background(), "txn-100")
	svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-A", Amount: "6000"})

	_, err := svc.Commit(context.Background(), session.ID)
	var submitErr *matching.SubmitError
	if !errors.As(err, &submitErr) {
		t.Fatalf("expected SubmitError, got %v", err)
	}
	if submitErr.Message != "Invoice INV-A was paid in the meantime" {
		t.Errorf("message = %q", submitErr.Message)
	}

	kept, err := svc.Session(session.ID)
	if err != nil {
		t.Fatalf("session should survive a failed commit: %v", err)
	}
	if kept.Allocator.Len() != 1 {
		t.Errorf("allocations should be kept, got %d", kept.Allocator.Len())
	}
	if len(rec.Entries) != 0 {
		t.Error("failed commits must not be recorded")
	}
}

func TestService_CommitEmptyNeverCallsBackend(t *testing.T) {
	gw := &MockGateway{}
	svc := newTestService(gw, nil)
	session, _ := svc.OpenMatching(context.Background(), "txn-100")

	_, err := svc.Commit(context.Background(), session.ID)
	if !errors.Is(err, matching.ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	if gw.submitCalls != 0 {
		t.Errorf("backend called %d times", gw.submitCalls)
	}
}

func TestService_CommitAfterReconcileIsLocked(t *testing.T) {
	reconciled := false
	gw := &MockGateway{
		GetTransactionFunc: func(ctx context.Context, id string) (*matching.Transaction, error) {
			tx := testTx()
			tx.IsReconciled = reconciled
			return tx, nil
		},
	}
	svc := newTestService(gw, nil)
	session, _ := svc.OpenMatching(context.Background(), "txn-100")
	svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-C", Amount: "3000"})

	reconciled = true
	_, err := svc.Commit(context.Background(), session.ID)
	if !errors.Is(err, matching.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if gw.submitCalls != 0 {
		t.Error("locked commit reached the backend")
	}
}

func TestService_RecorderFailureDoesNotFailCommit(t *testing.T) {
	svc := newTestService(&MockGateway{}, &MockRecorder{Err: errors.New("db down")})
	session, _ := svc.OpenMatching(context.Background(), "txn-100")
	svc.SetAllocation(session.ID, AllocationInput{EntityID: "INV-C", Amount: "3000"})

	if _, err := svc.Commit(context.Background(), session.ID); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestService_AcceptSuggestion(t *testing.T) {
	t.Run("accepts and records", func(t *testing.T) {
		rec := &MockRecorder{}
		var submitted []matching.Allocation
		gw := &MockGateway{
			SubmitMatchesFunc: func(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error) {
				submitted = matches
				return &matching.MatchResult{Status: matching.StatusPartiallyMatched}, nil
			},
		}
		svc := newTestService(gw, rec)

		if _, err := svc.AcceptSuggestion(context.Background(), "txn-100", "INV-A"); err != nil {
			t.Fatalf("AcceptSuggestion() error = %v", err)
		}
		if len(submitted) != 1 || !submitted[0].Amount.Equal(d("6000")) {
			t.Errorf("unexpected submission %+v", submitted)
		}
		if len(rec.Entries) != 1 || rec.Entries[0].Action != matchlog.ActionAcceptSuggestion {
			t.Errorf("unexpected match log entries: %+v", rec.Entries)
		}
	})

	t.Run("unknown suggestion", func(t *testing.T) {
		svc := newTestService(&MockGateway{}, nil)
		_, err := svc.AcceptSuggestion(context.Background(), "txn-100", "INV-Q")
		if !errors.Is(err, ErrSuggestionNotFound) {
			t.Errorf("expected ErrSuggestionNotFound, got %v", err)
		}
		if !IsNotFound(err) {
			t.Error("IsNotFound should report a missing suggestion")
		}
	})
}

func TestService_LockedTransactionsRefuseDestructiveActions(t *testing.T) {
	called := false
	gw := &MockGateway{
		GetTransactionFunc: func(ctx context.Context, id string) (*matching.Transaction, error) {
			tx := testTx()
			tx.IsReconciled = true
			return tx, nil
		},
		DematchFunc: func(ctx context.Context, transactionID string) error {
			called = true
			return nil
		},
		DeleteTransactionFunc: func(ctx context.Context, transactionID string) error {
			called = true
			return nil
		},
	}
	svc := newTestService(gw, nil)

	if err := svc.Dematch(context.Background(), "txn-100"); !errors.Is(err, matching.ErrLocked) {
		t.Errorf("Dematch() error = %v, want ErrLocked", err)
	}
	if err := svc.DeleteTransaction(context.Background(), "txn-100"); !errors.Is(err, matching.ErrLocked) {
		t.Errorf("DeleteTransaction() error = %v, want ErrLocked", err)
	}
	if called {
		t.Error("backend was called for a locked transaction")
	}
}

func TestService_DematchRecords(t *testing.T) {
	rec := &MockRecorder{}
	svc := newTestService(&MockGateway{}, rec)

	if err := svc.Dematch(context.Background(), "txn-100"); err != nil {
		t.Fatalf("Dematch() error = %v", err)
	}
	if len(rec.Entries) != 1 || rec.Entries[0].Action != matchlog.ActionDematch {
		t.Errorf("unexpected match log entries: %+v", rec.Entries)
	}
}

func TestService_DeleteSurfacesBackendMessage(t *testing.T) {
	gw := &MockGateway{
		DeleteTransactionFunc: func(ctx context.Context, transactionID string) error {
			return &apiErr{msg: "Transaction has allocations"}
		},
	}
	svc := newTestService(gw, nil)

	err := svc.DeleteTransaction(context.Background(), "txn-100")
	if err == nil || err.Error() != "Transaction has allocations" {
		t.Errorf("DeleteTransaction() error = %v", err)
	}
}

func TestService_Reconcile(t *testing.T) {
	valid := Period{From: "2026-09-01", To: "2026-09-30"}

	tests := []struct {
		name    string
		params  ReconcileParams
		wantErr error
	}{
		{name: "valid", params: ReconcileParams{TransactionIDs: []string{"txn-1", "txn-2"}, Period: valid}},
		{name: "empty list", params: ReconcileParams{Period: valid}, wantErr: matching.ErrInvalidInput},
		{name: "blank id", params: ReconcileParams{TransactionIDs: []string{""}, Period: valid}, wantErr: matching.ErrInvalidInput},
		{name: "reversed period", params: ReconcileParams{TransactionIDs: []string{"txn-1"}, Period: Period{From: "2026-10-01", To: "2026-09-01"}}, wantErr: ErrInvalidPeriod},
		{name: "bad date", params: ReconcileParams{TransactionIDs: []string{"txn-1"}, Period: Period{From: "01/09/2026", To: "2026-09-30"}}, wantErr: ErrInvalidPeriod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &MockRecorder{}
			var sent []string
			gw := &MockGateway{
				ReconcileFunc: func(ctx context.Context, transactionIDs []string, period Period) error {
					sent = transactionIDs
					return nil
				},
			}
			svc := newTestService(gw, rec)

			err := svc.Reconcile(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Reconcile() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if sent != nil {
					t.Error("invalid request reached the backend")
				}
				return
			}
			if len(rec.Entries) != len(tt.params.TransactionIDs) {
				t.Errorf("recorded %d entries, want %d", len(rec.Entries), len(tt.params.TransactionIDs))
			}
		})
	}
}

func TestPeriod_Validate(t *testing.T) {
	tests := []struct {
		period  Period
		wantErr bool
	}{
		{period: Period{From: "2026-01-01", To: "2026-01-31"}},
		{period: Period{From: "2026-01-31", To: "2026-01-31"}},
		{period: Period{From: "2026-02-01", To: "2026-01-31"}, wantErr: true},
		{period: Period{From: "", To: "2026-01-31"}, wantErr: true},
		{period: Period{From: "2026-13-01", To: "2026-12-31"}, wantErr: true},
	}

	for _, tt := range tests {
		err := tt.period.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.period, err, tt.wantErr)
		}
	}
}
