package http

import (
	"context"
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"bizconsole/internal/domain/banking"
	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
)

// MockGateway implements banking.Gateway for handler tests
type MockGateway struct {
	ListBankAccountsFunc  func(ctx context.Context) ([]banking.BankAccount, error)
	ListTransactionsFunc  func(ctx context.Context, bankAccountID string) ([]matching.Transaction, error)
	GetTransactionFunc    func(ctx context.Context, id string) (*matching.Transaction, error)
	ListSuggestionsFunc   func(ctx context.Context, transactionID string) ([]matching.Suggestion, error)
	SubmitMatchesFunc     func(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error)
	DematchFunc           func(ctx context.Context, transactionID string) error
	DeleteTransactionFunc func(ctx context.Context, transactionID string) error
	ReconcileFunc         func(ctx context.Context, transactionIDs []string, period banking.Period) error

	mu        sync.Mutex
	submitted [][]matching.Allocation
}

func (m *MockGateway) ListBankAccounts(ctx context.Context) ([]banking.BankAccount, error) {
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
	return nil, banking.ErrTransactionNotFound
}

func (m *MockGateway) ListSuggestions(ctx context.Context, transactionID string) ([]matching.Suggestion, error) {
	if m.ListSuggestionsFunc != nil {
		return m.ListSuggestionsFunc(ctx, transactionID)
	}
	return nil, nil
}

func (m *MockGateway) SubmitMatches(ctx context.Context, transactionID string, matches []matching.Allocation) (*matching.MatchResult, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, matches)
	m.mu.Unlock()
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

func (m *MockGateway) Reconcile(ctx context.Context, transactionIDs []string, period banking.Period) error {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, transactionIDs, period)
	}
	return nil
}

func (m *MockGateway) Submitted() [][]matching.Allocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitted
}

// MockMatchLogRepo implements matchlog.Repository
type MockMatchLogRepo struct {
	CreateFunc func(ctx context.Context, params matchlog.CreateParams) (*matchlog.Entry, error)
	ListFunc   func(ctx context.Context, filter matchlog.ListFilter) ([]*matchlog.Entry, error)
}

func (m *MockMatchLogRepo) Create(ctx context.Context, params matchlog.CreateParams) (*matchlog.Entry, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &matchlog.Entry{ID: "entry-1", TransactionID: params.TransactionID, Action: params.Action}, nil
}

func (m *MockMatchLogRepo) List(ctx context.Context, filter matchlog.ListFilter) ([]*matchlog.Entry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}

// textExporter writes one line per entry
type textExporter struct{}

func (textExporter) WriteEntries(w io.Writer, entries []*matchlog.Entry) error {
	for _, e := range entries {
		if _, err := io.WriteString(w, e.TransactionID+" "+string(e.Action)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (textExporter) ContentType() string { return "text/plain" }
func (textExporter) Extension() string   { return "txt" }

// backendErr mimics the console API client's error type
type backendErr struct {
	status int
	msg    string
}

func (e *backendErr) Error() string          { return e.msg }
func (e *backendErr) BackendMessage() string { return e.msg }
func (e *backendErr) HTTPStatus() int        { return e.status }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func creditTx(id string) *matching.Transaction {
	return &matching.Transaction{
		ID:              id,
		BankAccountID:   "acc-1",
		Amount:          dec("10000"),
		TransactionType: matching.Credit,
		Status:          matching.StatusUncategorized,
	}
}

func invoiceSuggestions() []matching.Suggestion {
	return []matching.Suggestion{
		{ID: "INV-A", Type: matching.EntityInvoice, Amount: dec("6000"), PendingAmount: dec("6000"), MatchScore: 0.95},
		{ID: "INV-B", Type: matching.EntityInvoice, Amount: dec("5000"), PendingAmount: dec("5000"), MatchScore: 0.7},
		{ID: "INV-C", Type: matching.EntityInvoice, Amount: dec("3000"), PendingAmount: dec("3000"), MatchScore: 0.4},
	}
}

// standardGateway serves creditTx and invoiceSuggestions for any id.
func standardGateway() *MockGateway {
	return &MockGateway{
		GetTransactionFunc: func(ctx context.Context, id string) (*matching.Transaction, error) {
			return creditTx(id), nil
		},
		ListSuggestionsFunc: func(ctx context.Context, transactionID string) ([]matching.Suggestion, error) {
			return invoiceSuggestions(), nil
		},
	}
}
