package automatch

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"bizconsole/internal/domain/banking"
	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
	"bizconsole/internal/shared/messages"
)

const (
	// DefaultMinScore is the lowest suggestion score accepted without a human
	DefaultMinScore = 0.9

	// DefaultWorkerCount is the default number of concurrent workers for a sweep
	DefaultWorkerCount = 4
)

var (
	sweepMeter      = otel.Meter("bizconsole/automatch")
	sweepOutcome, _ = sweepMeter.Int64Counter("automatch.transactions", metric.WithDescription("Transactions handled by automatch sweeps, by outcome"))
)

// Backend is the part of the reconciliation backend a sweep needs.
type Backend interface {
	matching.Submitter
	ListBankAccounts(ctx context.Context) ([]banking.BankAccount, error)
	ListTransactions(ctx context.Context, bankAccountID string) ([]matching.Transaction, error)
	ListSuggestions(ctx context.Context, transactionID string) ([]matching.Suggestion, error)
}

// Messenger sends push notifications.
// Implemented by the Firebase FCM client in the infrastructure layer.
type Messenger interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// Recorder keeps a history of accepted suggestions.
type Recorder interface {
	Record(ctx context.Context, params matchlog.CreateParams) error
}

// Options tunes a sweep.
type Options struct {
	MinScore    float64
	WorkerCount int
}

func (o Options) withDefaults() Options {
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	if o.WorkerCount <= 0 {
		o.WorkerCount = DefaultWorkerCount
	}
	return o
}

// SweepResult contains the results of a sweep
type SweepResult struct {
	Accounts int
	Checked  int
	Accepted int
	Skipped  int
	Errors   []string
	Duration time.Duration
}

type sweepJob struct {
	tx matching.Transaction
}

type sweepWorkerResult struct {
	accepted bool
	err      error
}

// Service accepts high-confidence suggestions for uncategorized transactions.
type Service struct {
	backend   Backend
	recorder  Recorder
	messenger Messenger
	tokens    []string
	messages  *messages.Messages
	opts      Options
}

// NewService creates a new automatch service. recorder and messenger may be nil.
func NewService(backend Backend, recorder Recorder, opts Options) *Service {
	return &Service{
		backend:  backend,
		recorder: recorder,
		opts:     opts.withDefaults(),
	}
}

// WithNotifications enables a push notification to tokens after each sweep that changed something.
func (s *Service) WithNotifications(messenger Messenger, tokens []string, msgs *messages.Messages) *Service {
	s.messenger = messenger
	s.tokens = tokens
	s.messages = msgs
	return s
}

// SweepAll runs a sweep over every bank account.
func (s *Service) SweepAll(ctx context.Context) (*SweepResult, error) {
	accounts, err := s.backend.ListBankAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		ids = append(ids, acc.ID)
	}
	return s.Sweep(ctx, ids)
}

// Sweep runs over the given bank accounts. Accounts that cannot be listed are reported
// in Errors and do not stop the others.
func (s *Service) Sweep(ctx context.Context, bankAccountIDs []string) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{Accounts: len(bankAccountIDs), Errors: []string{}}

	var pending []matching.Transaction
	for _, accountID := range bankAccountIDs {
		txs, err := s.backend.ListTransactions(ctx, accountID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", accountID, err))
			continue
		}
		for _, tx := range txs {
			if tx.Status == matching.StatusUncategorized && !tx.IsReconciled {
				pending = append(pending, tx)
			}
		}
	}
	result.Checked = len(pending)

	if len(pending) > 0 {
		s.run(ctx, pending, result)
	}

	result.Duration = time.Since(start)
	log.Printf("Automatch sweep completed: accounts=%d, checked=%d, accepted=%d, skipped=%d, errors=%d (%v)",
		result.Accounts, result.Checked, result.Accepted, result.Skipped, len(result.Errors), result.Duration)

	s.notify(ctx, result)
	return result, nil
}

func (s *Service) run(ctx context.Context, pending []matching.Transaction, result *SweepResult) {
	jobs := make(chan sweepJob, len(pending))
	results := make(chan sweepWorkerResult, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < s.opts.WorkerCount; i++ {
		wg.Add(1)
		go s.worker(ctx, jobs, results, &wg)
	}

	for _, tx := range pending {
		jobs <- sweepJob{tx: tx}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		switch {
		case r.err != nil:
			result.Errors = append(result.Errors, r.err.Error())
		case r.accepted:
			result.Accepted++
		default:
			result.Skipped++
		}
	}
}

func (s *Service) worker(ctx context.Context, jobs <-chan sweepJob, results chan<- sweepWorkerResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- sweepWorkerResult{err: fmt.Errorf("transaction %s: %w", job.tx.ID, ctx.Err())}
		default:
			accepted, err := s.processTransaction(ctx, job.tx)
			if err != nil {
				err = fmt.Errorf("transaction %s: %w", job.tx.ID, err)
			}
			results <- sweepWorkerResult{accepted: accepted, err: err}
		}
	}
}

func (s *Service) processTransaction(ctx context.Context, tx matching.Transaction) (bool, error) {
	suggestions, err := s.backend.ListSuggestions(ctx, tx.ID)
	if err != nil {
		sweepOutcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return false, fmt.Errorf("failed to load suggestions: %w", err)
	}

	best, ok := BestSuggestion(tx, suggestions, s.opts.MinScore)
	if !ok {
		sweepOutcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
		return false, nil
	}

	result, err := matching.AcceptSuggestion(ctx, tx, best, s.backend)
	if err != nil {
		sweepOutcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return false, err
	}
	sweepOutcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "accepted")))

	if s.recorder != nil {
		err := s.recorder.Record(ctx, matchlog.CreateParams{
			TransactionID: tx.ID,
			Action:        matchlog.ActionAcceptSuggestion,
			Allocations: []matching.Allocation{{
				EntityType: best.Type,
				EntityID:   best.ID,
				Amount:     matching.AcceptAmount(tx, best),
			}},
			Status:  result.Status,
			Message: fmt.Sprintf("automatch score %.2f", best.MatchScore),
		})
		if err != nil {
			log.Printf("Warning: failed to record automatch for transaction %s: %v", tx.ID, err)
		}
	}
	return true, nil
}

// BestSuggestion picks the highest-scoring suggestion that can be accepted as-is for tx:
// score at least minScore, the entity type tx is matched against, and a pending amount
// that fits inside the transaction. Ties keep the backend's order.
func BestSuggestion(tx matching.Transaction, suggestions []matching.Suggestion, minScore float64) (matching.Suggestion, bool) {
	want := tx.TransactionType.MatchableEntity()
	var best matching.Suggestion
	found := false

	for _, sg := range suggestions {
		if sg.MatchScore < minScore || sg.Type != want {
			continue
		}
		if !sg.PendingAmount.IsPositive() || sg.PendingAmount.GreaterThan(tx.Amount) {
			continue
		}
		if !found || sg.MatchScore > best.MatchScore {
			best = sg
			found = true
		}
	}
	return best, found
}

func (s *Service) notify(ctx context.Context, result *SweepResult) {
	if s.messenger == nil || s.messages == nil || len(s.tokens) == 0 {
		return
	}

	vars := map[string]string{
		"accepted": strconv.Itoa(result.Accepted),
		"checked":  strconv.Itoa(result.Checked),
		"skipped":  strconv.Itoa(result.Skipped),
		"errors":   strconv.Itoa(len(result.Errors)),
	}

	var text messages.MessageText
	switch {
	case result.Accepted > 0:
		text = s.messages.AutomatchComplete.Format(vars)
	case len(result.Errors) > 0:
		text = s.messages.AutomatchFailed.Format(vars)
	default:
		return
	}

	data := map[string]string{"type": "automatch", "accepted": vars["accepted"], "errors": vars["errors"]}
	if err := s.messenger.SendMulticast(ctx, s.tokens, text.Title, text.Body, data); err != nil {
		log.Printf("Warning: failed to send automatch notification: %v", err)
	}
}
