package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bizconsole/internal/domain/automatch"
)

// Sweeper runs an automatch sweep.
type Sweeper interface {
	SweepAll(ctx context.Context) (*automatch.SweepResult, error)
	Sweep(ctx context.Context, bankAccountIDs []string) (*automatch.SweepResult, error)
}

// AutomatchJob accepts high-confidence suggestions across bank accounts.
// With no account ids it sweeps every account.
type AutomatchJob struct {
	sweeper    Sweeper
	accountIDs []string
}

func NewAutomatchJob(sweeper Sweeper, accountIDs ...string) *AutomatchJob {
	return &AutomatchJob{sweeper: sweeper, accountIDs: accountIDs}
}

func (j *AutomatchJob) Execute(ctx context.Context) error {
	var (
		result *automatch.SweepResult
		err    error
	)
	if len(j.accountIDs) == 0 {
		result, err = j.sweeper.SweepAll(ctx)
	} else {
		result, err = j.sweeper.Sweep(ctx, j.accountIDs)
	}
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	log.Printf("Automatch sweep: checked=%d accepted=%d skipped=%d errors=%d",
		result.Checked, result.Accepted, result.Skipped, len(result.Errors))
	if len(result.Errors) > 0 {
		return fmt.Errorf("sweep completed with %d errors", len(result.Errors))
	}
	return nil
}

func (j *AutomatchJob) Key() string {
	if len(j.accountIDs) == 0 {
		return "all-accounts"
	}
	return strings.Join(j.accountIDs, ",")
}

func (j *AutomatchJob) Description() string {
	return "Automatch sweep"
}

// Pruner drops idle matching sessions.
type Pruner interface {
	Prune() int
}

// SessionPruneJob clears abandoned matching sessions.
type SessionPruneJob struct {
	store Pruner
}

func NewSessionPruneJob(store Pruner) *SessionPruneJob {
	return &SessionPruneJob{store: store}
}

func (j *SessionPruneJob) Execute(ctx context.Context) error {
	if n := j.store.Prune(); n > 0 {
		log.Printf("Pruned %d idle matching sessions", n)
	}
	return nil
}

func (j *SessionPruneJob) Key() string         { return "matching-sessions" }
func (j *SessionPruneJob) Description() string { return "Session prune" }
