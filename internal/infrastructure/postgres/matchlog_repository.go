package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
)

const matchLogSchema = `
	CREATE TABLE IF NOT EXISTS match_log (
		id             UUID PRIMARY KEY,
		transaction_id TEXT        NOT NULL,
		action         TEXT        NOT NULL,
		allocations    JSONB       NOT NULL DEFAULT '[]'::jsonb,
		status         TEXT        NOT NULL DEFAULT '',
		message        TEXT        NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_match_log_transaction ON match_log (transaction_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_match_log_created ON match_log (created_at DESC);
`

type MatchLogRepository struct {
	db *DB
}

var _ matchlog.Repository = (*MatchLogRepository)(nil)

func NewMatchLogRepository(db *DB) *MatchLogRepository {
	return &MatchLogRepository{db: db}
}

// Migrate creates the match_log table if it does not exist.
func (r *MatchLogRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, matchLogSchema); err != nil {
		return fmt.Errorf("failed to migrate match_log: %w", err)
	}
	return nil
}

func (r *MatchLogRepository) Create(ctx context.Context, params matchlog.CreateParams) (*matchlog.Entry, error) {
	allocations := params.Allocations
	if allocations == nil {
		allocations = []matching.Allocation{}
	}
	allocationsJSON, err := json.Marshal(allocations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal allocations: %w", err)
	}

	query := `
		INSERT INTO match_log (id, transaction_id, action, allocations, status, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	entry := &matchlog.Entry{
		ID:            uuid.New().String(),
		TransactionID: params.TransactionID,
		Action:        params.Action,
		Allocations:   allocations,
		Status:        params.Status,
		Message:       params.Message,
	}
	err = r.db.QueryRowContext(ctx, query,
		entry.ID, entry.TransactionID, string(entry.Action), allocationsJSON, string(entry.Status), entry.Message,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert match log entry: %w", err)
	}

	return entry, nil
}

func (r *MatchLogRepository) List(ctx context.Context, filter matchlog.ListFilter) ([]*matchlog.Entry, error) {
	query, args := buildListQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list match log: %w", err)
	}
	defer rows.Close()

	var entries []*matchlog.Entry
	for rows.Next() {
		var (
			e               matchlog.Entry
			action, status  string
			allocationsJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &action, &allocationsJSON, &status, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match log entry: %w", err)
		}
		e.Action = matchlog.Action(action)
		e.Status = matching.Status(status)
		if err := json.Unmarshal(allocationsJSON, &e.Allocations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocations for entry %s: %w", e.ID, err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func buildListQuery(filter matchlog.ListFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.TransactionID != "" {
		args = append(args, filter.TransactionID)
		conditions = append(conditions, fmt.Sprintf("transaction_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT id, transaction_id, action, allocations, status, message, created_at FROM match_log")
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = matchlog.DefaultLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))

	return b.String(), args
}
