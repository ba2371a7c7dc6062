package matchlog

import (
	"errors"
	"time"

	"bizconsole/internal/domain/matching"
)

// Action is the kind of backend call an entry records.
type Action string

const (
	ActionMatch            Action = "match"
	ActionAcceptSuggestion Action = "accept_suggestion"
	ActionDematch          Action = "dematch"
	ActionDelete           Action = "delete"
	ActionReconcile        Action = "reconcile"
)

var validActions = map[Action]struct{}{
	ActionMatch:            {},
	ActionAcceptSuggestion: {},
	ActionDematch:          {},
	ActionDelete:           {},
	ActionReconcile:        {},
}

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	_, ok := validActions[a]
	return ok
}

// Domain errors
var (
	ErrInvalidAction = errors.New("invalid match log action")
	ErrMissingTxID   = errors.New("transaction ID is required")
)

// Entry is one accepted backend call.
type Entry struct {
	ID            string                `json:"id"`
	TransactionID string                `json:"transaction_id"`
	Action        Action                `json:"action"`
	Allocations   []matching.Allocation `json:"allocations"`
	Status        matching.Status       `json:"status,omitempty"`
	Message       string                `json:"message,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// CreateParams contains the fields for recording an entry
type CreateParams struct {
	TransactionID string
	Action        Action
	Allocations   []matching.Allocation
	Status        matching.Status
	Message       string
}

func (p CreateParams) Validate() error {
	if p.TransactionID == "" {
		return ErrMissingTxID
	}
	if !p.Action.IsValid() {
		return ErrInvalidAction
	}
	return nil
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	TransactionID string
	Action        Action
	Limit         int
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Normalize clamps the limit into range.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}
