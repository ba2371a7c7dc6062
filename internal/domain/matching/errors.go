package matching

import (
	"errors"
)

// Domain errors. All of them except SubmitError are raised before any network call.
var (
	ErrExceedsTransactionRemaining = errors.New("amount exceeds remaining transaction amount")
	ErrExceedsCandidateOutstanding = errors.New("amount exceeds outstanding balance")
	ErrEmptySelection              = errors.New("no allocations selected")
	ErrLocked                      = errors.New("transaction is reconciled and locked")
	ErrCommitInFlight              = errors.New("a commit is already in progress for this transaction")
	ErrInvalidInput                = errors.New("invalid input")
	ErrSessionNotFound             = errors.New("matching session not found")
)

// Kind names, stable for API consumers.
const (
	KindExceedsTransactionRemaining = "ExceedsTransactionRemaining"
	KindExceedsCandidateOutstanding = "ExceedsCandidateOutstanding"
	KindEmptySelection              = "EmptySelection"
	KindLocked                      = "Locked"
	KindSubmitError                 = "SubmitError"
	KindCommitInFlight              = "CommitInFlight"
	KindInvalidInput                = "InvalidInput"
	KindSessionNotFound             = "SessionNotFound"
)

// SubmitError is a failure reported by the backend (or the transport) while submitting matches.
// Message is shown to the user as-is.
type SubmitError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmitError) Error() string {
	return e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// backendMessager is implemented by transport errors that carry the backend's own message.
type backendMessager interface {
	BackendMessage() string
}

type statusCoder interface {
	HTTPStatus() int
}

// NewSubmitError wraps err so that the backend-supplied message is preserved verbatim.
func NewSubmitError(err error) *SubmitError {
	var se *SubmitError
	if errors.As(err, &se) {
		return se
	}

	submitErr := &SubmitError{Message: err.Error(), Err: err}

	var bm backendMessager
	if errors.As(err, &bm) && bm.BackendMessage() != "" {
		submitErr.Message = bm.BackendMessage()
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		submitErr.StatusCode = sc.HTTPStatus()
	}
	return submitErr
}

// KindOf maps err to its kind name. Unknown errors return an empty string.
func KindOf(err error) string {
	var se *SubmitError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return KindSubmitError
	case errors.Is(err, ErrExceedsTransactionRemaining):
		return KindExceedsTransactionRemaining
	case errors.Is(err, ErrExceedsCandidateOutstanding):
		return KindExceedsCandidateOutstanding
	case errors.Is(err, ErrEmptySelection):
		return KindEmptySelection
	case errors.Is(err, ErrLocked):
		return KindLocked
	case errors.Is(err, ErrCommitInFlight):
		return KindCommitInFlight
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrSessionNotFound):
		return KindSessionNotFound
	default:
		return ""
	}
}
