package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"bizconsole/internal/domain/banking"
	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
)

// ErrorResponse is the body of every error the console API returns.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

const (
	kindNotFound       = "NotFound"
	kindAlreadyMatched = "AlreadyMatched"
	kindBadRequest     = "BadRequest"
	kindBackend        = "BackendError"
	kindInternal       = "Internal"
)

const maxBodySize = 64 << 10 // 64 KiB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Kind: kindBadRequest})
}

// writeError maps a service error onto a status code and kind. Anything it does not
// recognise is logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, msg := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		log.Printf("Error handling %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

type statusCoder interface {
	HTTPStatus() int
}

func classify(err error) (int, string, string) {
	var submitErr *matching.SubmitError
	var upstream statusCoder

	switch {
	case banking.IsNotFound(err):
		kind := kindNotFound
		if errors.Is(err, matching.ErrSessionNotFound) {
			kind = matching.KindSessionNotFound
		}
		return http.StatusNotFound, kind, err.Error()
	case errors.As(err, &submitErr):
		return http.StatusBadGateway, matching.KindSubmitError, submitErr.Message
	case errors.Is(err, banking.ErrAlreadyMatched):
		return http.StatusConflict, kindAlreadyMatched, err.Error()
	case errors.Is(err, matching.ErrLocked), errors.Is(err, matching.ErrCommitInFlight):
		return http.StatusConflict, matching.KindOf(err), err.Error()
	case matching.KindOf(err) != "":
		return http.StatusUnprocessableEntity, matching.KindOf(err), err.Error()
	case errors.Is(err, banking.ErrInvalidPeriod),
		errors.Is(err, banking.ErrMissingAccountID),
		errors.Is(err, matchlog.ErrInvalidAction):
		return http.StatusUnprocessableEntity, matching.KindInvalidInput, err.Error()
	case errors.As(err, &upstream):
		return http.StatusBadGateway, kindBackend, err.Error()
	default:
		return http.StatusInternalServerError, kindInternal, "Internal server error"
	}
}
