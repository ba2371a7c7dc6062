package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"bizconsole/internal/domain/banking"
	"bizconsole/internal/domain/matching"
)

// MatchingHandler serves the interactive allocation workflow.
type MatchingHandler struct {
	service *banking.Service
}

func NewMatchingHandler(service *banking.Service) *MatchingHandler {
	return &MatchingHandler{service: service}
}

// AllocationRequest sets one allocation. Amount may be a JSON number or the raw text
// the user typed ("₹1,500.00").
type AllocationRequest struct {
	EntityType matching.EntityType `json:"entity_type,omitempty"`
	EntityID   string              `json:"entity_id"`
	Amount     json.RawMessage     `json:"amount"`
}

// SessionResponse is an open session with its current totals.
type SessionResponse struct {
	ID          string                `json:"id"`
	Suggestions []matching.Suggestion `json:"suggestions"`
	OpenedAt    time.Time             `json:"opened_at"`
	Summary     matching.Summary      `json:"summary"`
}

func newSessionResponse(s *matching.Session) SessionResponse {
	suggestions := s.Suggestions
	if suggestions == nil {
		suggestions = []matching.Suggestion{}
	}
	return SessionResponse{
		ID:          s.ID,
		Suggestions: suggestions,
		OpenedAt:    s.OpenedAt,
		Summary:     s.Allocator.Summary(),
	}
}

// HandleOpenSession starts a matching session for a transaction.
func (h *MatchingHandler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.OpenMatching(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (h *MatchingHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.PathValue("session"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *MatchingHandler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	h.service.CloseSession(r.PathValue("session"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetAllocation inserts, replaces or (for a zero amount) removes one allocation.
func (h *MatchingHandler) HandleSetAllocation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.EntityID == "" {
		writeBadRequest(w, "entity_id is required")
		return
	}

	summary, err := h.service.SetAllocation(r.PathValue("session"), banking.AllocationInput{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Amount:     amountText(req.Amount),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *MatchingHandler) HandleClearAllocations(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.ClearAllocations(r.PathValue("session"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleCommit submits the session's allocations to the backend.
func (h *MatchingHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Commit(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// amountText turns a JSON string or number into the text form the allocator parses.
func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
