package http

import (
	"encoding/json"
	"net/http"

	"bizconsole/internal/domain/banking"
)

// BankingHandler serves accounts, transactions and the one-shot transaction actions.
type BankingHandler struct {
	service *banking.Service
}

func NewBankingHandler(service *banking.Service) *BankingHandler {
	return &BankingHandler{service: service}
}

type AcceptSuggestionRequest struct {
	SuggestionID string `json:"suggestionId"`
}

// HandleListBankAccounts returns every bank account the caller can see.
func (h *BankingHandler) HandleListBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListBankAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// HandleListTransactions returns the transactions of one bank account.
func (h *BankingHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *BankingHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *BankingHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.Suggestions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// HandleAcceptSuggestion submits one suggestion as-is for the transaction.
func (h *BankingHandler) HandleAcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req AcceptSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.SuggestionID == "" {
		writeBadRequest(w, "suggestionId is required")
		return
	}

	result, err := h.service.AcceptSuggestion(r.Context(), r.PathValue("id"), req.SuggestionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BankingHandler) HandleDematch(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Dematch(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BankingHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReconcile locks a batch of transactions for a period.
func (h *BankingHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var params banking.ReconcileParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.Reconcile(r.Context(), params); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reconciled": len(params.TransactionIDs)})
}
