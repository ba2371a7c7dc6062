package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bizconsole/internal/domain/matchlog"
)

type MatchLogHandler struct {
	service *matchlog.Service
}

func NewMatchLogHandler(service *matchlog.Service) *MatchLogHandler {
	return &MatchLogHandler{service: service}
}

// HandleList returns recorded submissions, newest first.
func (h *MatchLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*matchlog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleExport streams the filtered log as a spreadsheet download.
func (h *MatchLogHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf, filter); err != nil {
		writeError(w, r, err)
		return
	}

	contentType, ext := h.service.ExportFormat()
	filename := fmt.Sprintf("match-log-%s.%s", time.Now().Format("20060102"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (matchlog.ListFilter, bool) {
	q := r.URL.Query()
	filter := matchlog.ListFilter{
		TransactionID: q.Get("transaction_id"),
		Action:        matchlog.Action(q.Get("action")),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			writeBadRequest(w, "limit must be a number")
			return filter, false
		}
		filter.Limit = limit
	}
	return filter, true
}
