package http

import (
	"net/http"
)

// HandleHealth is the liveness check.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
