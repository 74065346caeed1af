package handlers

import (
	"net/http"
)

func (rt *Router) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.workflow.GetStats(r.Context())
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
