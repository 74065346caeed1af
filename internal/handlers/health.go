package handlers

import (
	"net/http"
	"time"
)

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := rt.db.Ping(); err != nil {
		dbStatus = "unreachable"
	}

	storageStatus := "ok"
	if err := rt.store.Ping(r.Context()); err != nil {
		storageStatus = "unreachable"
	}

	status := http.StatusOK
	overall := "healthy"
	if dbStatus != "ok" || storageStatus != "ok" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	respondJSON(w, status, map[string]interface{}{
		"status":    overall,
		"database":  dbStatus,
		"storage":   storageStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
