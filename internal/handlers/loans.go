package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/ywcorp/corploango/internal/events"
	"github.com/ywcorp/corploango/internal/middleware"
	"github.com/ywcorp/corploango/internal/workflow"
)

// actorFromRequest extracts the audit identity: JWT claims when the auth
// middleware ran, request defaults otherwise.
func actorFromRequest(r *http.Request) workflow.Actor {
	actor := workflow.Actor{}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		actor.IP = host
	} else {
		actor.IP = r.RemoteAddr
	}

	if claims, ok := r.Context().Value(middleware.UserContextKey).(jwt.MapClaims); ok {
		if id, ok := claims["id"].(string); ok {
			actor.UserID = id
		}
		if role, ok := claims["role"].(string); ok {
			actor.Role = role
		}
	}
	return actor
}

// respondWorkflowError maps service errors onto HTTP statuses.
func respondWorkflowError(w http.ResponseWriter, err error) {
	var ve *workflow.ValidationError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		respondError(w, http.StatusNotFound, "Loan application not found")
	case errors.Is(err, workflow.ErrInvalidState):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Error())
	default:
		log.Printf("Workflow error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (rt *Router) handleListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := workflow.ListFilters{
		Status: q.Get("status"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if stage, err := strconv.Atoi(q.Get("stage")); err == nil {
		filters.Stage = stage
	}

	result, err := rt.workflow.List(r.Context(), filters)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (rt *Router) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var input workflow.CreateLoanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	loan, err := rt.workflow.CreateLoan(r.Context(), &input, actorFromRequest(r))
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	log.Printf("✅ Loan application created: %s (%s)", loan.LoanID, loan.CompanyName)
	rt.hub.Broadcast(events.Event{Type: "loan_created", LoanID: loan.LoanID, Stage: loan.CurrentStage, Status: loan.WorkflowStatus})

	respondJSON(w, http.StatusCreated, loan)
}

func (rt *Router) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	detail, err := rt.workflow.Get(r.Context(), loanID)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (rt *Router) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	keys, err := rt.workflow.Delete(r.Context(), loanID, actorFromRequest(r))
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	// File bytes are cleaned up best-effort after the rows are gone
	for _, key := range keys {
		if err := rt.store.Delete(r.Context(), key); err != nil {
			log.Printf("⚠️ Failed to delete object %s: %v", key, err)
		}
	}

	log.Printf("🧹 Loan application deleted: %s (%d files)", loanID, len(keys))
	rt.hub.Broadcast(events.Event{Type: "loan_deleted", LoanID: loanID})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"loanId":       loanID,
		"deletedFiles": len(keys),
	})
}
