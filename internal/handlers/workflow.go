package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ywcorp/corploango/internal/events"
	"github.com/ywcorp/corploango/internal/workflow"
)

func (rt *Router) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	status, err := rt.workflow.Status(r.Context(), loanID)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (rt *Router) handleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	var body struct {
		StageData json.RawMessage `json:"stageData"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := rt.workflow.AdvanceStage(r.Context(), loanID, body.StageData, actorFromRequest(r))
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	log.Printf("✅ %s advanced: stage %d → %d", loanID, result.PreviousStage, result.CurrentStage)
	rt.hub.Broadcast(events.Event{Type: "stage_advanced", LoanID: loanID, Stage: result.CurrentStage, Status: result.Status})

	respondJSON(w, http.StatusOK, result)
}

func (rt *Router) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	var input workflow.UpdateStageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := rt.workflow.UpdateStage(r.Context(), loanID, &input, actorFromRequest(r)); err != nil {
		respondWorkflowError(w, err)
		return
	}

	status := ""
	if input.Status != nil {
		status = *input.Status
	}
	rt.hub.Broadcast(events.Event{Type: "stage_updated", LoanID: loanID, Stage: input.StageID, Status: status})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"loanId":  loanID,
		"stageId": input.StageID,
	})
}
