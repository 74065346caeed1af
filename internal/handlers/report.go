package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ywcorp/corploango/internal/report"
)

// handleLoanReport streams a PDF summary of the loan and its review stages.
func (rt *Router) handleLoanReport(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	detail, err := rt.workflow.Get(r.Context(), loanID)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	pdf, err := report.LoanSummaryPDF(&detail.Loan, detail.Stages)
	if err != nil {
		log.Printf("Failed to render report for %s: %v", loanID, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", loanID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Printf("Failed to stream report for %s: %v", loanID, err)
	}
}
