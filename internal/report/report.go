package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ywcorp/corploango/internal/models"
)

// English stage labels for the printed summary; the PDF core fonts are
// latin-only, so the Korean catalog names cannot be embedded directly.
var stageLabels = map[int]string{
	1: "Registration & Upload",
	2: "Document Parsing",
	3: "Data Verification",
	4: "Chunking & Embedding",
	5: "Application Draft",
	6: "RM Review",
	7: "Review Opinion",
	8: "Final Decision",
}

// LoanSummaryPDF renders a one-page review summary: header with loan id and
// a QR code resolving to the loan, applicant block, and the stage table.
func LoanSummaryPDF(loan *models.LoanApplication, stages []models.WorkflowStage) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 10, "Corporate Loan Application Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, loan.LoanID, "", 1, "L", false, 0, "")

	// QR code top right, resolving to the loan record
	qrPng, err := qrcode.Encode(fmt.Sprintf("corploan://%s", loan.LoanID), qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	_ = pdf.RegisterImageOptionsReader("loan_qr", opts, bytes.NewReader(qrPng))
	pdf.ImageOptions("loan_qr", 165, 12, 30, 30, false, opts, 0, "")

	pdf.Ln(6)

	// Application block
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Application", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)

	row := func(label, value string) {
		pdf.CellFormat(55, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}

	row("Company", loan.CompanyName)
	if loan.BusinessRegistrationNumber != "" {
		row("Business Reg. No.", loan.BusinessRegistrationNumber)
	}
	row("Type", loan.ApplicationType)
	row("Requested Amount", fmt.Sprintf("%.0f KRW", loan.RequestedAmount))
	if loan.LoanDurationMonths != nil {
		row("Duration", fmt.Sprintf("%d months", *loan.LoanDurationMonths))
	}
	row("Applicant", fmt.Sprintf("%s (%s)", loan.ApplicantName, loan.ApplicantContact))
	row("Status", fmt.Sprintf("stage %d/8, %s", loan.CurrentStage, loan.WorkflowStatus))
	row("Created", loan.CreatedAt.Format("2006-01-02 15:04"))

	pdf.Ln(6)

	// Stage table
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Review Stages", "B", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(10, 6, "#", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Stage", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Progress", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Completed", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, st := range stages {
		label := stageLabels[st.StageID]
		if label == "" {
			label = fmt.Sprintf("Stage %d", st.StageID)
		}
		completedAt := "-"
		if st.CompletedAt != nil {
			completedAt = st.CompletedAt.Format("2006-01-02 15:04")
		}

		pdf.CellFormat(10, 6, fmt.Sprintf("%d", st.StageID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, st.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d%%", st.Progress), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, completedAt, "1", 1, "C", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
