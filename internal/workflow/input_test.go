package workflow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ywcorp/corploango/internal/models"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func validInput() CreateLoanInput {
	return CreateLoanInput{
		CompanyName:      "Acme Co",
		RequestedAmount:  f64(1000000000),
		LoanPurpose:      "facility",
		ApplicantName:    "Kim",
		ApplicantContact: "010-1234-5678",
	}
}

func TestValidateAcceptsMinimalInput(t *testing.T) {
	in := validInput()
	if err := in.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func TestValidateFieldMatrix(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateLoanInput)
		field  string
	}{
		{"missing company name", func(in *CreateLoanInput) { in.CompanyName = "  " }, "companyName"},
		{"company name too short", func(in *CreateLoanInput) { in.CompanyName = "A" }, "companyName"},
		{"company name too long", func(in *CreateLoanInput) { in.CompanyName = strings.Repeat("가", 201) }, "companyName"},
		{"malformed business reg number", func(in *CreateLoanInput) { in.BusinessRegistrationNumber = "12-345-6789" }, "businessRegistrationNumber"},
		{"established year too early", func(in *CreateLoanInput) { in.CompanyEstablishedYear = intp(1899) }, "companyEstablishedYear"},
		{"established year in future", func(in *CreateLoanInput) { in.CompanyEstablishedYear = intp(time.Now().Year() + 1) }, "companyEstablishedYear"},
		{"negative revenue", func(in *CreateLoanInput) { in.CompanyAnnualRevenue = f64(-1) }, "companyAnnualRevenue"},
		{"unknown application type", func(in *CreateLoanInput) { in.ApplicationType = "신용 대출" }, "applicationType"},
		{"missing amount", func(in *CreateLoanInput) { in.RequestedAmount = nil }, "requestedAmount"},
		{"negative amount", func(in *CreateLoanInput) { in.RequestedAmount = f64(-100) }, "requestedAmount"},
		{"duration too short", func(in *CreateLoanInput) { in.LoanDurationMonths = intp(0) }, "loanDurationMonths"},
		{"duration too long", func(in *CreateLoanInput) { in.LoanDurationMonths = intp(361) }, "loanDurationMonths"},
		{"rate above 100", func(in *CreateLoanInput) { in.InterestRateHope = f64(101) }, "interestRateHope"},
		{"missing purpose", func(in *CreateLoanInput) { in.LoanPurpose = "" }, "loanPurpose"},
		{"purpose too long", func(in *CreateLoanInput) { in.LoanPurpose = strings.Repeat("가", 1001) }, "loanPurpose"},
		{"missing applicant name", func(in *CreateLoanInput) { in.ApplicantName = "" }, "applicantName"},
		{"missing applicant contact", func(in *CreateLoanInput) { in.ApplicantContact = "" }, "applicantContact"},
		{"malformed email", func(in *CreateLoanInput) { in.ApplicantEmail = "not-an-email" }, "applicantEmail"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			err := in.Validate()
			if err == nil {
				t.Fatal("expected validation to fail")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tc.field {
				t.Errorf("flagged field %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestValidateAcceptsOptionalFields(t *testing.T) {
	in := validInput()
	in.BusinessRegistrationNumber = "123-45-67890"
	in.CompanyEstablishedYear = intp(2001)
	in.ApplicationType = "시설자금 대출"
	in.LoanDurationMonths = intp(36)
	in.InterestRateHope = f64(4.5)
	in.ApplicantEmail = "kim@acme.co.kr"

	if err := in.Validate(); err != nil {
		t.Fatalf("valid optional fields rejected: %v", err)
	}
}

func TestToModelForcesInitialWorkflowPosition(t *testing.T) {
	in := validInput()
	loan := in.toModel("CL-20240615-0001", "tester")

	if loan.LoanID != "CL-20240615-0001" {
		t.Errorf("loan id = %q", loan.LoanID)
	}
	if loan.CurrentStage != 1 {
		t.Errorf("current stage = %d, want 1", loan.CurrentStage)
	}
	if loan.WorkflowStatus != models.StatusPending {
		t.Errorf("workflow status = %q, want pending", loan.WorkflowStatus)
	}
	if loan.ApplicationType != "PF 대출" {
		t.Errorf("default application type = %q", loan.ApplicationType)
	}
	if loan.CreatedBy != "tester" {
		t.Errorf("created by = %q", loan.CreatedBy)
	}
}
