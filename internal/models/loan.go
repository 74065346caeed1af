package models

import (
	"time"
)

// Workflow status values for a loan application.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// LoanApplication is a corporate loan request moving through the 8-stage review.
// LoanID is the human-readable identifier (CL-YYYYMMDD-NNNN); uniqueness is
// enforced here because the generator suffix is low entropy.
type LoanApplication struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	LoanID string `gorm:"column:loan_id;uniqueIndex;size:20;not null" json:"loanId"`

	// Company profile
	CompanyName                string   `gorm:"column:company_name;size:200;not null" json:"companyName"`
	BusinessRegistrationNumber string   `gorm:"column:business_registration_number;size:20" json:"businessRegistrationNumber,omitempty"`
	CompanyAddress             string   `gorm:"column:company_address;size:500" json:"companyAddress,omitempty"`
	CompanyPhone               string   `gorm:"column:company_phone;size:50" json:"companyPhone,omitempty"`
	CompanyEstablishedYear     *int     `gorm:"column:company_established_year" json:"companyEstablishedYear,omitempty"`
	CompanyBusinessType        string   `gorm:"column:company_business_type;size:200" json:"companyBusinessType,omitempty"`
	CompanyAnnualRevenue       *float64 `gorm:"column:company_annual_revenue" json:"companyAnnualRevenue,omitempty"`
	CompanyEmployeeCount       *int     `gorm:"column:company_employee_count" json:"companyEmployeeCount,omitempty"`

	// Loan terms
	ApplicationType   string   `gorm:"column:application_type;size:50;default:'PF 대출'" json:"applicationType"`
	RequestedAmount   float64  `gorm:"column:requested_amount;not null" json:"requestedAmount"`
	LoanDurationMonths *int    `gorm:"column:loan_duration_months" json:"loanDurationMonths,omitempty"`
	InterestRateHope  *float64 `gorm:"column:interest_rate_hope" json:"interestRateHope,omitempty"`
	CollateralType    string   `gorm:"column:collateral_type;size:200" json:"collateralType,omitempty"`
	CollateralValue   *float64 `gorm:"column:collateral_value" json:"collateralValue,omitempty"`
	LoanPurpose       string   `gorm:"column:loan_purpose;size:1000;not null" json:"loanPurpose"`

	// Applicant
	ApplicantName      string     `gorm:"column:applicant_name;size:100;not null" json:"applicantName"`
	ApplicantPosition  string     `gorm:"column:applicant_position;size:100" json:"applicantPosition,omitempty"`
	ApplicantBirthDate *time.Time `gorm:"column:applicant_birth_date" json:"applicantBirthDate,omitempty"`
	ApplicantContact   string     `gorm:"column:applicant_contact;size:50;not null" json:"applicantContact"`
	ApplicantEmail     string     `gorm:"column:applicant_email;size:200" json:"applicantEmail,omitempty"`

	// Workflow position. CurrentStage only moves forward through the
	// ordered advance; the direct stage update can rewrite it.
	CurrentStage   int    `gorm:"column:current_stage;default:1;index" json:"currentStage"`
	WorkflowStatus string `gorm:"column:workflow_status;size:20;default:'pending';index" json:"workflowStatus"`
	CreatedBy      string `gorm:"column:created_by;size:100" json:"createdBy,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`

	// Read-model annotations filled by correlated subqueries in list/get;
	// never written by the application.
	DocumentCount   int `gorm:"->;-:migration" json:"documentCount"`
	CompletedStages int `gorm:"->;-:migration" json:"completedStages"`
}

// TableName specifies the table name
func (LoanApplication) TableName() string {
	return "loan_applications"
}
