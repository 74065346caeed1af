package workflow

import (
	"regexp"
	"strings"
	"time"

	"github.com/ywcorp/corploango/internal/models"
)

var (
	businessRegNumberRe = regexp.MustCompile(`^[0-9]{3}-[0-9]{2}-[0-9]{5}$`)
	emailRe             = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

var applicationTypes = map[string]bool{
	"PF 대출":    true,
	"시설자금 대출":  true,
	"운영자금 대출":  true,
	"기타":       true,
}

// CreateLoanInput is the request body for registering a new loan application.
// Pointer fields distinguish "absent" from zero for optional numeric values.
type CreateLoanInput struct {
	CompanyName                string   `json:"companyName"`
	BusinessRegistrationNumber string   `json:"businessRegistrationNumber"`
	CompanyAddress             string   `json:"companyAddress"`
	CompanyPhone               string   `json:"companyPhone"`
	CompanyEstablishedYear     *int     `json:"companyEstablishedYear"`
	CompanyBusinessType        string   `json:"companyBusinessType"`
	CompanyAnnualRevenue       *float64 `json:"companyAnnualRevenue"`
	CompanyEmployeeCount       *int     `json:"companyEmployeeCount"`

	ApplicationType    string   `json:"applicationType"`
	RequestedAmount    *float64 `json:"requestedAmount"`
	LoanDurationMonths *int     `json:"loanDurationMonths"`
	InterestRateHope   *float64 `json:"interestRateHope"`
	CollateralType     string   `json:"collateralType"`
	CollateralValue    *float64 `json:"collateralValue"`
	LoanPurpose        string   `json:"loanPurpose"`

	ApplicantName      string     `json:"applicantName"`
	ApplicantPosition  string     `json:"applicantPosition"`
	ApplicantBirthDate *time.Time `json:"applicantBirthDate"`
	ApplicantContact   string     `json:"applicantContact"`
	ApplicantEmail     string     `json:"applicantEmail"`
}

// Validate checks required fields and range constraints.
// Returns a *ValidationError naming the first offending field.
func (in *CreateLoanInput) Validate() error {
	name := strings.TrimSpace(in.CompanyName)
	if name == "" {
		return invalidField("companyName", "company name is required")
	}
	if len([]rune(name)) < 2 || len([]rune(name)) > 200 {
		return invalidField("companyName", "company name must be 2-200 characters")
	}

	if in.BusinessRegistrationNumber != "" && !businessRegNumberRe.MatchString(in.BusinessRegistrationNumber) {
		return invalidField("businessRegistrationNumber", "must match NNN-NN-NNNNN")
	}
	if len(in.CompanyAddress) > 500 {
		return invalidField("companyAddress", "must be at most 500 characters")
	}
	if len(in.CompanyPhone) > 50 {
		return invalidField("companyPhone", "must be at most 50 characters")
	}
	if in.CompanyEstablishedYear != nil {
		year := *in.CompanyEstablishedYear
		if year < 1900 || year > time.Now().Year() {
			return invalidField("companyEstablishedYear", "must be between 1900 and the current year")
		}
	}
	if in.CompanyAnnualRevenue != nil && *in.CompanyAnnualRevenue < 0 {
		return invalidField("companyAnnualRevenue", "must not be negative")
	}
	if in.CompanyEmployeeCount != nil && *in.CompanyEmployeeCount < 0 {
		return invalidField("companyEmployeeCount", "must not be negative")
	}

	if in.ApplicationType != "" && !applicationTypes[in.ApplicationType] {
		return invalidField("applicationType", "unknown application type")
	}
	if in.RequestedAmount == nil {
		return invalidField("requestedAmount", "requested amount is required")
	}
	if *in.RequestedAmount < 0 {
		return invalidField("requestedAmount", "must not be negative")
	}
	if in.LoanDurationMonths != nil {
		months := *in.LoanDurationMonths
		if months < 1 || months > 360 {
			return invalidField("loanDurationMonths", "must be between 1 and 360")
		}
	}
	if in.InterestRateHope != nil {
		rate := *in.InterestRateHope
		if rate < 0 || rate > 100 {
			return invalidField("interestRateHope", "must be between 0 and 100")
		}
	}
	if in.CollateralValue != nil && *in.CollateralValue < 0 {
		return invalidField("collateralValue", "must not be negative")
	}
	if strings.TrimSpace(in.LoanPurpose) == "" {
		return invalidField("loanPurpose", "loan purpose is required")
	}
	if len([]rune(in.LoanPurpose)) > 1000 {
		return invalidField("loanPurpose", "must be at most 1000 characters")
	}

	if strings.TrimSpace(in.ApplicantName) == "" {
		return invalidField("applicantName", "applicant name is required")
	}
	if len([]rune(in.ApplicantName)) > 100 {
		return invalidField("applicantName", "must be at most 100 characters")
	}
	if strings.TrimSpace(in.ApplicantContact) == "" {
		return invalidField("applicantContact", "applicant contact is required")
	}
	if len(in.ApplicantContact) > 50 {
		return invalidField("applicantContact", "must be at most 50 characters")
	}
	if in.ApplicantEmail != "" && !emailRe.MatchString(in.ApplicantEmail) {
		return invalidField("applicantEmail", "must be a valid email address")
	}

	return nil
}

// toModel builds the persistent record; the workflow position always starts
// at stage 1 / pending regardless of input.
func (in *CreateLoanInput) toModel(loanID, createdBy string) models.LoanApplication {
	applicationType := in.ApplicationType
	if applicationType == "" {
		applicationType = "PF 대출"
	}

	return models.LoanApplication{
		LoanID:                     loanID,
		CompanyName:                strings.TrimSpace(in.CompanyName),
		BusinessRegistrationNumber: in.BusinessRegistrationNumber,
		CompanyAddress:             in.CompanyAddress,
		CompanyPhone:               in.CompanyPhone,
		CompanyEstablishedYear:     in.CompanyEstablishedYear,
		CompanyBusinessType:        in.CompanyBusinessType,
		CompanyAnnualRevenue:       in.CompanyAnnualRevenue,
		CompanyEmployeeCount:       in.CompanyEmployeeCount,
		ApplicationType:            applicationType,
		RequestedAmount:            *in.RequestedAmount,
		LoanDurationMonths:         in.LoanDurationMonths,
		InterestRateHope:           in.InterestRateHope,
		CollateralType:             in.CollateralType,
		CollateralValue:            in.CollateralValue,
		LoanPurpose:                in.LoanPurpose,
		ApplicantName:              strings.TrimSpace(in.ApplicantName),
		ApplicantPosition:          in.ApplicantPosition,
		ApplicantBirthDate:         in.ApplicantBirthDate,
		ApplicantContact:           in.ApplicantContact,
		ApplicantEmail:             in.ApplicantEmail,
		CurrentStage:               1,
		WorkflowStatus:             models.StatusPending,
		CreatedBy:                  createdBy,
	}
}
