package models

import (
	"time"
)

// Document type taxonomy for uploaded files.
const (
	DocTypeBusinessRegistration  = "business_registration"
	DocTypeCorporateRegistration = "corporate_registration"
	DocTypeFinancialStatement    = "financial_statement"
	DocTypeCreditReport          = "credit_report"
	DocTypeCollateralAppraisal   = "collateral_appraisal"
	DocTypeBusinessPlan          = "business_plan"
	DocTypeOther                 = "other"
)

// UploadedDocument is the metadata row for a file held in the object store.
// The bytes live under S3Key; the database never stores file content.
// Documents are owned by their loan and removed when the loan is deleted.
type UploadedDocument struct {
	ID     uint   `gorm:"primaryKey" json:"documentId"`
	LoanID string `gorm:"column:loan_id;size:20;not null;index" json:"loanId"`

	OriginalFilename string `gorm:"column:original_filename;size:255;not null" json:"originalFilename"`
	FileExtension    string `gorm:"column:file_extension;size:10" json:"fileExtension"`
	FileSize         int64  `gorm:"column:file_size" json:"fileSize"`
	MimeType         string `gorm:"column:mime_type;size:128" json:"mimeType"`

	S3Bucket string `gorm:"column:s3_bucket;size:100" json:"s3Bucket"`
	S3Key    string `gorm:"column:s3_key;size:512" json:"s3Key"`
	S3URL    string `gorm:"column:s3_url;size:1024" json:"s3Url"`

	DocumentType string `gorm:"column:document_type;size:50;default:'other';index" json:"documentType"`
	UploadStatus string `gorm:"column:upload_status;size:20;default:'completed'" json:"uploadStatus"`

	CreatedAt time.Time `gorm:"column:created_at" json:"uploadedAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"-"`
}

// TableName specifies the table name
func (UploadedDocument) TableName() string {
	return "uploaded_documents"
}
