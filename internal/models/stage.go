package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkflowStage is one of the 8 fixed review steps of a loan.
// Exactly 8 rows (stage ids 1..8) exist per loan, created in bulk when
// the loan is registered.
type WorkflowStage struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	LoanID string `gorm:"column:loan_id;size:20;not null;uniqueIndex:idx_loan_stage,priority:1" json:"loanId"`

	StageID          int    `gorm:"column:stage_id;not null;uniqueIndex:idx_loan_stage,priority:2" json:"stageId"`
	StageName        string `gorm:"column:stage_name;size:100;not null" json:"stageName"`
	StageTitle       string `gorm:"column:stage_title;size:100" json:"stageTitle"`
	StageDescription string `gorm:"column:stage_description;size:200" json:"stageDescription"`
	EstimatedTime    int    `gorm:"column:estimated_time" json:"estimatedTime"` // seconds

	Status   string `gorm:"column:status;size:20;default:'pending';index" json:"status"`
	Progress int    `gorm:"column:progress;default:0" json:"progress"` // 0-100

	StartedAt   *time.Time     `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completedAt,omitempty"`
	StageData   datatypes.JSON `gorm:"column:stage_data;type:jsonb" json:"stageData,omitempty"` // stage-specific payload

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name
func (WorkflowStage) TableName() string {
	return "workflow_stages"
}
