package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserAction is the append-only audit log: who did what to which loan,
// with a snapshot of the affected data. Rows are never updated or deleted;
// no code path issues either statement against this table.
type UserAction struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	LoanID string `gorm:"column:loan_id;size:20;index" json:"loanId"`

	UserID            string `gorm:"column:user_id;size:100" json:"userId"`
	UserRole          string `gorm:"column:user_role;size:50" json:"userRole"`
	ActionType        string `gorm:"column:action_type;size:50;index" json:"actionType"`
	ActionDescription string `gorm:"column:action_description;size:500" json:"actionDescription"`

	BeforeData datatypes.JSON `gorm:"column:before_data;type:jsonb" json:"beforeData,omitempty"`
	AfterData  datatypes.JSON `gorm:"column:after_data;type:jsonb" json:"afterData,omitempty"`

	IPAddress string    `gorm:"column:ip_address;size:45" json:"ipAddress"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName specifies the table name
func (UserAction) TableName() string {
	return "user_actions"
}
