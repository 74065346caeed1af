package models

import (
	"time"
)

// UserAuth represents an authenticated dashboard user (applicant, RM, reviewer)
type UserAuth struct {
	ID       string `gorm:"column:user_id;primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username string `gorm:"column:username;uniqueIndex;size:100;not null" json:"username"`
	Email    string `gorm:"column:email;uniqueIndex;size:200;not null" json:"email"`
	Password string `gorm:"column:password;size:100;not null" json:"-"`
	Name     string `gorm:"column:name;size:100" json:"name"`
	Company  string `gorm:"column:company;size:200" json:"company"`
	Role     string `gorm:"column:role;size:50;default:'user'" json:"role"` // user, rm, reviewer, admin

	LastLogin *time.Time `gorm:"column:last_login" json:"lastLogin,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name
func (UserAuth) TableName() string {
	return "user_auths"
}
