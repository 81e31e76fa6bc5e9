package models

import "time"

// User describes a platform account belonging to a company workspace.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	DisplayName string `gorm:"type:varchar(120)" json:"display_name"`
	Headline    string `gorm:"type:varchar(255)" json:"headline"`
	Avatar      string `gorm:"type:text" json:"avatar"`

	CompanyID *string  `gorm:"type:uuid;index" json:"company_id"`
	Company   *Company `json:"company,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	LastSeenAt *time.Time `json:"last_seen_at"`
}
