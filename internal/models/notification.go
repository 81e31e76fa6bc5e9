package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types pushed to users.
const (
	NotificationConnectionRequest  = "connection_request"
	NotificationConnectionAccepted = "connection_accepted"
	NotificationConnectionRejected = "connection_rejected"
	NotificationPostLike           = "post_like"
	NotificationPostComment        = "post_comment"
	NotificationPostShare          = "post_share"
	NotificationMention            = "mention"
	NotificationMessage            = "message"
	NotificationSystem             = "system"
)

// Notification represents an in-app notification for a user. The read flag
// transitions false to true exactly once; everything else is immutable.
type Notification struct {
	BaseModel

	UserID   string `gorm:"type:uuid;index;not null" json:"user_id"`
	SenderID string `gorm:"type:uuid" json:"sender_id"`

	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	ActionURL string         `gorm:"type:text" json:"action_url"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
