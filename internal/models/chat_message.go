package models

import "time"

// ChatMessage is a single message in a conversation. Deleted messages are
// tombstoned rather than removed so that late events referencing the id can be
// recognised and discarded.
type ChatMessage struct {
	BaseModel

	ConversationID string        `gorm:"type:uuid;index;not null" json:"conversation_id"`
	Conversation   *Conversation `json:"-"`

	SenderID string `gorm:"type:uuid;not null" json:"sender_id"`
	Sender   *User  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`

	Content  string     `gorm:"type:text" json:"content"`
	EditedAt *time.Time `json:"edited_at"`

	Deleted   bool       `gorm:"default:false;index" json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at"`
}
