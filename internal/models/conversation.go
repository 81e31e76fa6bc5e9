package models

import "time"

// Conversation is a private chat channel between two or more users. Clients
// never delete conversations; removal is server-authoritative.
type Conversation struct {
	BaseModel

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`

	LastMessageID      *string    `gorm:"type:uuid" json:"last_message_id"`
	LastMessagePreview string     `gorm:"type:varchar(255)" json:"last_message_preview"`
	LastMessageAt      *time.Time `gorm:"index" json:"last_message_at"`
}

// ConversationParticipant joins a user into a conversation and carries the
// server-side unread watermark for that user.
type ConversationParticipant struct {
	BaseModel

	ConversationID string `gorm:"type:uuid;uniqueIndex:idx_conversation_user;not null" json:"conversation_id"`

	UserID string `gorm:"type:uuid;uniqueIndex:idx_conversation_user;not null" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	UnreadCount int        `gorm:"default:0" json:"unread_count"`
	LastReadAt  *time.Time `json:"last_read_at"`
}
