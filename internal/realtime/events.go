package realtime

import "time"

// Named realtime streams used across the platform.
const (
	StreamChat          = "chat"
	StreamNotifications = "notifications"
)

// Events pushed by the server to subscribers.
const (
	EventNewConversation = "new_conversation"
	EventNewMessage      = "new_message"
	EventUserTyping      = "user_typing"
	EventMessageUpdated  = "message_updated"
	EventMessageDeleted  = "message_deleted"
	EventHistory         = "history"
	EventNotification    = "notification"
)

// Control actions accepted from connected clients.
const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionPing           = "ping"
	ActionTyping         = "typing"
	ActionMarkAsRead     = "mark_as_read"
	ActionRequestHistory = "request_history"
)

// MessagePayload is the wire form of a chat message event.
type MessagePayload struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
}

// MessageRef identifies a message for update/delete events.
type MessageRef struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// TypingPayload signals that a user started or stopped typing.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

// ConversationPayload announces a newly created conversation. Participant
// details are intentionally partial; clients refresh the conversation list to
// obtain them.
type ConversationPayload struct {
	ConversationID string          `json:"conversation_id"`
	ParticipantIDs []string        `json:"participant_ids"`
	InitialMessage *MessagePayload `json:"initial_message,omitempty"`
}

// NotificationPayload is the wire form of a notification event.
type NotificationPayload struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SenderID  string    `json:"sender_id,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ActionURL string    `json:"action_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
}
