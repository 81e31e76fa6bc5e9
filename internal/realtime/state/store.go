// Package state maintains the client-side view of conversations, messages,
// typing indicators, and notifications, updated by applying realtime events.
// Event application is idempotent: duplicated or out-of-order frames never
// corrupt the view.
package state

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/internal/realtime/client"
	"github.com/tradelink-hq/tradelink/pkg/logger"
)

// Message is the local view of a chat message. Pending marks an optimistic
// local echo that the server has not confirmed yet.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
	EditedAt       *time.Time
	Deleted        bool
	Pending        bool
}

// Conversation is the local view of a conversation and its message window.
type Conversation struct {
	ID             string
	ParticipantIDs []string
	Messages       []Message
	UnreadCount    int
}

// Refresher fetches an authoritative conversation snapshot, typically via the
// REST API, when a new_conversation event announces one this store has never
// seen.
type Refresher func(conversationID string) (*Conversation, error)

// Store applies realtime events to an in-memory view. All methods are safe
// for concurrent use.
type Store struct {
	mu sync.Mutex

	userID        string
	active        string
	conversations map[string]*Conversation
	index         map[string]map[string]int // conversationID -> messageID -> slice index
	typing        map[string]map[string]struct{}
	notifications []realtime.NotificationPayload
	seenNotes     map[string]struct{}

	refresh Refresher
	log     *zap.Logger
}

// NewStore builds a store for the given local user. The refresher may be nil;
// new_conversation events are then applied from their payload alone.
func NewStore(userID string, refresh Refresher) *Store {
	return &Store{
		userID:        userID,
		conversations: make(map[string]*Conversation),
		index:         make(map[string]map[string]int),
		typing:        make(map[string]map[string]struct{}),
		seenNotes:     make(map[string]struct{}),
		refresh:       refresh,
		log:           logger.WithModule("realtime.state"),
	}
}

// Bind subscribes the store to a managed connection. The returned function
// detaches it.
func (s *Store) Bind(conn *client.Connection) func() {
	return conn.OnEvent(s.Apply)
}

// Apply folds one realtime event into the view. Malformed payloads are logged
// and dropped; unknown event names are ignored.
func (s *Store) Apply(evt client.Event) {
	switch evt.Event {
	case realtime.EventNewMessage:
		var p realtime.MessagePayload
		if s.decode(evt, &p) {
			s.applyNewMessage(p)
		}
	case realtime.EventMessageUpdated:
		var p realtime.MessagePayload
		if s.decode(evt, &p) {
			s.applyMessageUpdated(p)
		}
	case realtime.EventMessageDeleted:
		var p realtime.MessageRef
		if s.decode(evt, &p) {
			s.applyMessageDeleted(p)
		}
	case realtime.EventUserTyping:
		var p realtime.TypingPayload
		if s.decode(evt, &p) {
			s.applyTyping(p)
		}
	case realtime.EventNewConversation:
		var p realtime.ConversationPayload
		if s.decode(evt, &p) {
			s.applyNewConversation(p)
		}
	case realtime.EventNotification:
		var p realtime.NotificationPayload
		if s.decode(evt, &p) {
			s.applyNotification(p)
		}
	case realtime.EventHistory:
		var p []realtime.MessagePayload
		if s.decode(evt, &p) {
			s.applyHistory(p)
		}
	default:
		s.log.Debug("ignoring unknown event", zap.String("event", evt.Event))
	}
}

func (s *Store) decode(evt client.Event, target any) bool {
	if err := json.Unmarshal(evt.Data, target); err != nil {
		s.log.Warn("dropping malformed payload",
			zap.String("event", evt.Event),
			zap.Error(err))
		return false
	}
	return true
}

// AppendPending records an optimistic local echo. The matching new_message
// event later confirms it in place instead of duplicating it.
func (s *Store) AppendPending(msg Message) {
	if msg.ID == "" || msg.ConversationID == "" {
		return
	}
	msg.Pending = true

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.ensureConversationLocked(msg.ConversationID)
	if _, exists := s.index[conv.ID][msg.ID]; exists {
		return
	}
	s.appendMessageLocked(conv, msg)
}

// SetActiveConversation marks a conversation as being viewed. Incoming
// messages for the active conversation never increment its unread count, and
// activating a conversation clears any accumulated count. Pass an empty ID to
// deactivate.
func (s *Store) SetActiveConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = conversationID
	if conv, ok := s.conversations[conversationID]; ok {
		conv.UnreadCount = 0
	}
}

// Conversation returns a snapshot of one conversation, or false when unknown.
func (s *Store) Conversation(conversationID string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return snapshotConversation(conv), true
}

// Conversations returns snapshots of every known conversation.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		result = append(result, snapshotConversation(conv))
	}
	return result
}

// TypingUsers reports which users are currently typing in a conversation.
func (s *Store) TypingUsers(conversationID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.typing[conversationID]))
	for userID := range s.typing[conversationID] {
		users = append(users, userID)
	}
	return users
}

// Notifications returns the received notifications, newest first.
func (s *Store) Notifications() []realtime.NotificationPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.NotificationPayload(nil), s.notifications...)
}

// UnreadNotifications derives the unread count from the notification list.
func (s *Store) UnreadNotifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	unread := 0
	for _, n := range s.notifications {
		if !n.IsRead {
			unread++
		}
	}
	return unread
}

// MarkNotificationRead flips a notification to read. Unknown IDs are ignored.
func (s *Store) MarkNotificationRead(notificationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == notificationID {
			s.notifications[i].IsRead = true
			return
		}
	}
}

// MarkAllNotificationsRead flips every notification to read.
func (s *Store) MarkAllNotificationsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
}

func (s *Store) applyNewMessage(p realtime.MessagePayload) {
	if p.ID == "" || p.ConversationID == "" {
		s.log.Warn("dropping message without identifiers")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.ensureConversationLocked(p.ConversationID)
	if i, exists := s.index[conv.ID][p.ID]; exists {
		existing := &conv.Messages[i]
		if existing.Deleted {
			// Tombstones are terminal; a late duplicate cannot revive
			// the message.
			return
		}
		if existing.Pending {
			// Server confirmation of a local echo: adopt the
			// authoritative timestamps without duplicating.
			existing.Pending = false
			existing.CreatedAt = p.CreatedAt
			existing.EditedAt = p.EditedAt
		}
		return
	}

	s.appendMessageLocked(conv, Message{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Content:        p.Content,
		CreatedAt:      p.CreatedAt,
		EditedAt:       p.EditedAt,
	})

	if p.SenderID != s.userID && conv.ID != s.active {
		conv.UnreadCount++
	}
	// A message ends the sender's typing indicator.
	s.removeTypingLocked(conv.ID, p.SenderID)
}

func (s *Store) applyMessageUpdated(p realtime.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.lookupLocked(p.ConversationID, p.ID)
	if !ok {
		// Updates for unknown messages are dropped rather than
		// conjuring partial state.
		return
	}

	msg := &s.conversations[p.ConversationID].Messages[i]
	if msg.Deleted {
		return
	}
	msg.Content = p.Content
	msg.EditedAt = p.EditedAt
}

func (s *Store) applyMessageDeleted(p realtime.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.lookupLocked(p.ConversationID, p.MessageID)
	if !ok {
		return
	}

	msg := &s.conversations[p.ConversationID].Messages[i]
	msg.Deleted = true
	msg.Content = ""
	msg.EditedAt = nil
}

func (s *Store) applyTyping(p realtime.TypingPayload) {
	if p.ConversationID == "" || p.UserID == "" || p.UserID == s.userID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Typing {
		if s.typing[p.ConversationID] == nil {
			s.typing[p.ConversationID] = make(map[string]struct{})
		}
		s.typing[p.ConversationID][p.UserID] = struct{}{}
		return
	}
	s.removeTypingLocked(p.ConversationID, p.UserID)
}

func (s *Store) applyNewConversation(p realtime.ConversationPayload) {
	if p.ConversationID == "" {
		s.log.Warn("dropping conversation without identifier")
		return
	}

	// Refresh outside the lock; the fetcher usually performs a network
	// round-trip.
	var fetched *Conversation
	if s.refresh != nil {
		snapshot, err := s.refresh(p.ConversationID)
		if err != nil {
			s.log.Warn("conversation refresh failed",
				zap.String("conversation_id", p.ConversationID),
				zap.Error(err))
		} else {
			fetched = snapshot
		}
	}

	s.mu.Lock()
	conv := s.ensureConversationLocked(p.ConversationID)
	if fetched != nil {
		conv.ParticipantIDs = fetched.ParticipantIDs
		for _, msg := range fetched.Messages {
			if _, exists := s.index[conv.ID][msg.ID]; !exists {
				s.appendMessageLocked(conv, msg)
			}
		}
	} else if len(p.ParticipantIDs) > 0 {
		conv.ParticipantIDs = p.ParticipantIDs
	}
	s.mu.Unlock()

	if p.InitialMessage != nil {
		s.applyNewMessage(*p.InitialMessage)
	}
}

func (s *Store) applyNotification(p realtime.NotificationPayload) {
	if p.ID == "" {
		s.log.Warn("dropping notification without identifier")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.seenNotes[p.ID]; seen {
		return
	}
	s.seenNotes[p.ID] = struct{}{}
	s.notifications = append([]realtime.NotificationPayload{p}, s.notifications...)
}

func (s *Store) applyHistory(messages []realtime.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range messages {
		if p.ID == "" || p.ConversationID == "" {
			continue
		}
		conv := s.ensureConversationLocked(p.ConversationID)
		if _, exists := s.index[conv.ID][p.ID]; exists {
			continue
		}
		s.appendMessageLocked(conv, Message{
			ID:             p.ID,
			ConversationID: p.ConversationID,
			SenderID:       p.SenderID,
			Content:        p.Content,
			CreatedAt:      p.CreatedAt,
			EditedAt:       p.EditedAt,
		})
	}
}

func (s *Store) ensureConversationLocked(conversationID string) *Conversation {
	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = &Conversation{ID: conversationID}
		s.conversations[conversationID] = conv
		s.index[conversationID] = make(map[string]int)
	}
	return conv
}

func (s *Store) appendMessageLocked(conv *Conversation, msg Message) {
	s.index[conv.ID][msg.ID] = len(conv.Messages)
	conv.Messages = append(conv.Messages, msg)
}

func (s *Store) lookupLocked(conversationID, messageID string) (int, bool) {
	ids, ok := s.index[conversationID]
	if !ok {
		return 0, false
	}
	i, ok := ids[messageID]
	return i, ok
}

func (s *Store) removeTypingLocked(conversationID, userID string) {
	users, ok := s.typing[conversationID]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.typing, conversationID)
	}
}

func snapshotConversation(conv *Conversation) Conversation {
	out := *conv
	out.ParticipantIDs = append([]string(nil), conv.ParticipantIDs...)
	out.Messages = append([]Message(nil), conv.Messages...)
	return out
}
