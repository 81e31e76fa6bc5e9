package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/models"
	"github.com/tradelink-hq/tradelink/internal/realtime"
	apperrors "github.com/tradelink-hq/tradelink/pkg/errors"
	"github.com/tradelink-hq/tradelink/pkg/metrics"
)

const defaultHistoryLimit = 50

// MessageDTO represents the API-friendly chat message payload. Deleted
// messages keep their id but carry no content.
type MessageDTO struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `json:"deleted,omitempty"`
}

// ConversationDTO represents the API-friendly conversation payload.
type ConversationDTO struct {
	ID                 string     `json:"id"`
	ParticipantIDs     []string   `json:"participant_ids"`
	Participants       []UserDTO  `json:"participants,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadCount        int        `json:"unread_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

// CreateConversationInput defines attributes for opening a conversation.
type CreateConversationInput struct {
	CreatorID      string
	ParticipantIDs []string
	InitialMessage string
}

// SendMessageInput defines attributes for sending a chat message. MessageID
// is optional: clients that render an optimistic local echo supply their own
// id so the server echo reconciles instead of duplicating.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Content        string
	MessageID      string
}

// ListMessagesInput pages through conversation history. Before is an optional
// message id cursor; messages strictly older than it are returned.
type ListMessagesInput struct {
	ConversationID string
	UserID         string
	Before         string
	Limit          int
}

// ChatService manages conversations and messages and fans realtime events out
// through the hub.
type ChatService struct {
	db  *gorm.DB
	hub *realtime.Hub

	timeNow func() time.Time
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, hub *realtime.Hub) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	return &ChatService{db: db, hub: hub, timeNow: time.Now}, nil
}

// RegisterCommands wires client control frames (typing, mark_as_read,
// request_history) into the service.
func (s *ChatService) RegisterCommands(hub *realtime.Hub) {
	hub.SetCommandHandler(func(userID string, cmd realtime.Command) {
		ctx := context.Background()
		switch cmd.Action {
		case realtime.ActionTyping:
			_ = s.Typing(ctx, cmd.ConversationID, userID, cmd.Typing)
		case realtime.ActionMarkAsRead:
			_ = s.MarkConversationRead(ctx, cmd.ConversationID, userID)
		case realtime.ActionRequestHistory:
			_ = s.PushHistory(ctx, cmd.ConversationID, userID, cmd.Before, cmd.Limit)
		}
	})
}

// CreateConversation opens a conversation between the creator and the given
// participants, optionally seeded with a first message. Other participants
// receive a new_conversation event.
func (s *ChatService) CreateConversation(ctx context.Context, input CreateConversationInput) (*ConversationDTO, error) {
	ctx = ensureContext(ctx)

	participants := normaliseIDs(append([]string{input.CreatorID}, input.ParticipantIDs...))
	if len(participants) < 2 {
		return nil, apperrors.NewBadRequest("A conversation needs at least two participants")
	}

	var users int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ?", participants).
		Count(&users).Error; err != nil {
		return nil, fmt.Errorf("chat service: verify participants: %w", err)
	}
	if int(users) != len(participants) {
		return nil, apperrors.NewBadRequest("Unknown participant")
	}

	conversation := models.Conversation{}
	var initial *models.ChatMessage

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversation).Error; err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		for _, userID := range participants {
			row := models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         userID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("add participant: %w", err)
			}
		}

		if content := strings.TrimSpace(input.InitialMessage); content != "" {
			msg := models.ChatMessage{
				ConversationID: conversation.ID,
				SenderID:       input.CreatorID,
				Content:        content,
			}
			if err := tx.Create(&msg).Error; err != nil {
				return fmt.Errorf("create initial message: %w", err)
			}
			if err := s.stampLastMessageTx(tx, &conversation, msg); err != nil {
				return err
			}
			if err := s.bumpUnreadTx(tx, conversation.ID, input.CreatorID); err != nil {
				return err
			}
			initial = &msg
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat service: %w", err)
	}

	payload := realtime.ConversationPayload{
		ConversationID: conversation.ID,
		ParticipantIDs: participants,
	}
	if initial != nil {
		metrics.MessagesSent.Inc()
		wire := messageWire(*initial)
		payload.InitialMessage = &wire
	}
	others := excludeID(participants, input.CreatorID)
	s.broadcast(others, realtime.EventNewConversation, payload)

	return s.GetConversation(ctx, conversation.ID, input.CreatorID)
}

// ListConversations returns the user's conversations ordered by most recent
// activity, including per-user unread counts.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]ConversationDTO, error) {
	ctx = ensureContext(ctx)

	var memberships []models.ConversationParticipant
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("chat service: list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []ConversationDTO{}, nil
	}

	ids := make([]string, 0, len(memberships))
	unreadByConversation := make(map[string]int, len(memberships))
	for _, membership := range memberships {
		ids = append(ids, membership.ConversationID)
		unreadByConversation[membership.ConversationID] = membership.UnreadCount
	}

	var rows []models.Conversation
	if err := s.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Where("id IN ?", ids).
		Order("last_message_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("chat service: list conversations: %w", err)
	}

	items := make([]ConversationDTO, 0, len(rows))
	for _, row := range rows {
		dto := mapConversation(row)
		dto.UnreadCount = unreadByConversation[row.ID]
		items = append(items, dto)
	}
	return items, nil
}

// GetConversation returns one conversation the user participates in.
func (s *ChatService) GetConversation(ctx context.Context, conversationID, userID string) (*ConversationDTO, error) {
	ctx = ensureContext(ctx)

	membership, err := s.loadMembership(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	var conversation models.Conversation
	if err := s.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&conversation, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("chat service: load conversation: %w", err)
	}

	dto := mapConversation(conversation)
	dto.UnreadCount = membership.UnreadCount
	return &dto, nil
}

// ListMessages returns a page of messages in chronological order. Pagination
// walks backwards from the Before cursor.
func (s *ChatService) ListMessages(ctx context.Context, input ListMessagesInput) ([]MessageDTO, error) {
	ctx = ensureContext(ctx)

	if _, err := s.loadMembership(ctx, input.ConversationID, input.UserID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("conversation_id = ?", input.ConversationID)

	if before := strings.TrimSpace(input.Before); before != "" {
		var cursor models.ChatMessage
		if err := s.db.WithContext(ctx).
			Select("created_at").
			First(&cursor, "id = ?", before).Error; err == nil {
			query = query.Where("created_at < ?", cursor.CreatedAt)
		}
	}

	var rows []models.ChatMessage
	if err := query.
		Order("created_at DESC").
		Limit(clampLimit(input.Limit, defaultHistoryLimit, 200)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("chat service: list messages: %w", err)
	}

	// Reverse into chronological order.
	items := make([]MessageDTO, len(rows))
	for i, row := range rows {
		items[len(rows)-1-i] = mapMessage(row)
	}
	return items, nil
}

// SendMessage persists a message and broadcasts new_message to every
// participant after commit. Resending with the same MessageID is idempotent.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*MessageDTO, error) {
	ctx = ensureContext(ctx)

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewBadRequest("Message content is required")
	}

	if _, err := s.loadMembership(ctx, input.ConversationID, input.SenderID); err != nil {
		return nil, err
	}

	if messageID := strings.TrimSpace(input.MessageID); messageID != "" {
		var existing models.ChatMessage
		err := s.db.WithContext(ctx).First(&existing, "id = ?", messageID).Error
		if err == nil {
			if existing.ConversationID != input.ConversationID || existing.SenderID != input.SenderID {
				return nil, apperrors.NewConflict("Message id is already in use")
			}
			dto := mapMessage(existing)
			return &dto, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chat service: check message id: %w", err)
		}
	}

	var conversation models.Conversation
	if err := s.db.WithContext(ctx).First(&conversation, "id = ?", input.ConversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("chat service: load conversation: %w", err)
	}

	message := models.ChatMessage{
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		Content:        content,
	}
	message.ID = strings.TrimSpace(input.MessageID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := s.stampLastMessageTx(tx, &conversation, message); err != nil {
			return err
		}
		return s.bumpUnreadTx(tx, input.ConversationID, input.SenderID)
	})
	if err != nil {
		return nil, fmt.Errorf("chat service: %w", err)
	}

	metrics.MessagesSent.Inc()
	participants, err := s.participantIDs(ctx, input.ConversationID)
	if err == nil {
		s.broadcast(participants, realtime.EventNewMessage, messageWire(message))
	}

	dto := mapMessage(message)
	return &dto, nil
}

// EditMessage replaces the content of the sender's own message and stamps the
// edit time. Tombstoned messages cannot be edited.
func (s *ChatService) EditMessage(ctx context.Context, messageID, userID, content string) (*MessageDTO, error) {
	ctx = ensureContext(ctx)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewBadRequest("Message content is required")
	}

	var message models.ChatMessage
	if err := s.db.WithContext(ctx).First(&message, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("chat service: load message: %w", err)
	}
	if message.SenderID != userID {
		return nil, apperrors.ErrForbidden
	}
	if message.Deleted {
		return nil, apperrors.NewConflict("Message has been deleted")
	}

	now := s.timeNow().UTC()
	if err := s.db.WithContext(ctx).Model(&message).
		Updates(map[string]any{
			"content":   content,
			"edited_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("chat service: edit message: %w", err)
	}
	message.Content = content
	message.EditedAt = &now

	participants, err := s.participantIDs(ctx, message.ConversationID)
	if err == nil {
		s.broadcast(participants, realtime.EventMessageUpdated, messageWire(message))
	}

	dto := mapMessage(message)
	return &dto, nil
}

// DeleteMessage tombstones the sender's own message. The id survives so late
// events referencing it can be recognised; deleting twice is a no-op.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, userID string) error {
	ctx = ensureContext(ctx)

	var message models.ChatMessage
	if err := s.db.WithContext(ctx).First(&message, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("chat service: load message: %w", err)
	}
	if message.SenderID != userID {
		return apperrors.ErrForbidden
	}
	if message.Deleted {
		return nil
	}

	now := s.timeNow().UTC()
	if err := s.db.WithContext(ctx).Model(&message).
		Updates(map[string]any{
			"deleted":    true,
			"deleted_at": now,
			"content":    "",
			"edited_at":  nil,
		}).Error; err != nil {
		return fmt.Errorf("chat service: delete message: %w", err)
	}

	participants, err := s.participantIDs(ctx, message.ConversationID)
	if err == nil {
		s.broadcast(participants, realtime.EventMessageDeleted, realtime.MessageRef{
			ConversationID: message.ConversationID,
			MessageID:      message.ID,
		})
	}
	return nil
}

// MarkConversationRead zeroes the caller's unread counter and advances the
// read watermark.
func (s *ChatService) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	ctx = ensureContext(ctx)

	membership, err := s.loadMembership(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	now := s.timeNow().UTC()
	if err := s.db.WithContext(ctx).Model(membership).
		Updates(map[string]any{
			"unread_count": 0,
			"last_read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("chat service: mark read: %w", err)
	}
	return nil
}

// Typing relays a typing indicator to the other participants. It is not
// persisted.
func (s *ChatService) Typing(ctx context.Context, conversationID, userID string, typing bool) error {
	ctx = ensureContext(ctx)

	if _, err := s.loadMembership(ctx, conversationID, userID); err != nil {
		return err
	}

	participants, err := s.participantIDs(ctx, conversationID)
	if err != nil {
		return err
	}
	s.broadcast(excludeID(participants, userID), realtime.EventUserTyping, realtime.TypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
		Typing:         typing,
	})
	return nil
}

// PushHistory replays a page of messages to the requesting user as a history
// event over the chat stream.
func (s *ChatService) PushHistory(ctx context.Context, conversationID, userID, before string, limit int) error {
	ctx = ensureContext(ctx)

	messages, err := s.ListMessages(ctx, ListMessagesInput{
		ConversationID: conversationID,
		UserID:         userID,
		Before:         before,
		Limit:          limit,
	})
	if err != nil {
		return err
	}

	payload := make([]realtime.MessagePayload, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, realtime.MessagePayload{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
			EditedAt:       msg.EditedAt,
		})
	}
	s.broadcast([]string{userID}, realtime.EventHistory, payload)
	return nil
}

func (s *ChatService) loadMembership(ctx context.Context, conversationID, userID string) (*models.ConversationParticipant, error) {
	var membership models.ConversationParticipant
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("chat service: load membership: %w", err)
	}
	return &membership, nil
}

func (s *ChatService) participantIDs(ctx context.Context, conversationID string) ([]string, error) {
	var rows []models.ConversationParticipant
	if err := s.db.WithContext(ctx).
		Select("user_id").
		Where("conversation_id = ?", conversationID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("chat service: list participants: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	return ids, nil
}

func (s *ChatService) stampLastMessageTx(tx *gorm.DB, conversation *models.Conversation, message models.ChatMessage) error {
	at := message.CreatedAt
	if at.IsZero() {
		at = s.timeNow().UTC()
	}
	if err := tx.Model(conversation).
		Updates(map[string]any{
			"last_message_id":      message.ID,
			"last_message_preview": truncate(message.Content, 255),
			"last_message_at":      at,
		}).Error; err != nil {
		return fmt.Errorf("stamp last message: %w", err)
	}
	return nil
}

func (s *ChatService) bumpUnreadTx(tx *gorm.DB, conversationID, senderID string) error {
	if err := tx.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, senderID).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error; err != nil {
		return fmt.Errorf("bump unread: %w", err)
	}
	return nil
}

func (s *ChatService) broadcast(userIDs []string, event string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToUsers(realtime.StreamChat, userIDs, realtime.Message{
		Event: event,
		Data:  data,
	})
}

func excludeID(values []string, target string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != target {
			out = append(out, value)
		}
	}
	return out
}

func messageWire(message models.ChatMessage) realtime.MessagePayload {
	return realtime.MessagePayload{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		CreatedAt:      message.CreatedAt,
		EditedAt:       message.EditedAt,
	}
}

func mapMessage(row models.ChatMessage) MessageDTO {
	dto := MessageDTO{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Content:        row.Content,
		CreatedAt:      row.CreatedAt,
		EditedAt:       row.EditedAt,
		Deleted:        row.Deleted,
	}
	if row.Deleted {
		dto.Content = ""
		dto.EditedAt = nil
	}
	return dto
}

func mapConversation(row models.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:                 row.ID,
		LastMessagePreview: row.LastMessagePreview,
		LastMessageAt:      row.LastMessageAt,
		CreatedAt:          row.CreatedAt,
	}
	for _, participant := range row.Participants {
		dto.ParticipantIDs = append(dto.ParticipantIDs, participant.UserID)
		if participant.User != nil {
			dto.Participants = append(dto.Participants, mapUser(*participant.User))
		}
	}
	return dto
}
