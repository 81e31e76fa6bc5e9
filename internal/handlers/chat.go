package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/middleware"
	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/internal/services"
	"github.com/tradelink-hq/tradelink/pkg/errors"
	"github.com/tradelink-hq/tradelink/pkg/response"
)

// ChatHandler exposes conversation and message endpoints.
type ChatHandler struct {
	chat *services.ChatService
}

// NewChatHandler constructs a chat handler and wires realtime commands into
// the service.
func NewChatHandler(db *gorm.DB, hub *realtime.Hub) (*ChatHandler, error) {
	chat, err := services.NewChatService(db, hub)
	if err != nil {
		return nil, err
	}
	if hub != nil {
		chat.RegisterCommands(hub)
	}
	return &ChatHandler{chat: chat}, nil
}

// ListConversations returns the current user's conversations.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.chat.ListConversations(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

type createConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1"`
	InitialMessage string   `json:"initial_message" validate:"max=4000"`
}

// CreateConversation opens a conversation with the given participants.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createConversationRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	conversation, err := h.chat.CreateConversation(requestContext(c), services.CreateConversationInput{
		CreatorID:      userID,
		ParticipantIDs: payload.ParticipantIDs,
		InitialMessage: payload.InitialMessage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, conversation)
}

// GetConversation returns one conversation with participants and unread count.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	conversation, err := h.chat.GetConversation(requestContext(c), strings.TrimSpace(c.Param("id")), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conversation)
}

// ListMessages returns a chronological page of messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.chat.ListMessages(requestContext(c), services.ListMessagesInput{
		ConversationID: strings.TrimSpace(c.Param("id")),
		UserID:         userID,
		Before:         c.Query("before"),
		Limit:          parseIntQuery(c, "limit", 50),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

type sendMessageRequest struct {
	Content   string `json:"content" validate:"required,max=4000"`
	MessageID string `json:"message_id" validate:"omitempty,uuid4"`
}

// SendMessage persists and broadcasts a message.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload sendMessageRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	message, err := h.chat.SendMessage(requestContext(c), services.SendMessageInput{
		ConversationID: strings.TrimSpace(c.Param("id")),
		SenderID:       userID,
		Content:        payload.Content,
		MessageID:      payload.MessageID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}

type editMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// EditMessage updates the content of the sender's own message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload editMessageRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	message, err := h.chat.EditMessage(requestContext(c), strings.TrimSpace(c.Param("messageId")), userID, payload.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, message)
}

// DeleteMessage tombstones the sender's own message.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.chat.DeleteMessage(requestContext(c), strings.TrimSpace(c.Param("messageId")), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// MarkRead zeroes the caller's unread counter for a conversation.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.chat.MarkConversationRead(requestContext(c), strings.TrimSpace(c.Param("id")), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}
