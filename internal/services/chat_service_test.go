package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tradelink-hq/tradelink/internal/models"
	apperrors "github.com/tradelink-hq/tradelink/pkg/errors"
)

func newChatFixture(t *testing.T) (*ChatService, *models.User, *models.User, string) {
	t.Helper()
	db := openTestDB(t)
	svc, err := NewChatService(db, nil)
	require.NoError(t, err)

	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	conv, err := svc.CreateConversation(context.Background(), CreateConversationInput{
		CreatorID:      alice.ID,
		ParticipantIDs: []string{bob.ID},
	})
	require.NoError(t, err)
	return svc, alice, bob, conv.ID
}

func TestCreateConversationRequiresTwoParticipants(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewChatService(db, nil)
	require.NoError(t, err)

	alice := seedUser(t, db, "alice@example.com")

	_, err = svc.CreateConversation(context.Background(), CreateConversationInput{
		CreatorID: alice.ID,
	})
	require.Error(t, err)

	_, err = svc.CreateConversation(context.Background(), CreateConversationInput{
		CreatorID:      alice.ID,
		ParticipantIDs: []string{"no-such-user"},
	})
	require.Error(t, err)
}

func TestCreateConversationWithInitialMessage(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewChatService(db, nil)
	require.NoError(t, err)

	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	conv, err := svc.CreateConversation(context.Background(), CreateConversationInput{
		CreatorID:      alice.ID,
		ParticipantIDs: []string{bob.ID},
		InitialMessage: "Hello Bob, saw your listing",
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{alice.ID, bob.ID}, conv.ParticipantIDs)
	require.Equal(t, "Hello Bob, saw your listing", conv.LastMessagePreview)
	require.Zero(t, conv.UnreadCount, "creator starts read")

	// The other participant starts with one unread message.
	bobView, err := svc.GetConversation(context.Background(), conv.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, 1, bobView.UnreadCount)
}

func TestSendMessageBumpsUnreadForOthersOnly(t *testing.T) {
	svc, alice, bob, convID := newChatFixture(t)

	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice.ID,
		Content:        "ping",
	})
	require.NoError(t, err)

	aliceView, err := svc.GetConversation(context.Background(), convID, alice.ID)
	require.NoError(t, err)
	require.Zero(t, aliceView.UnreadCount)

	bobView, err := svc.GetConversation(context.Background(), convID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, 1, bobView.UnreadCount)

	require.NoError(t, svc.MarkConversationRead(context.Background(), convID, bob.ID))
	bobView, err = svc.GetConversation(context.Background(), convID, bob.ID)
	require.NoError(t, err)
	require.Zero(t, bobView.UnreadCount)
}

func TestSendMessageIsIdempotentByID(t *testing.T) {
	svc, alice, _, convID := newChatFixture(t)

	messageID := uuid.NewString()
	first, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice.ID,
		Content:        "offer attached",
		MessageID:      messageID,
	})
	require.NoError(t, err)
	require.Equal(t, messageID, first.ID)

	second, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice.ID,
		Content:        "offer attached",
		MessageID:      messageID,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	messages, err := svc.ListMessages(context.Background(), ListMessagesInput{
		ConversationID: convID,
		UserID:         alice.ID,
	})
	require.NoError(t, err)
	require.Len(t, messages, 1, "resend must not duplicate")
}

func TestSendMessageRejectsOutsiders(t *testing.T) {
	svc, _, _, convID := newChatFixture(t)

	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       "stranger",
		Content:        "let me in",
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEditMessageRules(t *testing.T) {
	svc, alice, bob, convID := newChatFixture(t)

	sent, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice.ID,
		Content:        "typo here",
	})
	require.NoError(t, err)

	// Only the sender may edit.
	_, err = svc.EditMessage(context.Background(), sent.ID, bob.ID, "hijacked")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	edited, err := svc.EditMessage(context.Background(), sent.ID, alice.ID, "typo fixed")
	require.NoError(t, err)
	require.Equal(t, "typo fixed", edited.Content)
	require.NotNil(t, edited.EditedAt)

	// Tombstoned messages cannot be edited.
	require.NoError(t, svc.DeleteMessage(context.Background(), sent.ID, alice.ID))
	_, err = svc.EditMessage(context.Background(), sent.ID, alice.ID, "too late")
	require.Error(t, err)
}

func TestDeleteMessageIsTerminalAndIdempotent(t *testing.T) {
	svc, alice, _, convID := newChatFixture(t)

	sent, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice.ID,
		Content:        "confidential",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(context.Background(), sent.ID, alice.ID))
	require.NoError(t, svc.DeleteMessage(context.Background(), sent.ID, alice.ID))

	messages, err := svc.ListMessages(context.Background(), ListMessagesInput{
		ConversationID: convID,
		UserID:         alice.ID,
	})
	require.NoError(t, err)
	require.Len(t, messages, 1, "tombstone keeps the id")
	require.True(t, messages[0].Deleted)
	require.Empty(t, messages[0].Content)
}

func TestListMessagesPagesChronologically(t *testing.T) {
	svc, alice, _, convID := newChatFixture(t)

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sent, err := svc.SendMessage(context.Background(), SendMessageInput{
			ConversationID: convID,
			SenderID:       alice.ID,
			Content:        string(rune('a' + i)),
		})
		require.NoError(t, err)
		// Space the timestamps so cursor pagination is deterministic.
		require.NoError(t, svc.db.Model(&models.ChatMessage{}).
			Where("id = ?", sent.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	page, err := svc.ListMessages(context.Background(), ListMessagesInput{
		ConversationID: convID,
		UserID:         alice.ID,
		Limit:          3,
	})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, "c", page[0].Content)
	require.Equal(t, "e", page[2].Content, "chronological order, newest page")

	older, err := svc.ListMessages(context.Background(), ListMessagesInput{
		ConversationID: convID,
		UserID:         alice.ID,
		Before:         page[0].ID,
		Limit:          3,
	})
	require.NoError(t, err)
	require.Len(t, older, 2)
	require.Equal(t, "a", older[0].Content)
	require.Equal(t, "b", older[1].Content)
}

func TestListConversationsIncludesUnread(t *testing.T) {
	svc, alice, bob, convID := newChatFixture(t)

	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice.ID,
		Content:        "hello",
	})
	require.NoError(t, err)

	conversations, err := svc.ListConversations(context.Background(), bob.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, convID, conversations[0].ID)
	require.Equal(t, 1, conversations[0].UnreadCount)
	require.Equal(t, "hello", conversations[0].LastMessagePreview)

	none, err := svc.ListConversations(context.Background(), "stranger")
	require.NoError(t, err)
	require.Empty(t, none)
}
