package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradelink-hq/tradelink/internal/models"
	apperrors "github.com/tradelink-hq/tradelink/pkg/errors"
)

func TestNotificationServiceLifecycle(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	user := seedUser(t, db, "user@example.com")
	sender := seedUser(t, db, "sender@example.com")

	created, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID:   user.ID,
		SenderID: sender.ID,
		Type:     models.NotificationMessage,
		Title:    "New message",
		Message:  "You have a new message",
		Metadata: map[string]any{"conversation_id": "c1"},
	})
	require.NoError(t, err)
	require.False(t, created.IsRead)
	require.Equal(t, "c1", created.Metadata["conversation_id"])

	notes, total, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, notes, 1)

	read, err := svc.MarkRead(context.Background(), user.ID, created.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	firstReadAt := *read.ReadAt

	// The read transition happens once; marking again keeps the original
	// timestamp.
	again, err := svc.MarkRead(context.Background(), user.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, firstReadAt, *again.ReadAt)

	unread, _, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	require.NoError(t, svc.Delete(context.Background(), user.ID, created.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), user.ID, created.ID), apperrors.ErrNotFound)
}

func TestNotificationServiceSkipsSelfNotifications(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	user := seedUser(t, db, "user@example.com")

	created, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID:   user.ID,
		SenderID: user.ID,
		Type:     models.NotificationPostLike,
		Title:    "New like",
	})
	require.NoError(t, err)
	require.Nil(t, created)

	notes, _, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Empty(t, notes)
}

func TestNotificationServiceMarkAllRead(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	user := seedUser(t, db, "user@example.com")
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateNotificationInput{
			UserID: user.ID,
			Type:   models.NotificationSystem,
			Title:  "System notice",
		})
		require.NoError(t, err)
	}

	require.NoError(t, svc.MarkAllRead(context.Background(), user.ID))

	unread, _, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	// Scoped to the owner only.
	other := seedUser(t, db, "other@example.com")
	_, err = svc.Create(context.Background(), CreateNotificationInput{
		UserID: other.ID,
		Type:   models.NotificationSystem,
		Title:  "For someone else",
	})
	require.NoError(t, err)
	stillUnread, _, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: other.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, stillUnread, 1)
}
