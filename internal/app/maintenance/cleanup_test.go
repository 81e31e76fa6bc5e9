package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/tradelink-hq/tradelink/internal/database/testutil"
	"github.com/tradelink-hq/tradelink/internal/models"
)

func TestCleanupNotifications(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	oldRead := now.AddDate(0, 0, -120)
	recentRead := now.AddDate(0, 0, -10)

	stale := models.Notification{UserID: "u1", Type: models.NotificationSystem, Title: "stale", IsRead: true, ReadAt: &oldRead}
	fresh := models.Notification{UserID: "u1", Type: models.NotificationSystem, Title: "fresh", IsRead: true, ReadAt: &recentRead}
	unread := models.Notification{UserID: "u1", Type: models.NotificationSystem, Title: "unread"}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&fresh).Error)
	require.NoError(t, db.Create(&unread).Error)

	removed, err := CleanupNotifications(context.Background(), db, now, 90)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestCleanupMessageTombstones(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	sender := models.User{Email: "sender@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&sender).Error)

	conversation := models.Conversation{}
	require.NoError(t, db.Create(&conversation).Error)

	oldDelete := now.AddDate(0, 0, -60)
	recentDelete := now.AddDate(0, 0, -5)

	stale := models.ChatMessage{ConversationID: conversation.ID, SenderID: sender.ID, Deleted: true, DeletedAt: &oldDelete}
	fresh := models.ChatMessage{ConversationID: conversation.ID, SenderID: sender.ID, Deleted: true, DeletedAt: &recentDelete}
	live := models.ChatMessage{ConversationID: conversation.ID, SenderID: sender.ID, Content: "still here"}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&fresh).Error)
	require.NoError(t, db.Create(&live).Error)

	removed, err := CleanupMessageTombstones(context.Background(), db, now, 30)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var count int64
	require.NoError(t, db.Model(&models.ChatMessage{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	readAt := now.AddDate(0, 0, -200)
	note := models.Notification{UserID: "u1", Type: models.NotificationSystem, Title: "old", IsRead: true, ReadAt: &readAt}
	require.NoError(t, db.Create(&note).Error)

	cleaner := NewCleaner(db,
		WithNow(func() time.Time { return now }),
		WithNotificationRetentionDays(90),
		WithMessageRetentionDays(30),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, cleaner.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cleaner := NewCleaner(db, WithSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())

	ctx := cleaner.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
