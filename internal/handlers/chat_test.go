package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/database/testutil"
	"github.com/tradelink-hq/tradelink/internal/middleware"
	"github.com/tradelink-hq/tradelink/internal/models"
	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/internal/services"
)

func seedChatUsers(t *testing.T, db *gorm.DB) (*models.User, *models.User) {
	t.Helper()
	alice := &models.User{Email: "alice@example.com", Password: "x", DisplayName: "Alice", IsActive: true}
	bob := &models.User{Email: "bob@example.com", Password: "x", DisplayName: "Bob", IsActive: true}
	require.NoError(t, db.Create(alice).Error)
	require.NoError(t, db.Create(bob).Error)
	return alice, bob
}

func TestChatHandlerConversationFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewChatHandler(db, realtime.NewHub())
	require.NoError(t, err)

	alice, bob := seedChatUsers(t, db)

	createRecorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(createRecorder)
	c.Set(middleware.CtxUserIDKey, alice.ID)
	c.Request = jsonRequest(t, http.MethodPost, gin.H{
		"participant_ids": []string{bob.ID},
		"initial_message": "Hello Bob",
	})
	handler.CreateConversation(c)
	require.Equal(t, http.StatusCreated, createRecorder.Code)

	conversation := decodeData[services.ConversationDTO](t, createRecorder)
	require.ElementsMatch(t, []string{alice.ID, bob.ID}, conversation.ParticipantIDs)

	sendRecorder := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(sendRecorder)
	c2.Set(middleware.CtxUserIDKey, bob.ID)
	c2.Params = gin.Params{gin.Param{Key: "id", Value: conversation.ID}}
	c2.Request = jsonRequest(t, http.MethodPost, gin.H{"content": "Hi Alice"})
	handler.SendMessage(c2)
	require.Equal(t, http.StatusCreated, sendRecorder.Code)

	listRecorder := httptest.NewRecorder()
	c3, _ := gin.CreateTestContext(listRecorder)
	c3.Set(middleware.CtxUserIDKey, alice.ID)
	c3.Params = gin.Params{gin.Param{Key: "id", Value: conversation.ID}}
	handler.ListMessages(c3)
	require.Equal(t, http.StatusOK, listRecorder.Code)

	messages := decodeData[[]services.MessageDTO](t, listRecorder)
	require.Len(t, messages, 2)
	require.Equal(t, "Hello Bob", messages[0].Content)
	require.Equal(t, "Hi Alice", messages[1].Content)

	readRecorder := httptest.NewRecorder()
	c4, _ := gin.CreateTestContext(readRecorder)
	c4.Set(middleware.CtxUserIDKey, alice.ID)
	c4.Params = gin.Params{gin.Param{Key: "id", Value: conversation.ID}}
	handler.MarkRead(c4)
	require.Equal(t, http.StatusOK, readRecorder.Code)
}

func TestChatHandlerRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewChatHandler(db, nil)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	handler.ListConversations(c)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestNotificationHandlerListAndMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewNotificationHandler(db, nil)
	require.NoError(t, err)

	user := &models.User{Email: "dana@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	_, err = handler.service.Create(requestContext(nil), services.CreateNotificationInput{
		UserID:  user.ID,
		Type:    models.NotificationSystem,
		Title:   "Welcome",
		Message: "Your account is ready",
	})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.List(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	notes := decodeData[[]services.NotificationDTO](t, recorder)
	require.Len(t, notes, 1)

	readRecorder := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(readRecorder)
	c2.Set(middleware.CtxUserIDKey, user.ID)
	c2.Params = gin.Params{gin.Param{Key: "id", Value: notes[0].ID}}
	handler.MarkRead(c2)
	require.Equal(t, http.StatusOK, readRecorder.Code)

	read := decodeData[services.NotificationDTO](t, readRecorder)
	require.True(t, read.IsRead)
}
