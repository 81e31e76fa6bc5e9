package state_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/internal/realtime/client"
	"github.com/tradelink-hq/tradelink/internal/realtime/state"
	"github.com/tradelink-hq/tradelink/pkg/logger"
)

func init() {
	_ = logger.Init("error", "console")
}

func event(t *testing.T, name string, payload any) client.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return client.Event{Stream: realtime.StreamChat, Event: name, Data: raw}
}

func message(id, convID, sender, content string) realtime.MessagePayload {
	return realtime.MessagePayload{
		ID:             id,
		ConversationID: convID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewMessageIsIdempotent(t *testing.T) {
	store := state.NewStore("me", nil)

	msg := message("m1", "c1", "other", "hello")
	store.Apply(event(t, realtime.EventNewMessage, msg))
	store.Apply(event(t, realtime.EventNewMessage, msg))

	conv, ok := store.Conversation("c1")
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, "hello", conv.Messages[0].Content)
	require.Equal(t, 1, conv.UnreadCount, "duplicate must not double-count unread")
}

func TestUnreadCounting(t *testing.T) {
	store := state.NewStore("me", nil)

	// Own messages never count as unread.
	store.Apply(event(t, realtime.EventNewMessage, message("m1", "c1", "me", "hi")))
	conv, _ := store.Conversation("c1")
	require.Zero(t, conv.UnreadCount)

	// Messages in the active conversation never count as unread.
	store.SetActiveConversation("c1")
	store.Apply(event(t, realtime.EventNewMessage, message("m2", "c1", "other", "hey")))
	conv, _ = store.Conversation("c1")
	require.Zero(t, conv.UnreadCount)

	// Messages elsewhere do.
	store.Apply(event(t, realtime.EventNewMessage, message("m3", "c2", "other", "psst")))
	other, _ := store.Conversation("c2")
	require.Equal(t, 1, other.UnreadCount)

	// Activating a conversation clears its count.
	store.SetActiveConversation("c2")
	other, _ = store.Conversation("c2")
	require.Zero(t, other.UnreadCount)
}

func TestMessageUpdatedRequiresPresence(t *testing.T) {
	store := state.NewStore("me", nil)

	edited := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)
	update := message("m1", "c1", "other", "edited")
	update.EditedAt = &edited

	// An update for a never-seen message is dropped.
	store.Apply(event(t, realtime.EventMessageUpdated, update))
	_, ok := store.Conversation("c1")
	require.False(t, ok)

	store.Apply(event(t, realtime.EventNewMessage, message("m1", "c1", "other", "original")))
	store.Apply(event(t, realtime.EventMessageUpdated, update))

	conv, _ := store.Conversation("c1")
	require.Equal(t, "edited", conv.Messages[0].Content)
	require.NotNil(t, conv.Messages[0].EditedAt)
	require.Equal(t, edited, *conv.Messages[0].EditedAt)
	// An update never changes the sender or creation time.
	require.Equal(t, "other", conv.Messages[0].SenderID)
}

func TestMessageDeletedIsTerminal(t *testing.T) {
	store := state.NewStore("me", nil)

	store.Apply(event(t, realtime.EventNewMessage, message("m1", "c1", "other", "secret")))
	store.Apply(event(t, realtime.EventMessageDeleted, realtime.MessageRef{ConversationID: "c1", MessageID: "m1"}))

	conv, _ := store.Conversation("c1")
	require.True(t, conv.Messages[0].Deleted)
	require.Empty(t, conv.Messages[0].Content)

	// Neither a late duplicate nor a late edit revives a tombstone.
	store.Apply(event(t, realtime.EventNewMessage, message("m1", "c1", "other", "secret")))
	store.Apply(event(t, realtime.EventMessageUpdated, message("m1", "c1", "other", "edited")))

	conv, _ = store.Conversation("c1")
	require.Len(t, conv.Messages, 1)
	require.True(t, conv.Messages[0].Deleted)
	require.Empty(t, conv.Messages[0].Content)

	// Deleting an unknown message is a no-op.
	store.Apply(event(t, realtime.EventMessageDeleted, realtime.MessageRef{ConversationID: "c9", MessageID: "m9"}))
	_, ok := store.Conversation("c9")
	require.False(t, ok)
}

func TestTypingIndicators(t *testing.T) {
	store := state.NewStore("me", nil)

	typing := func(user string, on bool) client.Event {
		return event(t, realtime.EventUserTyping, realtime.TypingPayload{
			ConversationID: "c1", UserID: user, Typing: on,
		})
	}

	store.Apply(typing("alice", true))
	store.Apply(typing("alice", true)) // idempotent
	store.Apply(typing("bob", true))
	store.Apply(typing("me", true)) // own typing ignored
	require.ElementsMatch(t, []string{"alice", "bob"}, store.TypingUsers("c1"))

	store.Apply(typing("bob", false))
	store.Apply(typing("bob", false)) // idempotent
	require.Equal(t, []string{"alice"}, store.TypingUsers("c1"))

	// A delivered message ends the sender's typing indicator.
	store.Apply(event(t, realtime.EventNewMessage, message("m1", "c1", "alice", "done typing")))
	require.Empty(t, store.TypingUsers("c1"))
}

func TestNewConversationTriggersRefresh(t *testing.T) {
	var fetchedID string
	refresh := func(conversationID string) (*state.Conversation, error) {
		fetchedID = conversationID
		return &state.Conversation{
			ID:             conversationID,
			ParticipantIDs: []string{"me", "alice"},
			Messages: []state.Message{
				{ID: "m0", ConversationID: conversationID, SenderID: "alice", Content: "earlier"},
			},
		}, nil
	}
	store := state.NewStore("me", refresh)

	initial := message("m1", "c1", "alice", "hi there")
	store.Apply(event(t, realtime.EventNewConversation, realtime.ConversationPayload{
		ConversationID: "c1",
		InitialMessage: &initial,
	}))

	require.Equal(t, "c1", fetchedID)
	conv, ok := store.Conversation("c1")
	require.True(t, ok)
	require.Equal(t, []string{"me", "alice"}, conv.ParticipantIDs)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, "m0", conv.Messages[0].ID)
	require.Equal(t, "m1", conv.Messages[1].ID)
}

func TestNewConversationSurvivesRefreshFailure(t *testing.T) {
	refresh := func(string) (*state.Conversation, error) {
		return nil, errors.New("api unavailable")
	}
	store := state.NewStore("me", refresh)

	initial := message("m1", "c1", "alice", "hi")
	store.Apply(event(t, realtime.EventNewConversation, realtime.ConversationPayload{
		ConversationID: "c1",
		ParticipantIDs: []string{"me", "alice"},
		InitialMessage: &initial,
	}))

	conv, ok := store.Conversation("c1")
	require.True(t, ok)
	require.Equal(t, []string{"me", "alice"}, conv.ParticipantIDs)
	require.Len(t, conv.Messages, 1)
}

func TestNotificationsAreDeduplicatedAndCounted(t *testing.T) {
	store := state.NewStore("me", nil)

	note := func(id string) client.Event {
		return client.Event{
			Stream: realtime.StreamNotifications,
			Event:  realtime.EventNotification,
			Data:   mustJSON(t, realtime.NotificationPayload{ID: id, Type: "post_like", Title: "Someone liked your post"}),
		}
	}

	store.Apply(note("n1"))
	store.Apply(note("n2"))
	store.Apply(note("n1")) // duplicate

	notes := store.Notifications()
	require.Len(t, notes, 2)
	require.Equal(t, "n2", notes[0].ID, "newest first")
	require.Equal(t, 2, store.UnreadNotifications())

	store.MarkNotificationRead("n2")
	require.Equal(t, 1, store.UnreadNotifications())

	store.MarkAllNotificationsRead()
	require.Zero(t, store.UnreadNotifications())
}

func TestPendingSendReconciliation(t *testing.T) {
	store := state.NewStore("me", nil)

	store.AppendPending(state.Message{ID: "m1", ConversationID: "c1", SenderID: "me", Content: "sending..."})

	conv, _ := store.Conversation("c1")
	require.Len(t, conv.Messages, 1)
	require.True(t, conv.Messages[0].Pending)

	// The server echo confirms the optimistic entry in place.
	store.Apply(event(t, realtime.EventNewMessage, message("m1", "c1", "me", "sending...")))

	conv, _ = store.Conversation("c1")
	require.Len(t, conv.Messages, 1)
	require.False(t, conv.Messages[0].Pending)
	require.False(t, conv.Messages[0].CreatedAt.IsZero(), "server timestamp adopted")
	require.Zero(t, conv.UnreadCount)
}

func TestMalformedAndUnknownEventsAreIgnored(t *testing.T) {
	store := state.NewStore("me", nil)

	store.Apply(client.Event{Event: realtime.EventNewMessage, Data: json.RawMessage(`{broken`)})
	store.Apply(client.Event{Event: "totally_unknown", Data: json.RawMessage(`{}`)})
	store.Apply(client.Event{Event: realtime.EventUserTyping, Data: json.RawMessage(`"not an object"`)})

	require.Empty(t, store.Conversations())
	require.Empty(t, store.Notifications())
}

func TestHistoryMergesWithoutDuplicates(t *testing.T) {
	store := state.NewStore("me", nil)

	store.Apply(event(t, realtime.EventNewMessage, message("m2", "c1", "alice", "latest")))
	store.Apply(event(t, realtime.EventHistory, []realtime.MessagePayload{
		message("m1", "c1", "alice", "older"),
		message("m2", "c1", "alice", "latest"),
	}))

	conv, _ := store.Conversation("c1")
	require.Len(t, conv.Messages, 2)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
