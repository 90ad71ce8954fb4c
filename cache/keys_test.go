package cache

import (
	"testing"

	"chat-service/event"

	"github.com/stretchr/testify/assert"
)

func TestKeyScheme(t *testing.T) {
	assert.Equal(t, "user:7", UserKey(7))
	assert.Equal(t, "chats:7", ChatsKey(7))
	assert.Equal(t, "contacts:7", ContactsKey(7))
	assert.Equal(t, "devices:7", DevicesKey(7))
	assert.Equal(t, "notifications:7", NotificationsKey(7))
}

func TestKeysForNewMessage(t *testing.T) {
	keys := KeysFor(event.NewMessage, Scope{UserIDs: []uint{1, 2}})
	assert.ElementsMatch(t, []string{
		"chats:1", "notifications:1",
		"chats:2", "notifications:2",
	}, keys)
}

func TestKeysForStatusChange(t *testing.T) {
	for _, tp := range []event.Type{
		event.MessagesDelivered, event.MessagesRead, event.MessageStatusUpdate,
	} {
		keys := KeysFor(tp, Scope{UserIDs: []uint{9}})
		assert.ElementsMatch(t, []string{"chats:9", "notifications:9"}, keys, string(tp))
	}
}

func TestKeysForContactLifecycle(t *testing.T) {
	for _, tp := range []event.Type{
		event.ContactRequest, event.ContactRequestAccepted,
		event.ContactRequestRejected, event.ContactBlocked,
		event.ContactUnblocked, event.ContactRequestsViewed,
	} {
		keys := KeysFor(tp, Scope{UserIDs: []uint{4, 5}})
		assert.ElementsMatch(t, []string{"contacts:4", "contacts:5"}, keys, string(tp))
	}
}

func TestKeysForNewChat(t *testing.T) {
	keys := KeysFor(event.NewChat, Scope{UserIDs: []uint{1, 2, 3}})
	assert.ElementsMatch(t, []string{"chats:1", "chats:2", "chats:3"}, keys)
}

func TestKeysForUnknownTypeIsEmpty(t *testing.T) {
	assert.Empty(t, KeysFor(event.Type("SOMETHING_ELSE"), Scope{UserIDs: []uint{2}}))
}
