package cache

import (
	"fmt"

	"chat-service/event"
)

// Every cache key the service writes is built here. Handlers never spell
// keys by hand, which keeps the invalidation mapping below authoritative.

// Message histories are assembled per viewer (delete markers, mark-read side
// effects) and are never cached, so no key exists for them.

func UserKey(userID uint) string          { return fmt.Sprintf("user:%d", userID) }
func ChatsKey(userID uint) string         { return fmt.Sprintf("chats:%d", userID) }
func ContactsKey(userID uint) string      { return fmt.Sprintf("contacts:%d", userID) }
func DevicesKey(userID uint) string       { return fmt.Sprintf("devices:%d", userID) }
func NotificationsKey(userID uint) string { return fmt.Sprintf("notifications:%d", userID) }

// Scope names whose projections a state change touched.
type Scope struct {
	UserIDs []uint
}

// KeysFor derives every cache key a state change of the given type makes
// stale. Centralizing the mapping here keeps handlers from drifting apart
// on which keys they remember to drop.
func KeysFor(t event.Type, scope Scope) []string {
	var keys []string

	switch t {
	case event.NewMessage, event.MessageDeleted, event.MessageReaction:
		for _, id := range scope.UserIDs {
			keys = append(keys, ChatsKey(id), NotificationsKey(id))
		}
	case event.NewChat:
		for _, id := range scope.UserIDs {
			keys = append(keys, ChatsKey(id))
		}
	case event.MessagesDelivered, event.MessagesRead, event.MessageStatusUpdate:
		for _, id := range scope.UserIDs {
			keys = append(keys, ChatsKey(id), NotificationsKey(id))
		}
	case event.NotificationsCleared:
		for _, id := range scope.UserIDs {
			keys = append(keys, NotificationsKey(id), ChatsKey(id))
		}
	case event.ContactRequest, event.ContactRequestAccepted,
		event.ContactRequestRejected, event.ContactBlocked,
		event.ContactUnblocked, event.ContactRequestsViewed:
		for _, id := range scope.UserIDs {
			keys = append(keys, ContactsKey(id))
		}
	}

	return keys
}
