package event

import (
	"encoding/json"
	"time"
)

// Type enumerates every fan-out event carried on the relay channel. The set
// is closed: consumers dispatch through a handler table keyed by Type and
// drop anything else.
type Type string

const (
	NewMessage             Type = "NEW_MESSAGE"
	NewChat                Type = "NEW_CHAT"
	MessagesDelivered      Type = "MESSAGES_DELIVERED"
	MessagesRead           Type = "MESSAGES_READ"
	MessageStatusUpdate    Type = "MESSAGE_STATUS_UPDATE"
	MessageDeleted         Type = "MESSAGE_DELETED"
	MessageReaction        Type = "MESSAGE_REACTION"
	ContactRequest         Type = "CONTACT_REQUEST"
	ContactRequestAccepted Type = "CONTACT_REQUEST_ACCEPTED"
	ContactRequestRejected Type = "CONTACT_REQUEST_REJECTED"
	ContactBlocked         Type = "CONTACT_BLOCKED"
	ContactUnblocked       Type = "CONTACT_UNBLOCKED"
	NotificationsCleared   Type = "NOTIFICATIONS_CLEARED"
	ContactRequestsViewed  Type = "CONTACT_REQUESTS_VIEWED"
)

// Known reports whether t is one of the closed set of variants.
func (t Type) Known() bool {
	switch t {
	case NewMessage, NewChat, MessagesDelivered, MessagesRead,
		MessageStatusUpdate, MessageDeleted, MessageReaction,
		ContactRequest, ContactRequestAccepted, ContactRequestRejected,
		ContactBlocked, ContactUnblocked, NotificationsCleared,
		ContactRequestsViewed:
		return true
	}
	return false
}

// Event is the envelope published on the relay channel. Payload stays raw
// until the consumer-side handler decodes it into the variant's own struct.
type Event struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Recipient addresses one routing target. SocketID is the recipient's live
// socket at publish time, empty when the user held no session; consumers
// must treat it as best-effort and skip stale entries.
type Recipient struct {
	UserID   uint   `json:"user_id"`
	SocketID string `json:"socket_id,omitempty"`
}

type NewMessagePayload struct {
	ChatID     uint            `json:"chat_id"`
	Message    json.RawMessage `json:"message"`
	SenderID   uint            `json:"sender_id"`
	Recipients []Recipient     `json:"recipients"`
}

type NewChatPayload struct {
	ChatID     uint            `json:"chat_id"`
	Chat       json.RawMessage `json:"chat"`
	Recipients []Recipient     `json:"recipients"`
}

// StatusChangePayload backs MESSAGES_DELIVERED, MESSAGES_READ and
// MESSAGE_STATUS_UPDATE: the actor's id plus every message id the bulk
// transition touched, so other participants update without a refetch.
type StatusChangePayload struct {
	ChatID     uint   `json:"chat_id"`
	MessageIDs []uint `json:"message_ids"`
	Status     string `json:"status"`
	UserID     uint   `json:"user_id"`
}

type MessageDeletedPayload struct {
	ChatID          uint   `json:"chat_id"`
	MessageID       uint   `json:"message_id"`
	DeletedByUserID uint   `json:"deleted_by_user_id"`
	Scope           string `json:"scope"`
}

type MessageReactionPayload struct {
	ChatID    uint            `json:"chat_id"`
	MessageID uint            `json:"message_id"`
	UserID    uint            `json:"user_id"`
	Action    string          `json:"action"`
	Reaction  json.RawMessage `json:"reaction,omitempty"`
}

// ContactPayload backs every contact-lifecycle variant; Recipient addresses
// the single user whose UI must update.
type ContactPayload struct {
	Contact   json.RawMessage `json:"contact,omitempty"`
	ActorID   uint            `json:"actor_id"`
	Recipient Recipient       `json:"recipient"`
}

type NotificationsClearedPayload struct {
	ChatID    uint      `json:"chat_id"`
	Recipient Recipient `json:"recipient"`
}

type ContactRequestsViewedPayload struct {
	Recipient Recipient `json:"recipient"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// New wraps a typed payload into the wire envelope.
func New(t Type, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Payload: raw}, nil
}
