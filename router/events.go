package router

import (
	"context"
	"encoding/json"

	"chat-service/event"

	"go.uber.org/zap"
)

// Events builds the relay handler table: each fan-out variant becomes one or
// more targeted socket pushes. Handlers re-resolve liveness through the
// presence store at delivery time; a recipient with no live socket is
// skipped without aborting the fan-out to anyone else. Decode failures are
// logged and the envelope dropped.
func Events(deps *SocketDeps) event.HandlerTable {
	return event.HandlerTable{
		event.NewMessage: func(ctx context.Context, e event.Event) {
			payload := event.NewMessagePayload{}
			if !decode(deps, e, &payload) {
				return
			}

			// Open-chat members get the message in place, every live
			// recipient additionally gets a notification push.
			deps.Gateway.EmitToChat(payload.ChatID, "new-message", map[string]any{
				"message": json.RawMessage(payload.Message),
				"chatId":  payload.ChatID,
			})
			for _, recipient := range payload.Recipients {
				if !live(ctx, deps, recipient.UserID) {
					continue
				}
				deps.Gateway.EmitToUser(recipient.UserID, "notification", map[string]any{
					"type":    string(event.NewMessage),
					"chatId":  payload.ChatID,
					"message": json.RawMessage(payload.Message),
				})
			}
		},

		event.NewChat: func(ctx context.Context, e event.Event) {
			payload := event.NewChatPayload{}
			if !decode(deps, e, &payload) {
				return
			}
			for _, recipient := range payload.Recipients {
				if !live(ctx, deps, recipient.UserID) {
					continue
				}
				deps.Gateway.EmitToUser(recipient.UserID, "new-chat", map[string]any{
					"chat": json.RawMessage(payload.Chat),
				})
			}
		},

		event.MessagesDelivered:   statusUpdate(deps),
		event.MessagesRead:        statusUpdate(deps),
		event.MessageStatusUpdate: statusUpdate(deps),

		event.MessageDeleted: func(ctx context.Context, e event.Event) {
			payload := event.MessageDeletedPayload{}
			if !decode(deps, e, &payload) {
				return
			}
			deps.Gateway.EmitToChat(payload.ChatID, "message-deleted", map[string]any{
				"messageId":       payload.MessageID,
				"chatId":          payload.ChatID,
				"deletedByUserId": payload.DeletedByUserID,
			})
		},

		event.MessageReaction: func(ctx context.Context, e event.Event) {
			payload := event.MessageReactionPayload{}
			if !decode(deps, e, &payload) {
				return
			}
			deps.Gateway.EmitToChat(payload.ChatID, "message-reaction", map[string]any{
				"messageId": payload.MessageID,
				"chatId":    payload.ChatID,
				"reaction":  json.RawMessage(payload.Reaction),
				"action":    payload.Action,
				"userId":    payload.UserID,
			})
		},

		event.ContactRequest:         contactPush(deps, "new-contact-request"),
		event.ContactRequestAccepted: contactPush(deps, "contact-request-accepted"),
		event.ContactRequestRejected: contactPush(deps, "contact-request-rejected"),

		event.ContactBlocked: func(ctx context.Context, e event.Event) {
			payload := event.ContactPayload{}
			if !decode(deps, e, &payload) {
				return
			}
			if !live(ctx, deps, payload.Recipient.UserID) {
				return
			}
			deps.Gateway.EmitToUser(payload.Recipient.UserID, "blocked-by-contact", map[string]any{
				"blockerId": payload.ActorID,
			})
		},

		event.ContactUnblocked: func(ctx context.Context, e event.Event) {
			payload := event.ContactPayload{}
			if !decode(deps, e, &payload) {
				return
			}
			if !live(ctx, deps, payload.Recipient.UserID) {
				return
			}
			deps.Gateway.EmitToUser(payload.Recipient.UserID, "unblocked-by-contact", map[string]any{
				"unblockerId": payload.ActorID,
			})
		},

		event.NotificationsCleared: func(ctx context.Context, e event.Event) {
			payload := event.NotificationsClearedPayload{}
			if !decode(deps, e, &payload) {
				return
			}
			deps.Gateway.EmitToUser(payload.Recipient.UserID, "notifications-cleared", map[string]any{
				"chatId": payload.ChatID,
			})
		},

		event.ContactRequestsViewed: func(ctx context.Context, e event.Event) {
			payload := event.ContactRequestsViewedPayload{}
			if !decode(deps, e, &payload) {
				return
			}
			deps.Gateway.EmitToUser(payload.Recipient.UserID, "contact-requests-viewed", nil)
		},
	}
}

// statusUpdate serves the three delivery-state variants: all of them render
// as one message-status-update push to the chat room.
func statusUpdate(deps *SocketDeps) event.Handler {
	return func(ctx context.Context, e event.Event) {
		payload := event.StatusChangePayload{}
		if !decode(deps, e, &payload) {
			return
		}
		deps.Gateway.EmitToChat(payload.ChatID, "message-status-update", map[string]any{
			"chatId":     payload.ChatID,
			"messageIds": payload.MessageIDs,
			"status":     payload.Status,
			"userId":     payload.UserID,
		})
	}
}

func contactPush(deps *SocketDeps, name string) event.Handler {
	return func(ctx context.Context, e event.Event) {
		payload := event.ContactPayload{}
		if !decode(deps, e, &payload) {
			return
		}
		if !live(ctx, deps, payload.Recipient.UserID) {
			return
		}
		deps.Gateway.EmitToUser(payload.Recipient.UserID, name, map[string]any{
			"contact": json.RawMessage(payload.Contact),
		})
	}
}

func decode(deps *SocketDeps, e event.Event, dest any) bool {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		deps.Log.Warn("events: malformed payload dropped",
			zap.String("type", string(e.Type)), zap.Error(err))
		return false
	}
	return true
}

// live is a best-effort presence probe; lookup errors count as offline and
// only suppress the optional direct push.
func live(ctx context.Context, deps *SocketDeps, userID uint) bool {
	online, err := deps.Presence.IsOnline(ctx, userID)
	return err == nil && online
}
