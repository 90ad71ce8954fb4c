package controller

import (
	"context"
	"encoding/json"
	"time"

	"chat-service/cache"
	"chat-service/event"
	"chat-service/model"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatCreateInput struct {
	UserIDs []uint `json:"user_ids"`
	IsGroup bool   `json:"is_group"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
}

type MessageSendInput struct {
	ChatID   uint   `json:"chat_id"`
	Type     string `json:"type"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url"`
	ParentID *uint  `json:"parent_id"`
}

type MessageForwardInput struct {
	MessageID uint `json:"message_id"`
	ChatID    uint `json:"chat_id"`
}

type MessageReactInput struct {
	Emoji string `json:"emoji"`
}

func (ctl *Controller) ChatCreate(c *fiber.Ctx) error {
	input := new(ChatCreateInput)
	if err := c.BodyParser(input); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if len(input.UserIDs) == 0 {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}
	if !input.IsGroup && len(input.UserIDs) != 1 {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	chat := &model.Chat{
		IsGroup:   input.IsGroup,
		Name:      input.Name,
		Avatar:    input.Avatar,
		CreatedBy: id,
	}

	members := append([]uint{id}, input.UserIDs...)
	err := ctl.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		for _, userID := range members {
			role := "member"
			if userID == id && input.IsGroup {
				role = "admin"
			}
			if err := tx.Create(&model.ChatUser{ChatID: chat.ID, UserID: userID, Role: role}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	ctl.DB.Preload("Users.User").First(chat, chat.ID)

	ctl.Cache.Invalidate(c.Context(), event.NewChat, cache.Scope{UserIDs: members})

	raw, _ := json.Marshal(chat)
	recipients := make([]event.Recipient, 0, len(input.UserIDs))
	for _, userID := range input.UserIDs {
		recipients = append(recipients, ctl.recipient(c.Context(), userID))
	}
	ctl.publish(c.Context(), event.NewChat, event.NewChatPayload{
		ChatID:     chat.ID,
		Chat:       raw,
		Recipients: recipients,
	})

	return okResp(c, chat)
}

// ChatList serves the user's chat overview with unread counters,
// cache-aside.
func (ctl *Controller) ChatList(c *fiber.Ctx) error {
	id := ctl.userID(c)
	key := cache.ChatsKey(id)

	projection := []fiber.Map{}
	if err := ctl.Cache.GetJSON(c.Context(), key, &projection); err == nil {
		return okResp(c, projection)
	}

	memberships := []model.ChatUser{}
	if err := ctl.DB.Where(&model.ChatUser{UserID: id}).Find(&memberships).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	for _, membership := range memberships {
		chat := model.Chat{}
		if err := ctl.DB.Preload("Users.User").First(&chat, membership.ChatID).Error; err != nil {
			continue
		}

		last := model.Message{}
		ctl.DB.Where(&model.Message{ChatID: chat.ID}).
			Order("id DESC").
			Preload("Sender").
			Limit(1).
			Find(&last)

		notification := model.ChatNotification{}
		ctl.DB.Where(&model.ChatNotification{ChatID: chat.ID, UserID: id}).Find(&notification)

		projection = append(projection, fiber.Map{
			"chat":         chat,
			"last_message": last,
			"unread_count": notification.UnreadCount,
			"last_read_at": notification.LastReadAt,
		})
	}

	if err := ctl.Cache.SetJSON(c.Context(), key, projection, cache.DefaultTTL); err != nil {
		ctl.Log.Warn("messenger: cache set failed")
	}

	return okResp(c, projection)
}

// MessageList returns the chat history the viewer still sees and marks
// everything read as a side effect (opening a chat reads it).
func (ctl *Controller) MessageList(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if !ctl.isParticipant(c.Context(), uint(chatID), id) {
		return errResp(c, fiber.StatusForbidden, "Not a chat participant")
	}

	messages := []model.Message{}
	if err := ctl.DB.
		Where("chat_id = ?", chatID).
		Where("id NOT IN (?)", ctl.DB.
			Model(&model.MessageDelete{}).
			Select("message_id").
			Where("scope = ? OR (scope = ? AND user_id = ?)",
				model.DeleteForEveryone, model.DeleteForMe, id)).
		Order("id ASC").
		Preload("Sender").
		Preload("Statuses").
		Find(&messages).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if _, err := ctl.Status.MarkAllRead(c.Context(), uint(chatID), id); err != nil {
		ctl.Log.Warn("messenger: mark all read failed")
	}

	return okResp(c, messages)
}

func (ctl *Controller) MessageSend(c *fiber.Ctx) error {
	input := new(MessageSendInput)
	if err := c.BodyParser(input); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if !ctl.isParticipant(c.Context(), input.ChatID, id) {
		return errResp(c, fiber.StatusForbidden, "Not a chat participant")
	}

	messageType := input.Type
	if messageType == "" {
		messageType = model.MessageText
	}

	message := &model.Message{
		ChatID:   input.ChatID,
		SenderID: id,
		Type:     messageType,
		Body:     input.Body,
		MediaURL: input.MediaURL,
		ParentID: input.ParentID,
	}

	if err := ctl.deliver(c.Context(), message); err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return okResp(c, message)
}

func (ctl *Controller) MessageForward(c *fiber.Ctx) error {
	input := new(MessageForwardInput)
	if err := c.BodyParser(input); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if !ctl.isParticipant(c.Context(), input.ChatID, id) {
		return errResp(c, fiber.StatusForbidden, "Not a chat participant")
	}

	origin := model.Message{}
	if err := ctl.DB.First(&origin, input.MessageID).Error; err != nil {
		return errResp(c, fiber.StatusNotFound, "Message not found")
	}
	if !ctl.isParticipant(c.Context(), origin.ChatID, id) {
		return errResp(c, fiber.StatusForbidden, "Not a chat participant")
	}

	// The forward is a fresh copy; only the origin reference links back.
	originID := origin.ID
	message := &model.Message{
		ChatID:          input.ChatID,
		SenderID:        id,
		Type:            origin.Type,
		Body:            origin.Body,
		MediaURL:        origin.MediaURL,
		ForwardedFromID: &originID,
	}

	if err := ctl.deliver(c.Context(), message); err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return okResp(c, message)
}

// deliver persists the message, creates one status row per recipient (SENT,
// or DELIVERED immediately when the recipient already holds a live session),
// bumps unread counters, and fans out NEW_MESSAGE once everything committed.
func (ctl *Controller) deliver(ctx context.Context, message *model.Message) error {
	participants := []model.ChatUser{}
	if err := ctl.DB.WithContext(ctx).
		Where(&model.ChatUser{ChatID: message.ChatID}).
		Find(&participants).Error; err != nil {
		return err
	}

	recipients := []event.Recipient{}
	now := time.Now()

	err := ctl.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		for _, participant := range participants {
			if participant.UserID == message.SenderID {
				continue
			}

			recipient := ctl.recipient(ctx, participant.UserID)
			recipients = append(recipients, recipient)

			row := model.MessageStatus{
				MessageID: message.ID,
				UserID:    participant.UserID,
				ChatID:    message.ChatID,
				Status:    model.StatusSent,
			}
			if recipient.SocketID != "" {
				row.Status = model.StatusDelivered
				row.DeliveredAt = &now
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "chat_id"}},
				DoUpdates: clause.Assignments(map[string]any{"unread_count": gorm.Expr("chat_notifications.unread_count + 1")}),
			}).Create(&model.ChatNotification{
				UserID:      participant.UserID,
				ChatID:      message.ChatID,
				UnreadCount: 1,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ctl.DB.WithContext(ctx).Preload("Sender").Preload("Statuses").First(message, message.ID)

	userIDs := make([]uint, 0, len(participants))
	for _, participant := range participants {
		userIDs = append(userIDs, participant.UserID)
	}
	ctl.Cache.Invalidate(ctx, event.NewMessage, cache.Scope{UserIDs: userIDs})

	raw, _ := json.Marshal(message)
	ctl.publish(ctx, event.NewMessage, event.NewMessagePayload{
		ChatID:     message.ChatID,
		Message:    raw,
		SenderID:   message.SenderID,
		Recipients: recipients,
	})

	return nil
}

// MessageDelete marks a message deleted for the caller, or for everyone when
// the caller is the sender and asks for it. Content is never removed while
// any viewer still sees the message.
func (ctl *Controller) MessageDelete(c *fiber.Ctx) error {
	messageID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	message := model.Message{}
	if err := ctl.DB.First(&message, messageID).Error; err != nil {
		return errResp(c, fiber.StatusNotFound, "Message not found")
	}
	if !ctl.isParticipant(c.Context(), message.ChatID, id) {
		return errResp(c, fiber.StatusForbidden, "Not a chat participant")
	}

	scope := model.DeleteForMe
	if c.Query("scope") == "everyone" {
		if message.SenderID != id {
			return errResp(c, fiber.StatusForbidden, "Only the sender can delete for everyone")
		}
		scope = model.DeleteForEveryone
	}

	// One marker per (message, user). FOR_ME upgrades to FOR_EVERYONE, never
	// the other way, and repeats are no-ops.
	becameForEveryone := false
	marker := model.MessageDelete{}
	err = ctl.DB.Where(&model.MessageDelete{MessageID: message.ID, UserID: id}).First(&marker).Error
	switch {
	case err == nil:
		if marker.Scope == model.DeleteForMe && scope == model.DeleteForEveryone {
			if err := ctl.DB.Model(&marker).Update("scope", model.DeleteForEveryone).Error; err != nil {
				return errResp(c, fiber.StatusInternalServerError, "Internal server error")
			}
			marker.Scope = model.DeleteForEveryone
			becameForEveryone = true
		}
	default:
		marker = model.MessageDelete{MessageID: message.ID, UserID: id, Scope: scope}
		if err := ctl.DB.Create(&marker).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
		becameForEveryone = scope == model.DeleteForEveryone
	}

	ctl.Cache.Invalidate(c.Context(), event.MessageDeleted, cache.Scope{UserIDs: []uint{id}})

	// Delete-for-me is local; the room hears about it only when the durable
	// scope just became for-everyone.
	if becameForEveryone {
		ctl.publish(c.Context(), event.MessageDeleted, event.MessageDeletedPayload{
			ChatID:          message.ChatID,
			MessageID:       message.ID,
			DeletedByUserID: id,
			Scope:           scope,
		})
	}

	return okResp(c, nil)
}

// MessageReact toggles the caller's reaction: same emoji removes it, a
// different one replaces it.
func (ctl *Controller) MessageReact(c *fiber.Ctx) error {
	messageID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	input := new(MessageReactInput)
	if err := c.BodyParser(input); err != nil || input.Emoji == "" {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	message := model.Message{}
	if err := ctl.DB.First(&message, messageID).Error; err != nil {
		return errResp(c, fiber.StatusNotFound, "Message not found")
	}
	if !ctl.isParticipant(c.Context(), message.ChatID, id) {
		return errResp(c, fiber.StatusForbidden, "Not a chat participant")
	}

	action := "added"
	reaction := model.Reaction{}
	err = ctl.DB.Where(&model.Reaction{MessageID: message.ID, UserID: id}).First(&reaction).Error
	switch {
	case err == nil && reaction.Emoji == input.Emoji:
		if err := ctl.DB.Unscoped().Delete(&reaction).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
		action = "removed"
	case err == nil:
		reaction.Emoji = input.Emoji
		if err := ctl.DB.Save(&reaction).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
	default:
		reaction = model.Reaction{MessageID: message.ID, UserID: id, Emoji: input.Emoji}
		if err := ctl.DB.Create(&reaction).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
	}

	ctl.Cache.Invalidate(c.Context(), event.MessageReaction, cache.Scope{UserIDs: []uint{id}})

	raw, _ := json.Marshal(reaction)
	ctl.publish(c.Context(), event.MessageReaction, event.MessageReactionPayload{
		ChatID:    message.ChatID,
		MessageID: message.ID,
		UserID:    id,
		Action:    action,
		Reaction:  raw,
	})

	return okResp(c, fiber.Map{"action": action, "reaction": reaction})
}

func (ctl *Controller) MessageStar(c *fiber.Ctx) error {
	messageID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	star := model.StarredMessage{MessageID: uint(messageID), UserID: id}
	if err := ctl.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&star).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return okResp(c, nil)
}

func (ctl *Controller) MessageUnstar(c *fiber.Ctx) error {
	messageID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if err := ctl.DB.Unscoped().
		Where(&model.StarredMessage{MessageID: uint(messageID), UserID: id}).
		Delete(&model.StarredMessage{}).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return okResp(c, nil)
}

func (ctl *Controller) StarredList(c *fiber.Ctx) error {
	id := ctl.userID(c)

	stars := []model.StarredMessage{}
	if err := ctl.DB.Where(&model.StarredMessage{UserID: id}).Find(&stars).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	messageIDs := make([]uint, 0, len(stars))
	for _, star := range stars {
		messageIDs = append(messageIDs, star.MessageID)
	}

	messages := []model.Message{}
	if len(messageIDs) > 0 {
		if err := ctl.DB.Where("id IN ?", messageIDs).Preload("Sender").Find(&messages).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
	}

	return okResp(c, messages)
}

// NotificationsClear zeroes the unread counter for one chat without marking
// messages read (mute-style dismissal).
func (ctl *Controller) NotificationsClear(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if err := ctl.DB.Model(&model.ChatNotification{}).
		Where(&model.ChatNotification{ChatID: uint(chatID), UserID: id}).
		Update("unread_count", 0).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	ctl.Cache.Invalidate(c.Context(), event.NotificationsCleared, cache.Scope{UserIDs: []uint{id}})
	ctl.publish(c.Context(), event.NotificationsCleared, event.NotificationsClearedPayload{
		ChatID:    uint(chatID),
		Recipient: ctl.recipient(c.Context(), id),
	})

	return okResp(c, nil)
}

// NotificationsList serves the per-chat unread counters, cache-aside.
func (ctl *Controller) NotificationsList(c *fiber.Ctx) error {
	id := ctl.userID(c)
	key := cache.NotificationsKey(id)

	notifications := []model.ChatNotification{}
	if err := ctl.Cache.GetJSON(c.Context(), key, &notifications); err != nil {
		if err := ctl.DB.Where(&model.ChatNotification{UserID: id}).Find(&notifications).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
		if err := ctl.Cache.SetJSON(c.Context(), key, notifications, cache.DefaultTTL); err != nil {
			ctl.Log.Warn("messenger: cache set failed")
		}
	}

	return okResp(c, notifications)
}
