package status

import (
	"context"
	"errors"
	"time"

	"chat-service/cache"
	"chat-service/event"
	"chat-service/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// statusRank orders the delivery states. A transition is legal only when it
// strictly increases the rank, which makes every transition idempotent
// under duplicate delivery.
var statusRank = map[string]int{
	model.StatusSent:      0,
	model.StatusDelivered: 1,
	model.StatusRead:      2,
}

// ErrUnknownStatus rejects values outside the SENT/DELIVERED/READ set.
var ErrUnknownStatus = errors.New("status: unknown delivery status")

// Invalidator drops the cached projections a status change made stale.
// Satisfied by *cache.Cache.
type Invalidator interface {
	Invalidate(ctx context.Context, t event.Type, scope cache.Scope)
}

// ChatDelivery groups the app-opened sweep result for one chat.
type ChatDelivery struct {
	ChatID     uint
	MessageIDs []uint
}

// Service owns every transition of MessageStatus rows. All methods persist
// first, then invalidate caches, then publish exactly one fan-out event for
// the rows that actually moved. Publish failures are logged only: the
// durable state is already committed and recipients recover by refetching.
type Service struct {
	db    *gorm.DB
	inval Invalidator
	relay event.Relay
	log   *zap.Logger
}

func NewService(db *gorm.DB, inval Invalidator, relay event.Relay, log *zap.Logger) *Service {
	return &Service{db: db, inval: inval, relay: relay, log: log}
}

// Advance moves one (message, recipient) row forward. Backward and repeated
// transitions are silent no-ops returning the stored value, so concurrent
// duplicate delivery converges on the same state.
func (s *Service) Advance(ctx context.Context, messageID, recipientID uint, next string) (string, error) {
	nextRank, ok := statusRank[next]
	if !ok {
		return "", ErrUnknownStatus
	}

	row := model.MessageStatus{}
	if err := s.db.WithContext(ctx).
		Where(&model.MessageStatus{MessageID: messageID, UserID: recipientID}).
		First(&row).Error; err != nil {
		return "", err
	}

	if statusRank[row.Status] >= nextRank {
		return row.Status, nil
	}

	moved, err := s.transition(ctx, row, next)
	if err != nil {
		return "", err
	}
	if !moved {
		// A concurrent producer moved the row between our read and write.
		// Monotonicity says the stored value wins; nothing to publish.
		if err := s.db.WithContext(ctx).First(&row, row.ID).Error; err != nil {
			return "", err
		}
		return row.Status, nil
	}

	s.inval.Invalidate(ctx, event.MessageStatusUpdate, cache.Scope{UserIDs: []uint{recipientID}})
	s.publish(ctx, event.MessageStatusUpdate, event.StatusChangePayload{
		ChatID:     row.ChatID,
		MessageIDs: []uint{messageID},
		Status:     next,
		UserID:     recipientID,
	})

	return next, nil
}

// MarkAllDelivered promotes every SENT row the user holds in the chat to
// DELIVERED. Zero eligible rows means zero events.
func (s *Service) MarkAllDelivered(ctx context.Context, chatID, userID uint) ([]uint, error) {
	ids, err := s.bulkTransition(ctx, chatID, userID,
		[]string{model.StatusSent}, model.StatusDelivered)
	if err != nil || len(ids) == 0 {
		return ids, err
	}

	s.inval.Invalidate(ctx, event.MessagesDelivered, cache.Scope{UserIDs: []uint{userID}})
	s.publish(ctx, event.MessagesDelivered, event.StatusChangePayload{
		ChatID:     chatID,
		MessageIDs: ids,
		Status:     model.StatusDelivered,
		UserID:     userID,
	})

	return ids, nil
}

// MarkAllRead promotes every SENT/DELIVERED row the user holds in the chat to
// READ and resets the unread counter. Calling it twice in a row is safe: the
// second call finds nothing eligible and publishes nothing.
func (s *Service) MarkAllRead(ctx context.Context, chatID, userID uint) ([]uint, error) {
	ids, err := s.bulkTransition(ctx, chatID, userID,
		[]string{model.StatusSent, model.StatusDelivered}, model.StatusRead)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).
		Model(&model.ChatNotification{}).
		Where(&model.ChatNotification{ChatID: chatID, UserID: userID}).
		Updates(map[string]any{"unread_count": 0, "last_read_at": &now}).Error; err != nil {
		return nil, err
	}

	s.inval.Invalidate(ctx, event.MessagesRead, cache.Scope{UserIDs: []uint{userID}})
	s.publish(ctx, event.MessagesRead, event.StatusChangePayload{
		ChatID:     chatID,
		MessageIDs: ids,
		Status:     model.StatusRead,
		UserID:     userID,
	})

	return ids, nil
}

// DeliverPending is the app-opened sweep: every SENT row the user holds,
// across all chats, becomes DELIVERED. Exactly one MESSAGES_DELIVERED event
// goes out per affected chat, not one per message.
func (s *Service) DeliverPending(ctx context.Context, userID uint) ([]ChatDelivery, error) {
	rows := []model.MessageStatus{}
	if err := s.db.WithContext(ctx).
		Where(&model.MessageStatus{UserID: userID, Status: model.StatusSent}).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	byChat := map[uint][]uint{}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		byChat[row.ChatID] = append(byChat[row.ChatID], row.MessageID)
		ids = append(ids, row.ID)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).
		Model(&model.MessageStatus{}).
		Where("id IN ? AND status = ?", ids, model.StatusSent).
		Updates(map[string]any{"status": model.StatusDelivered, "delivered_at": &now}).Error; err != nil {
		return nil, err
	}

	deliveries := make([]ChatDelivery, 0, len(byChat))
	for chatID, messageIDs := range byChat {
		deliveries = append(deliveries, ChatDelivery{ChatID: chatID, MessageIDs: messageIDs})

		s.inval.Invalidate(ctx, event.MessagesDelivered, cache.Scope{UserIDs: []uint{userID}})
		s.publish(ctx, event.MessagesDelivered, event.StatusChangePayload{
			ChatID:     chatID,
			MessageIDs: messageIDs,
			Status:     model.StatusDelivered,
			UserID:     userID,
		})
	}

	return deliveries, nil
}

// transition writes one row forward, guarded by the status it held when read.
// Zero rows affected means another producer got there first; callers treat
// that as a no-op so no backward overwrite can ever commit.
func (s *Service) transition(ctx context.Context, row model.MessageStatus, next string) (bool, error) {
	now := time.Now()
	updates := map[string]any{"status": next}
	switch next {
	case model.StatusDelivered:
		updates["delivered_at"] = &now
	case model.StatusRead:
		updates["read_at"] = &now
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", now)
	}

	res := s.db.WithContext(ctx).
		Model(&model.MessageStatus{}).
		Where("id = ? AND status = ?", row.ID, row.Status).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// bulkTransition collects the eligible rows, then moves them in one update
// guarded by the same eligibility predicate, so a concurrent transition on
// the same rows cannot regress anything.
func (s *Service) bulkTransition(ctx context.Context, chatID, userID uint, from []string, to string) ([]uint, error) {
	rows := []model.MessageStatus{}
	if err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ? AND status IN ?", chatID, userID, from).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(rows))
	messageIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		messageIDs = append(messageIDs, row.MessageID)
	}

	now := time.Now()
	updates := map[string]any{"status": to}
	switch to {
	case model.StatusDelivered:
		updates["delivered_at"] = &now
	case model.StatusRead:
		updates["read_at"] = &now
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", now)
	}

	if err := s.db.WithContext(ctx).
		Model(&model.MessageStatus{}).
		Where("id IN ? AND status IN ?", ids, from).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	return messageIDs, nil
}

func (s *Service) publish(ctx context.Context, t event.Type, payload any) {
	e, err := event.New(t, payload)
	if err != nil {
		s.log.Warn("status: event marshal failed", zap.String("type", string(t)), zap.Error(err))
		return
	}
	if err := s.relay.Publish(ctx, e); err != nil {
		s.log.Warn("status: fan-out publish failed", zap.String("type", string(t)), zap.Error(err))
	}
}
