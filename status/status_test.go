package status

import (
	"context"
	"testing"
	"time"

	"chat-service/cache"
	"chat-service/event"
	"chat-service/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Message{},
		&model.MessageStatus{},
		&model.ChatNotification{},
	))
	return db
}

type fakeRelay struct {
	published []event.Event
}

func (f *fakeRelay) Publish(_ context.Context, e event.Event) error {
	f.published = append(f.published, e)
	return nil
}

func (f *fakeRelay) Subscribe(context.Context, event.HandlerTable) {}
func (f *fakeRelay) Close() error                                  { return nil }

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, event.Type, cache.Scope) {}

func testService(t *testing.T) (*Service, *gorm.DB, *fakeRelay) {
	t.Helper()
	db := testDB(t)
	relay := &fakeRelay{}
	return NewService(db, noopInvalidator{}, relay, zap.NewNop()), db, relay
}

func seedStatus(t *testing.T, db *gorm.DB, messageID, userID, chatID uint, state string) {
	t.Helper()
	require.NoError(t, db.Create(&model.MessageStatus{
		MessageID: messageID,
		UserID:    userID,
		ChatID:    chatID,
		Status:    state,
	}).Error)
}

func TestAdvanceForward(t *testing.T) {
	svc, db, relay := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusSent)

	got, err := svc.Advance(ctx, 1, 2, model.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, got)

	row := model.MessageStatus{}
	require.NoError(t, db.Where("message_id = ? AND user_id = ?", 1, 2).First(&row).Error)
	assert.Equal(t, model.StatusDelivered, row.Status)
	assert.NotNil(t, row.DeliveredAt)
	assert.Len(t, relay.published, 1)
	assert.Equal(t, event.MessageStatusUpdate, relay.published[0].Type)
}

func TestAdvanceBackwardIsNoOp(t *testing.T) {
	svc, db, relay := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusRead)

	got, err := svc.Advance(ctx, 1, 2, model.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got)

	got, err = svc.Advance(ctx, 1, 2, model.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got)

	row := model.MessageStatus{}
	require.NoError(t, db.Where("message_id = ? AND user_id = ?", 1, 2).First(&row).Error)
	assert.Equal(t, model.StatusRead, row.Status)
	assert.Empty(t, relay.published, "a rejected transition must not fan out")
}

func TestAdvanceDirectJumpToRead(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusSent)

	got, err := svc.Advance(ctx, 1, 2, model.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got)

	row := model.MessageStatus{}
	require.NoError(t, db.Where("message_id = ? AND user_id = ?", 1, 2).First(&row).Error)
	assert.NotNil(t, row.DeliveredAt, "direct SENT to READ still records delivery")
	assert.NotNil(t, row.ReadAt)
}

func TestAdvanceUnknownStatus(t *testing.T) {
	svc, db, _ := testService(t)
	seedStatus(t, db, 1, 2, 10, model.StatusSent)

	_, err := svc.Advance(context.Background(), 1, 2, "SKIMMED")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestAdvanceDuplicateDelivery(t *testing.T) {
	svc, db, relay := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusSent)

	// The relay promises at-least-once, so the same transition may arrive
	// twice; only the first one moves the row and fans out.
	_, err := svc.Advance(ctx, 1, 2, model.StatusDelivered)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, 1, 2, model.StatusDelivered)
	require.NoError(t, err)

	assert.Len(t, relay.published, 1)
}

func TestTransitionGuardedAgainstConcurrentWriter(t *testing.T) {
	svc, db, relay := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusSent)

	row := model.MessageStatus{}
	require.NoError(t, db.Where("message_id = ? AND user_id = ?", 1, 2).First(&row).Error)

	// Another producer commits READ after our read but before our write.
	now := time.Now()
	require.NoError(t, db.Model(&model.MessageStatus{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":       model.StatusRead,
			"delivered_at": &now,
			"read_at":      &now,
		}).Error)

	// The stale write must hit zero rows; READ stays committed.
	moved, err := svc.transition(ctx, row, model.StatusDelivered)
	require.NoError(t, err)
	assert.False(t, moved)

	require.NoError(t, db.First(&row, row.ID).Error)
	assert.Equal(t, model.StatusRead, row.Status)

	// Advance over the same stale window reports the stored value and
	// publishes nothing.
	got, err := svc.Advance(ctx, 1, 2, model.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got)
	assert.Empty(t, relay.published)
}

func TestMarkAllDelivered(t *testing.T) {
	svc, db, relay := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusSent)
	seedStatus(t, db, 2, 2, 10, model.StatusSent)
	seedStatus(t, db, 3, 2, 10, model.StatusRead)
	seedStatus(t, db, 4, 9, 10, model.StatusSent) // other user, untouched

	ids, err := svc.MarkAllDelivered(ctx, 10, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, ids)

	var count int64
	db.Model(&model.MessageStatus{}).
		Where("user_id = ? AND status = ?", 2, model.StatusDelivered).
		Count(&count)
	assert.EqualValues(t, 2, count)

	row := model.MessageStatus{}
	require.NoError(t, db.Where("message_id = ? AND user_id = ?", 4, 9).First(&row).Error)
	assert.Equal(t, model.StatusSent, row.Status)

	require.Len(t, relay.published, 1)
	assert.Equal(t, event.MessagesDelivered, relay.published[0].Type)
}

func TestMarkAllReadIdempotent(t *testing.T) {
	svc, db, relay := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusSent)
	seedStatus(t, db, 2, 2, 10, model.StatusDelivered)
	require.NoError(t, db.Create(&model.ChatNotification{
		UserID: 2, ChatID: 10, UnreadCount: 2,
	}).Error)

	ids, err := svc.MarkAllRead(ctx, 10, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, ids)
	require.Len(t, relay.published, 1)
	assert.Equal(t, event.MessagesRead, relay.published[0].Type)

	notification := model.ChatNotification{}
	require.NoError(t, db.Where("user_id = ? AND chat_id = ?", 2, 10).First(&notification).Error)
	assert.Zero(t, notification.UnreadCount)
	assert.NotNil(t, notification.LastReadAt)

	// Second call finds nothing eligible and emits nothing.
	ids, err = svc.MarkAllRead(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, relay.published, 1)
}

func TestDeliverPendingGroupsPerChat(t *testing.T) {
	svc, db, relay := testService(t)
	ctx := context.Background()
	seedStatus(t, db, 1, 2, 10, model.StatusSent)
	seedStatus(t, db, 2, 2, 10, model.StatusSent)
	seedStatus(t, db, 3, 2, 20, model.StatusSent)
	seedStatus(t, db, 4, 2, 30, model.StatusRead)

	deliveries, err := svc.DeliverPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)

	var remaining int64
	db.Model(&model.MessageStatus{}).
		Where("user_id = ? AND status = ?", 2, model.StatusSent).
		Count(&remaining)
	assert.Zero(t, remaining)

	// Exactly one event per affected chat, not one per message.
	assert.Len(t, relay.published, 2)
	for _, e := range relay.published {
		assert.Equal(t, event.MessagesDelivered, e.Type)
	}
}

func TestDeliverPendingNothingToDo(t *testing.T) {
	svc, _, relay := testService(t)

	deliveries, err := svc.DeliverPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
	assert.Empty(t, relay.published)
}
