package router

import (
	"context"
	"testing"
	"time"

	"chat-service/cache"
	"chat-service/event"
	"chat-service/model"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubPresence struct {
	sessions map[uint]int64
	err      error
}

func (s *stubPresence) Connect(context.Context, uint, string) error { return s.err }
func (s *stubPresence) Disconnect(context.Context, uint, string) (int64, error) {
	return 0, s.err
}
func (s *stubPresence) Sockets(context.Context, uint) ([]string, error) { return nil, s.err }
func (s *stubPresence) IsOnline(_ context.Context, userID uint) (bool, error) {
	return s.sessions[userID] > 0, s.err
}
func (s *stubPresence) SessionCount(_ context.Context, userID uint) (int64, error) {
	return s.sessions[userID], s.err
}
func (s *stubPresence) SetLastSeen(context.Context, uint, time.Time) error { return s.err }
func (s *stubPresence) LastSeen(context.Context, uint) (time.Time, error) {
	return time.Time{}, s.err
}

func testDeps(t *testing.T, sessions *stubPresence) *SocketDeps {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}))

	log := zap.NewNop()
	dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})

	return &SocketDeps{
		DB:          db,
		Presence:    sessions,
		Cache:       cache.New(dead, log),
		Log:         log,
		GraceWindow: 10 * time.Second,
	}
}

func TestOfflineFlipWhenNoSessionsRemain(t *testing.T) {
	deps := testDeps(t, &stubPresence{sessions: map[uint]int64{}})
	require.NoError(t, deps.DB.Create(&model.User{
		Username: "alice", Email: "alice@example.com", Password: "x", Online: true,
	}).Error)

	lastSeen := time.Now().Add(-time.Minute)
	deps.offlineFlip(context.Background(), 1, lastSeen)

	user := model.User{}
	require.NoError(t, deps.DB.First(&user, 1).Error)
	assert.False(t, user.Online)
	require.NotNil(t, user.LastSeen)
	assert.WithinDuration(t, lastSeen, *user.LastSeen, time.Second)
}

func TestOfflineFlipSkippedAfterReconnect(t *testing.T) {
	deps := testDeps(t, &stubPresence{sessions: map[uint]int64{1: 1}})
	require.NoError(t, deps.DB.Create(&model.User{
		Username: "alice", Email: "alice@example.com", Password: "x", Online: true,
	}).Error)

	deps.offlineFlip(context.Background(), 1, time.Now())

	user := model.User{}
	require.NoError(t, deps.DB.First(&user, 1).Error)
	assert.True(t, user.Online, "a session opened during the grace window keeps the user online")
	assert.Nil(t, user.LastSeen)
}

func TestOfflineFlipSkippedOnLookupError(t *testing.T) {
	deps := testDeps(t, &stubPresence{sessions: map[uint]int64{}, err: context.DeadlineExceeded})
	require.NoError(t, deps.DB.Create(&model.User{
		Username: "alice", Email: "alice@example.com", Password: "x", Online: true,
	}).Error)

	deps.offlineFlip(context.Background(), 1, time.Now())

	user := model.User{}
	require.NoError(t, deps.DB.First(&user, 1).Error)
	assert.True(t, user.Online, "an unreadable session set never flips anyone offline")
}

func TestEventsTableCoversEveryVariant(t *testing.T) {
	deps := testDeps(t, &stubPresence{sessions: map[uint]int64{}})
	handlers := Events(deps)

	for _, variant := range []event.Type{
		event.NewMessage,
		event.NewChat,
		event.MessagesDelivered,
		event.MessagesRead,
		event.MessageStatusUpdate,
		event.MessageDeleted,
		event.MessageReaction,
		event.ContactRequest,
		event.ContactRequestAccepted,
		event.ContactRequestRejected,
		event.ContactBlocked,
		event.ContactUnblocked,
		event.NotificationsCleared,
		event.ContactRequestsViewed,
	} {
		assert.Contains(t, handlers, variant)
	}
	assert.Len(t, handlers, 14)
}

func TestEventsDropMalformedPayloads(t *testing.T) {
	deps := testDeps(t, &stubPresence{sessions: map[uint]int64{}})
	handlers := Events(deps)

	// No gateway is wired, so a handler that survives decoding would panic on
	// emit. Every variant must bail out first.
	for variant, handler := range handlers {
		assert.NotPanics(t, func() {
			handler(context.Background(), event.Event{Type: variant, Payload: []byte("{broken")})
		}, string(variant))
	}
}

func TestInboundHandlerTable(t *testing.T) {
	for _, name := range []string{
		"join-chat", "leave-chat", "typing",
		"register-device", "remove-device", "app-opened",
	} {
		assert.Contains(t, inboundHandlers, name)
	}
	assert.Len(t, inboundHandlers, 6)
}

func TestToUint(t *testing.T) {
	cases := []struct {
		in   any
		want uint
		ok   bool
	}{
		{float64(7), 7, true},
		{float64(-1), 0, false},
		{int(12), 12, true},
		{"42", 42, true},
		{"cat", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := toUint(tc.in)
		assert.Equal(t, tc.ok, ok)
		assert.Equal(t, tc.want, got)
	}
}

func TestArgHelpers(t *testing.T) {
	payload := map[string]any{"chatId": float64(3)}

	m, ok := argMap([]any{payload}, 0)
	require.True(t, ok)
	assert.Equal(t, payload, m)

	_, ok = argMap([]any{}, 0)
	assert.False(t, ok)

	_, ok = argMap([]any{"not a map"}, 0)
	assert.False(t, ok)

	n, ok := argUint([]any{float64(9)}, 0)
	require.True(t, ok)
	assert.EqualValues(t, 9, n)

	_, ok = argUint(nil, 0)
	assert.False(t, ok)
}
