package router

import (
	"context"
	"strconv"
	"time"

	"chat-service/cache"
	"chat-service/model"
	"chat-service/presence"
	"chat-service/socketio"
	"chat-service/status"
	"chat-service/utils"

	"github.com/google/uuid"
	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocketDeps carries the session manager's collaborators.
type SocketDeps struct {
	Gateway  *socketio.Gateway
	DB       *gorm.DB
	Presence presence.Store
	Status   *status.Service
	Cache    *cache.Cache
	Log      *zap.Logger

	// GraceWindow is how long a user may hold zero sessions before the
	// durable online flag flips, tolerating multi-device reconnect races.
	GraceWindow time.Duration
}

// session is one live authenticated connection.
type session struct {
	deps   *SocketDeps
	client *socket.Socket
	userID uint
}

// inboundHandler consumes one client event. All inbound dispatch goes
// through the handlers table below rather than ad-hoc callbacks.
type inboundHandler func(s *session, args []any)

var inboundHandlers = map[string]inboundHandler{
	"join-chat":       (*session).joinChat,
	"leave-chat":      (*session).leaveChat,
	"typing":          (*session).typing,
	"register-device": (*session).registerDevice,
	"remove-device":   (*session).removeDevice,
	"app-opened":      (*session).appOpened,
}

// Socket wires the connection lifecycle: presence registration on connect,
// the inbound handler table while active, and the grace-window offline flip
// on disconnect.
func Socket(deps *SocketDeps) {
	deps.Gateway.Server().On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)

		claims, ok := client.Data().(*utils.TokenMetadata)
		if !ok || claims == nil {
			client.Disconnect(true)
			return
		}

		s := &session{deps: deps, client: client, userID: claims.UserID()}
		s.connected()

		for name, handler := range inboundHandlers {
			name, handler := name, handler
			client.On(name, func(args ...any) {
				handler(s, args)
			})
		}

		client.On("disconnect", func(...any) {
			s.disconnected()
		})
	})
}

func (s *session) connected() {
	ctx := context.Background()

	if err := s.deps.Presence.Connect(ctx, s.userID, string(s.client.Id())); err != nil {
		s.deps.Log.Warn("session: presence register failed", zap.Uint("user", s.userID), zap.Error(err))
	}

	s.deps.DB.Model(&model.User{}).
		Where("id = ?", s.userID).
		Update("online", true)
	s.deps.Cache.Del(ctx, cache.UserKey(s.userID))
}

// disconnected deregisters presence and records last-seen immediately. The
// durable online flag flips only if, once the grace window elapses, the
// session set is still empty; a quick reconnect on another socket keeps the
// user online throughout.
func (s *session) disconnected() {
	ctx := context.Background()
	now := time.Now()

	remaining, err := s.deps.Presence.Disconnect(ctx, s.userID, string(s.client.Id()))
	if err != nil {
		s.deps.Log.Warn("session: presence deregister failed", zap.Uint("user", s.userID), zap.Error(err))
	}
	if err := s.deps.Presence.SetLastSeen(ctx, s.userID, now); err != nil {
		s.deps.Log.Warn("session: last-seen store failed", zap.Uint("user", s.userID), zap.Error(err))
	}

	if remaining > 0 {
		return
	}

	userID := s.userID
	deps := s.deps
	time.AfterFunc(deps.GraceWindow, func() {
		deps.offlineFlip(context.Background(), userID, now)
	})
}

// offlineFlip re-checks the session set once the grace window has elapsed. A
// reconnect during the window leaves the durable flags untouched.
func (deps *SocketDeps) offlineFlip(ctx context.Context, userID uint, lastSeen time.Time) {
	count, err := deps.Presence.SessionCount(ctx, userID)
	if err != nil || count > 0 {
		return
	}
	deps.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"online": false, "last_seen": &lastSeen})
	deps.Cache.Del(ctx, cache.UserKey(userID))
}

func (s *session) joinChat(args []any) {
	chatID, ok := argUint(args, 0)
	if !ok {
		return
	}

	// Membership gate: non-participants cannot subscribe to the room.
	var count int64
	s.deps.DB.Model(&model.ChatUser{}).
		Where(&model.ChatUser{ChatID: chatID, UserID: s.userID}).
		Count(&count)
	if count == 0 {
		return
	}

	s.client.Join(socketio.ChatRoom(chatID))
}

func (s *session) leaveChat(args []any) {
	chatID, ok := argUint(args, 0)
	if !ok {
		return
	}
	s.client.Leave(socketio.ChatRoom(chatID))
}

// typing is fire-and-forget: broadcast to the chat room, excluding every
// session of the sender (not just this socket), never persisted.
func (s *session) typing(args []any) {
	payload, ok := argMap(args, 0)
	if !ok {
		return
	}
	chatID, ok := toUint(payload["chatId"])
	if !ok {
		return
	}
	isTyping, _ := payload["isTyping"].(bool)

	s.deps.Gateway.Server().
		To(socketio.ChatRoom(chatID)).
		Except(socketio.UserRoom(s.userID)).
		Emit("user-typing", map[string]any{
			"userId":   s.userID,
			"chatId":   chatID,
			"isTyping": isTyping,
		})
}

func (s *session) registerDevice(args []any) {
	payload, ok := argMap(args, 0)
	if !ok {
		return
	}
	deviceID, _ := payload["deviceId"].(string)
	if deviceID == "" {
		// Fresh install without an id yet: mint one server-side, the client
		// picks it up from the devices-updated echo.
		deviceID = uuid.NewString()
	}
	deviceName, _ := payload["deviceName"].(string)

	device := model.Device{
		UserID:     s.userID,
		DeviceID:   deviceID,
		Name:       deviceName,
		LastActive: time.Now(),
	}
	if err := s.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "last_active"}),
	}).Create(&device).Error; err != nil {
		s.deps.Log.Warn("session: device register failed", zap.Uint("user", s.userID), zap.Error(err))
		return
	}

	s.devicesUpdated()
}

func (s *session) removeDevice(args []any) {
	payload, ok := argMap(args, 0)
	if !ok {
		return
	}
	deviceID, _ := payload["deviceId"].(string)
	if deviceID == "" {
		return
	}

	if err := s.deps.DB.Unscoped().
		Where(&model.Device{UserID: s.userID, DeviceID: deviceID}).
		Delete(&model.Device{}).Error; err != nil {
		s.deps.Log.Warn("session: device remove failed", zap.Uint("user", s.userID), zap.Error(err))
		return
	}

	s.devicesUpdated()
}

func (s *session) devicesUpdated() {
	ctx := context.Background()
	s.deps.Cache.Del(ctx, cache.DevicesKey(s.userID))

	devices := []model.Device{}
	s.deps.DB.Where(&model.Device{UserID: s.userID}).Find(&devices)
	s.deps.Gateway.EmitToUser(s.userID, "devices-updated", map[string]any{"devices": devices})
}

// appOpened is the offline catch-up sweep: every pending SENT row becomes
// DELIVERED, one fan-out event per affected chat.
func (s *session) appOpened(_ []any) {
	ctx := context.Background()
	if _, err := s.deps.Status.DeliverPending(ctx, s.userID); err != nil {
		s.deps.Log.Warn("session: delivery sweep failed", zap.Uint("user", s.userID), zap.Error(err))
	}
}

// Inbound payload coercion. socket.io hands decoded JSON over as []any with
// float64 numbers and map[string]any objects.

func argMap(args []any, i int) (map[string]any, bool) {
	if len(args) <= i {
		return nil, false
	}
	m, ok := args[i].(map[string]any)
	return m, ok
}

func argUint(args []any, i int) (uint, bool) {
	if len(args) <= i {
		return 0, false
	}
	return toUint(args[i])
}

func toUint(v any) (uint, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint(n), true
	case string:
		parsed, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(parsed), true
	}
	return 0, false
}
