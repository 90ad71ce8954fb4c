package controller

import (
	"context"
	"strconv"

	"chat-service/cache"
	"chat-service/event"
	"chat-service/model"
	"chat-service/presence"
	"chat-service/status"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Controller carries every collaborator the REST handlers need. All
// dependencies are injected at startup, nothing is reached through
// package-level state.
type Controller struct {
	DB       *gorm.DB
	Tokens   *redis.Client
	Cache    *cache.Cache
	Presence presence.Store
	Relay    event.Relay
	Status   *status.Service
	Journal  *event.Journal
	Log      *zap.Logger
}

func New(db *gorm.DB, tokens *redis.Client, c *cache.Cache, p presence.Store,
	relay event.Relay, st *status.Service, journal *event.Journal, log *zap.Logger) *Controller {
	return &Controller{
		DB:       db,
		Tokens:   tokens,
		Cache:    c,
		Presence: p,
		Relay:    relay,
		Status:   st,
		Journal:  journal,
		Log:      log,
	}
}

// userID extracts the authenticated user's id from the JWT middleware.
func (ctl *Controller) userID(c *fiber.Ctx) uint {
	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)
	switch v := claims["id"].(type) {
	case string:
		id, _ := strconv.ParseUint(v, 10, 64)
		return uint(id)
	case float64:
		return uint(v)
	}
	return 0
}

// isParticipant checks chat membership; actions from non-participants are
// rejected before anything is written or published.
func (ctl *Controller) isParticipant(ctx context.Context, chatID, userID uint) bool {
	var count int64
	ctl.DB.WithContext(ctx).
		Model(&model.ChatUser{}).
		Where(&model.ChatUser{ChatID: chatID, UserID: userID}).
		Count(&count)
	return count > 0
}

// publish sends a fan-out event after the durable write committed. Failures
// never reach the HTTP caller, the primary action already succeeded.
func (ctl *Controller) publish(ctx context.Context, t event.Type, payload any) {
	e, err := event.New(t, payload)
	if err != nil {
		ctl.Log.Warn("controller: event marshal failed", zap.String("type", string(t)), zap.Error(err))
		return
	}
	if err := ctl.Relay.Publish(ctx, e); err != nil {
		ctl.Log.Warn("controller: fan-out publish failed", zap.String("type", string(t)), zap.Error(err))
	}
}

// recipient resolves a best-effort routing target: the user's first live
// socket id, or empty when offline.
func (ctl *Controller) recipient(ctx context.Context, userID uint) event.Recipient {
	r := event.Recipient{UserID: userID}
	sockets, err := ctl.Presence.Sockets(ctx, userID)
	if err == nil && len(sockets) > 0 {
		r.SocketID = sockets[0]
	}
	return r
}

func errResp(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}

func okResp(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    data,
	})
}
