package controller

import (
	"chat-service/cache"
	"chat-service/model"

	"github.com/gofiber/fiber/v2"
)

type UserUpdateInput struct {
	About  string `json:"about"`
	Avatar string `json:"avatar"`
}

// UserProfile serves the authenticated user's profile, cache-aside.
func (ctl *Controller) UserProfile(c *fiber.Ctx) error {
	id := ctl.userID(c)
	key := cache.UserKey(id)

	userModel := new(model.User)
	if err := ctl.Cache.GetJSON(c.Context(), key, userModel); err != nil {
		if err := ctl.DB.First(&userModel, id).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
		if err := ctl.Cache.SetJSON(c.Context(), key, userModel, cache.DefaultTTL); err != nil {
			ctl.Log.Warn("user: cache set failed")
		}
	}

	// The presence store is authoritative while sessions are live; the
	// durable mirror lags behind the grace window.
	if online, err := ctl.Presence.IsOnline(c.Context(), id); err == nil {
		userModel.Online = online
	}
	if last, err := ctl.Presence.LastSeen(c.Context(), id); err == nil && !last.IsZero() {
		userModel.LastSeen = &last
	}

	return okResp(c, fiber.Map{
		"id":        userModel.ID,
		"created":   userModel.CreatedAt.Unix(),
		"username":  userModel.Username,
		"email":     userModel.Email,
		"role":      userModel.Role,
		"about":     userModel.About,
		"avatar":    userModel.Avatar,
		"online":    userModel.Online,
		"last_seen": userModel.LastSeen,
		"otp":       userModel.Otp_enabled,
	})
}

func (ctl *Controller) UserUpdate(c *fiber.Ctx) error {
	input := new(UserUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if err := ctl.DB.Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"about": input.About, "avatar": input.Avatar}).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	ctl.Cache.Del(c.Context(), cache.UserKey(id))

	return okResp(c, nil)
}

// UserSearch finds users by username prefix for the new-contact flow.
func (ctl *Controller) UserSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	users := []model.User{}
	if err := ctl.DB.
		Where("username LIKE ?", query+"%").
		Limit(20).
		Find(&users).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	results := make([]fiber.Map, 0, len(users))
	for _, user := range users {
		results = append(results, fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"avatar":   user.Avatar,
		})
	}

	return okResp(c, results)
}

func (ctl *Controller) UserDevices(c *fiber.Ctx) error {
	id := ctl.userID(c)
	key := cache.DevicesKey(id)

	devices := []model.Device{}
	if err := ctl.Cache.GetJSON(c.Context(), key, &devices); err != nil {
		if err := ctl.DB.Where(&model.Device{UserID: id}).Find(&devices).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
		if err := ctl.Cache.SetJSON(c.Context(), key, devices, cache.DefaultTTL); err != nil {
			ctl.Log.Warn("user: cache set failed")
		}
	}

	return okResp(c, devices)
}
