package controller

import (
	"chat-service/model"

	"github.com/gofiber/fiber/v2"
)

func (ctl *Controller) AdminUsers(c *fiber.Ctx) error {
	users := []model.User{}
	if err := ctl.DB.Order("id ASC").Find(&users).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	results := make([]fiber.Map, 0, len(users))
	for _, user := range users {
		results = append(results, fiber.Map{
			"id":        user.ID,
			"created":   user.CreatedAt.Unix(),
			"username":  user.Username,
			"email":     user.Email,
			"role":      user.Role,
			"online":    user.Online,
			"last_seen": user.LastSeen,
		})
	}

	return okResp(c, results)
}
