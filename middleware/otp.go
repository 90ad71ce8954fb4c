package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OTP blocks requests whose token still awaits the second factor. Tokens
// issued before 2FA validation carry otp=true and may only reach the
// validate endpoint.
func OTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Token).Claims.(jwt.MapClaims)

		if pending, _ := claims["otp"].(bool); pending {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status":  "error",
				"message": "2FA required",
				"data":    nil,
			})
		}

		return c.Next()
	}
}
