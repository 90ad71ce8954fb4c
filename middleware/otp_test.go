package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func otpApp(pending bool) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"id": "1", "otp": pending})
		c.Locals("user", token)
		return c.Next()
	})
	app.Get("/guarded", OTP(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestOTPBlocksPendingSecondFactor(t *testing.T) {
	resp, err := otpApp(true).Test(httptest.NewRequest("GET", "/guarded", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOTPPassesValidatedToken(t *testing.T) {
	resp, err := otpApp(false).Test(httptest.NewRequest("GET", "/guarded", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
