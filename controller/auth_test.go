package controller

import (
	"net/http"
	"testing"

	"chat-service/model"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSignupStoresSubmittedPassword(t *testing.T) {
	t.Setenv("OTP_ISSUER", "chat-service")
	f := newFixture(t)

	resp := f.request(t, "POST", "/auth/signup", "", fiber.Map{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	user := model.User{}
	require.NoError(t, f.db.Where("username = ?", "alice").First(&user).Error)

	// The stored hash must match the submitted password and nothing else.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("s3cret")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("")))

	assert.Equal(t, "user", user.Role)
	assert.NotEmpty(t, user.Otp_secret)
}

func TestSignupRejectsEmptyPassword(t *testing.T) {
	t.Setenv("OTP_ISSUER", "chat-service")
	f := newFixture(t)

	resp := f.request(t, "POST", "/auth/signup", "", fiber.Map{
		"username": "bob",
		"email":    "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var count int64
	f.db.Model(&model.User{}).Count(&count)
	assert.Zero(t, count)
}
