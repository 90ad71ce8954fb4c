package controller

import (
	"fmt"
	"net/mail"
	"strconv"

	"chat-service/config"
	"chat-service/model"
	"chat-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// AuthSignupInput exists because the User model hides Password from JSON;
// decoding a signup body straight into the model would drop the password.
type AuthSignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type AuthRenewTokenInput struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthOtpSecretInput struct {
	Password string `json:"password"`
}

type AuthOtpTokenInput struct {
	Token string `json:"token"`
}

type AuthOtpDisableInput struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (ctl *Controller) AuthSignup(c *fiber.Ctx) error {
	input := new(AuthSignupInput)
	if err := c.BodyParser(input); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	// If existed email is found, return error
	if count := ctl.DB.
		Where(&model.User{Email: input.Email}).
		First(new(model.User)).
		RowsAffected; count > 0 {
		return errResp(c, fiber.StatusBadRequest, "Email is already registered")
	}

	// If existed username is found, return error
	if count := ctl.DB.
		Where(&model.User{Username: input.Username}).
		First(new(model.User)).
		RowsAffected; count > 0 {
		return errResp(c, fiber.StatusBadRequest, "Username is already registered")
	}

	// Generate hash from password.
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), 14)
	if err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	user := &model.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hash),
	}

	// Generate OTP secret
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      config.Config("OTP_ISSUER"),
		AccountName: user.Email,
		SecretSize:  15,
	})
	if err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}
	user.Otp_secret = key.Secret()
	user.Role = "user"

	if err := ctl.DB.Create(&user).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	ctl.Journal.Record("backoffice", "user_signup", fiber.Map{"id": user.ID, "username": user.Username})

	return okResp(c, fiber.Map{"id": user.ID})
}

func (ctl *Controller) AuthSignin(c *fiber.Ctx) error {
	input := new(AuthLoginInput)
	if err := c.BodyParser(&input); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel, err := new(model.User), *new(error)

	_, errParse := mail.ParseAddress(input.Login)
	if errParse == nil {
		err = ctl.DB.Where(&model.User{Email: input.Login}).First(&userModel).Error
	} else {
		err = ctl.DB.Where(&model.User{Username: input.Login}).First(&userModel).Error
	}

	if err != nil {
		return errResp(c, fiber.StatusUnauthorized, "Invalid login or password")
	}

	idStr := strconv.FormatUint(uint64(userModel.ID), 10)

	if err := bcrypt.CompareHashAndPassword([]byte(userModel.Password), []byte(input.Password)); err != nil {
		return errResp(c, fiber.StatusUnauthorized, "Invalid login or password")
	}

	// Generate JWT Access & Refresh tokens
	tokens, err := utils.GenerateTokens(idStr, userModel.Otp_enabled)
	if err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if err := ctl.Tokens.Set(c.Context(), idStr, tokens.Refresh, 0).Err(); err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	ctl.Journal.Record("backoffice", "user_signin", fiber.Map{"id": userModel.ID})

	return okResp(c, fiber.Map{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"2fa":     userModel.Otp_enabled,
	})
}

func (ctl *Controller) AuthTokenRenew(c *fiber.Ctx) error {
	renew := &AuthRenewTokenInput{}
	if err := c.BodyParser(renew); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	claims, err := utils.CheckAndExtractTokenMetadata(renew.RefreshToken, "JWT_REFRESH_KEY")
	if err != nil {
		return errResp(c, fiber.StatusUnauthorized, "Invalid token")
	}

	userToken, err := ctl.Tokens.Get(c.Context(), claims.Id).Result()
	if err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if userToken != renew.RefreshToken {
		return errResp(c, fiber.StatusUnauthorized, "Unauthorized, your refresh token was already used")
	}

	tokens, err := utils.GenerateTokens(claims.Id, claims.Otp)
	if err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	// Save refresh token to Redis
	if err := ctl.Tokens.Set(c.Context(), claims.Id, tokens.Refresh, 0).Err(); err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return okResp(c, fiber.Map{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"2fa":     claims.Otp,
	})
}

func (ctl *Controller) AuthOtpSecret(c *fiber.Ctx) error {
	secret := &AuthOtpSecretInput{}
	if err := c.BodyParser(secret); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)

	userModel := new(model.User)
	if err := ctl.DB.First(&userModel, claims["id"]).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(userModel.Password), []byte(secret.Password)); err != nil {
		return errResp(c, fiber.StatusUnauthorized, "Invalid password")
	}

	return okResp(c, fiber.Map{
		"secret": userModel.Otp_secret,
		"url": fmt.Sprintf("otpauth://totp/%s:%s?algorithm=SHA1&digits=6&issuer=%s&period=30&secret=%s",
			config.Config("OTP_ISSUER"),
			userModel.Email,
			config.Config("OTP_ISSUER"),
			userModel.Otp_secret,
		),
	})
}

func (ctl *Controller) AuthOtpVerify(c *fiber.Ctx) error {
	verify := &AuthOtpTokenInput{}
	if err := c.BodyParser(verify); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel := new(model.User)
	if err := ctl.DB.First(&userModel, ctl.userID(c)).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if userModel.Otp_enabled {
		return errResp(c, fiber.StatusUnauthorized, "Verification has already been performed earlier")
	}

	if !totp.Validate(verify.Token, userModel.Otp_secret) {
		return errResp(c, fiber.StatusUnauthorized, "Invalid token")
	}

	userModel.Otp_enabled = true
	ctl.DB.Save(&userModel)

	return okResp(c, nil)
}

func (ctl *Controller) AuthOtpValidate(c *fiber.Ctx) error {
	validate := &AuthOtpTokenInput{}
	if err := c.BodyParser(validate); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel := new(model.User)
	if err := ctl.DB.First(&userModel, ctl.userID(c)).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if !userModel.Otp_enabled {
		return errResp(c, fiber.StatusBadRequest, "2FA has been disabled")
	}

	if !totp.Validate(validate.Token, userModel.Otp_secret) {
		return errResp(c, fiber.StatusUnauthorized, "Invalid token")
	}

	idStr := strconv.FormatUint(uint64(userModel.ID), 10)

	// Generate JWT Access & Refresh tokens
	tokens, err := utils.GenerateTokens(idStr, false)
	if err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if err := ctl.Tokens.Set(c.Context(), idStr, tokens.Refresh, 0).Err(); err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return okResp(c, fiber.Map{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

func (ctl *Controller) AuthOtpDisable(c *fiber.Ctx) error {
	disable := &AuthOtpDisableInput{}
	if err := c.BodyParser(disable); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	userModel := new(model.User)
	if err := ctl.DB.First(&userModel, ctl.userID(c)).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	if !userModel.Otp_enabled {
		return errResp(c, fiber.StatusBadRequest, "2FA not enabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(userModel.Password), []byte(disable.Password)); err != nil {
		return errResp(c, fiber.StatusUnauthorized, "Invalid password")
	}

	if !totp.Validate(disable.Token, userModel.Otp_secret) {
		return errResp(c, fiber.StatusUnauthorized, "Invalid token")
	}

	userModel.Otp_enabled = false
	ctl.DB.Save(&userModel)

	return okResp(c, nil)
}
