package router

import (
	"chat-service/controller"
	"chat-service/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Rest(app *fiber.App, ctl *controller.Controller, enforcer *casbin.Enforcer) {
	api := app.Group("/v1", logger.New())

	// Auth
	auth := api.Group("/auth")
	auth.Post("/signup", ctl.AuthSignup)
	auth.Post("/signin", ctl.AuthSignin)
	auth.Post("/token/renew", ctl.AuthTokenRenew)
	auth.Post("/2fa/secret", middleware.JWT(), middleware.OTP(), ctl.AuthOtpSecret)
	auth.Post("/2fa/verify", middleware.JWT(), middleware.OTP(), ctl.AuthOtpVerify)
	auth.Post("/2fa/validate", middleware.JWT(), ctl.AuthOtpValidate)
	auth.Post("/2fa/disable", middleware.JWT(), middleware.OTP(), ctl.AuthOtpDisable)

	// User
	user := api.Group("/user", middleware.JWT(), middleware.OTP())
	user.Get("/profile", ctl.UserProfile)
	user.Put("/profile", ctl.UserUpdate)
	user.Get("/search", ctl.UserSearch)
	user.Get("/devices", ctl.UserDevices)

	// Contacts
	contact := api.Group("/contacts", middleware.JWT(), middleware.OTP())
	contact.Get("/", ctl.ContactList)
	contact.Post("/", ctl.ContactRequest)
	contact.Post("/viewed", ctl.ContactRequestsViewed)
	contact.Put("/:id/accept", ctl.ContactAccept)
	contact.Put("/:id/reject", ctl.ContactReject)
	contact.Put("/:id/block", ctl.ContactBlock)
	contact.Put("/:id/unblock", ctl.ContactUnblock)

	// Chats & messages
	chat := api.Group("/chats", middleware.JWT(), middleware.OTP())
	chat.Get("/", ctl.ChatList)
	chat.Post("/", ctl.ChatCreate)
	chat.Get("/:id/messages", ctl.MessageList)
	chat.Delete("/:id/notifications", ctl.NotificationsClear)

	message := api.Group("/messages", middleware.JWT(), middleware.OTP())
	message.Post("/", ctl.MessageSend)
	message.Post("/forward", ctl.MessageForward)
	message.Get("/starred", ctl.StarredList)
	message.Delete("/:id", ctl.MessageDelete)
	message.Post("/:id/reactions", ctl.MessageReact)
	message.Post("/:id/star", ctl.MessageStar)
	message.Delete("/:id/star", ctl.MessageUnstar)

	// Notifications
	notifications := api.Group("/notifications", middleware.JWT(), middleware.OTP())
	notifications.Get("/", ctl.NotificationsList)

	// Admin
	admin := api.Group("/admin", middleware.JWT(), middleware.OTP(), middleware.RBAC(enforcer))
	admin.Get("/users", ctl.AdminUsers)
}
