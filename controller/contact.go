package controller

import (
	"encoding/json"
	"time"

	"chat-service/cache"
	"chat-service/event"
	"chat-service/model"

	"github.com/gofiber/fiber/v2"
)

type ContactRequestInput struct {
	UserID uint `json:"user_id"`
}

// ContactList serves both directions of the contact graph, cache-aside.
func (ctl *Controller) ContactList(c *fiber.Ctx) error {
	id := ctl.userID(c)
	key := cache.ContactsKey(id)

	contacts := []model.Contact{}
	if err := ctl.Cache.GetJSON(c.Context(), key, &contacts); err != nil {
		if err := ctl.DB.
			Where("owner_id = ? OR contact_id = ?", id, id).
			Preload("Owner").Preload("User").
			Find(&contacts).Error; err != nil {
			return errResp(c, fiber.StatusInternalServerError, "Internal server error")
		}
		if err := ctl.Cache.SetJSON(c.Context(), key, contacts, cache.DefaultTTL); err != nil {
			ctl.Log.Warn("contact: cache set failed")
		}
	}

	return okResp(c, contacts)
}

func (ctl *Controller) ContactRequest(c *fiber.Ctx) error {
	input := new(ContactRequestInput)
	if err := c.BodyParser(input); err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	if input.UserID == id {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	// Reject duplicates in either direction
	var count int64
	ctl.DB.Model(&model.Contact{}).
		Where("(owner_id = ? AND contact_id = ?) OR (owner_id = ? AND contact_id = ?)",
			id, input.UserID, input.UserID, id).
		Count(&count)
	if count > 0 {
		return errResp(c, fiber.StatusBadRequest, "Contact already exists")
	}

	contact := &model.Contact{OwnerID: id, ContactID: input.UserID, Status: model.ContactPending}
	if err := ctl.DB.Create(contact).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}
	ctl.DB.Preload("Owner").First(contact, contact.ID)

	ctl.contactFanOut(c, event.ContactRequest, contact, id, input.UserID)
	ctl.Journal.Record("backoffice", "contact_request", fiber.Map{"from": id, "to": input.UserID})

	return okResp(c, contact)
}

func (ctl *Controller) ContactAccept(c *fiber.Ctx) error {
	return ctl.contactAnswer(c, model.ContactAccepted, event.ContactRequestAccepted)
}

func (ctl *Controller) ContactReject(c *fiber.Ctx) error {
	return ctl.contactAnswer(c, model.ContactRejected, event.ContactRequestRejected)
}

// contactAnswer resolves a pending request. Only the requested side may
// answer, and only while the request is still pending.
func (ctl *Controller) contactAnswer(c *fiber.Ctx, newStatus string, t event.Type) error {
	contactID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	contact := &model.Contact{}
	if err := ctl.DB.
		Where(&model.Contact{ContactID: id, Status: model.ContactPending}).
		First(contact, contactID).Error; err != nil {
		return errResp(c, fiber.StatusNotFound, "Contact request not found")
	}

	if err := ctl.DB.Model(contact).Update("status", newStatus).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	// Notify the original requester
	ctl.contactFanOut(c, t, contact, id, contact.OwnerID)

	return okResp(c, contact)
}

func (ctl *Controller) ContactBlock(c *fiber.Ctx) error {
	return ctl.contactFlag(c, model.ContactBlocked, event.ContactBlocked)
}

func (ctl *Controller) ContactUnblock(c *fiber.Ctx) error {
	return ctl.contactFlag(c, model.ContactAccepted, event.ContactUnblocked)
}

func (ctl *Controller) contactFlag(c *fiber.Ctx, newStatus string, t event.Type) error {
	contactID, err := c.ParamsInt("id")
	if err != nil {
		return errResp(c, fiber.StatusBadRequest, "Review your input")
	}

	id := ctl.userID(c)
	contact := &model.Contact{}
	if err := ctl.DB.
		Where("owner_id = ? OR contact_id = ?", id, id).
		First(contact, contactID).Error; err != nil {
		return errResp(c, fiber.StatusNotFound, "Contact not found")
	}

	if err := ctl.DB.Model(contact).Update("status", newStatus).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	// Notify the other side
	other := contact.ContactID
	if other == id {
		other = contact.OwnerID
	}
	ctl.contactFanOut(c, t, contact, id, other)

	return okResp(c, contact)
}

// ContactRequestsViewed stamps every pending incoming request as seen and
// tells the user's other sessions to clear the badge.
func (ctl *Controller) ContactRequestsViewed(c *fiber.Ctx) error {
	id := ctl.userID(c)
	now := time.Now()

	if err := ctl.DB.Model(&model.Contact{}).
		Where("contact_id = ? AND status = ? AND viewed_at IS NULL", id, model.ContactPending).
		Update("viewed_at", &now).Error; err != nil {
		return errResp(c, fiber.StatusInternalServerError, "Internal server error")
	}

	ctl.Cache.Invalidate(c.Context(), event.ContactRequestsViewed, cache.Scope{UserIDs: []uint{id}})
	ctl.publish(c.Context(), event.ContactRequestsViewed, event.ContactRequestsViewedPayload{
		Recipient: ctl.recipient(c.Context(), id),
		ViewedAt:  now,
	})

	return okResp(c, nil)
}

func (ctl *Controller) contactFanOut(c *fiber.Ctx, t event.Type, contact *model.Contact, actorID, targetID uint) {
	ctl.Cache.Invalidate(c.Context(), t, cache.Scope{UserIDs: []uint{actorID, targetID}})

	raw, err := json.Marshal(contact)
	if err != nil {
		ctl.Log.Warn("contact: marshal failed")
		return
	}
	ctl.publish(c.Context(), t, event.ContactPayload{
		Contact:   raw,
		ActorID:   actorID,
		Recipient: ctl.recipient(c.Context(), targetID),
	})
}
