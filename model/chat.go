package model

import (
	"time"

	"gorm.io/gorm"
)

// Message content types
const (
	MessageText     = "TEXT"
	MessageImage    = "IMAGE"
	MessageVideo    = "VIDEO"
	MessageAudio    = "AUDIO"
	MessageDocument = "DOCUMENT"
)

// Delivery states, monotonic per (message, recipient)
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
)

// Deletion scopes
const (
	DeleteForMe       = "FOR_ME"
	DeleteForEveryone = "FOR_EVERYONE"
)

type Chat struct {
	gorm.Model
	IsGroup   bool   `gorm:"not null;default:false" json:"is_group"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	CreatedBy uint   `gorm:"not null" json:"created_by"`

	Users []ChatUser `json:"users"`
}

type ChatUser struct {
	gorm.Model
	ChatID uint   `gorm:"index:idx_chat_user,unique;not null" json:"chat_id"`
	UserID uint   `gorm:"index:idx_chat_user,unique;not null" json:"user_id"`
	Role   string `gorm:"not null;default:member" json:"role"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// Message content is immutable after creation. Removal is expressed through
// MessageDelete markers, the row itself stays while any viewer still sees it.
type Message struct {
	gorm.Model
	ChatID   uint   `gorm:"index;not null" json:"chat_id"`
	SenderID uint   `gorm:"index;not null" json:"sender_id"`
	Type     string `gorm:"not null;default:TEXT" json:"type"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url"`

	// Reply reference
	ParentID *uint `json:"parent_id"`
	// Forwarding origin
	ForwardedFromID *uint `json:"forwarded_from_id"`

	Sender   User            `gorm:"foreignKey:SenderID" json:"sender"`
	Statuses []MessageStatus `json:"statuses"`
}

type MessageDelete struct {
	gorm.Model
	MessageID uint   `gorm:"index:idx_message_delete,unique;not null" json:"message_id"`
	UserID    uint   `gorm:"index:idx_message_delete,unique;not null" json:"user_id"`
	Scope     string `gorm:"not null" json:"scope"`
}

// MessageStatus is the only mutable delivery-tracking entity: one row per
// (message, recipient), created at send time for every participant except
// the sender.
type MessageStatus struct {
	gorm.Model
	MessageID   uint       `gorm:"index:idx_message_status,unique;not null" json:"message_id"`
	UserID      uint       `gorm:"index:idx_message_status,unique;not null" json:"user_id"`
	ChatID      uint       `gorm:"index;not null" json:"chat_id"`
	Status      string     `gorm:"not null;default:SENT" json:"status"`
	DeliveredAt *time.Time `json:"delivered_at"`
	ReadAt      *time.Time `json:"read_at"`
}

type ChatNotification struct {
	gorm.Model
	UserID      uint       `gorm:"index:idx_chat_notification,unique;not null" json:"user_id"`
	ChatID      uint       `gorm:"index:idx_chat_notification,unique;not null" json:"chat_id"`
	UnreadCount int        `gorm:"not null;default:0" json:"unread_count"`
	LastReadAt  *time.Time `json:"last_read_at"`
}

// Reaction holds at most one emoji per (message, user); a repeated toggle
// with the same emoji removes the row, a different emoji replaces it.
type Reaction struct {
	gorm.Model
	MessageID uint   `gorm:"index:idx_reaction,unique;not null" json:"message_id"`
	UserID    uint   `gorm:"index:idx_reaction,unique;not null" json:"user_id"`
	Emoji     string `gorm:"not null" json:"emoji"`
}

type StarredMessage struct {
	gorm.Model
	MessageID uint `gorm:"index:idx_starred,unique;not null" json:"message_id"`
	UserID    uint `gorm:"index:idx_starred,unique;not null" json:"user_id"`
}
