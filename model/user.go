package model

import (
	"time"

	"gorm.io/gorm"
)

// User struct
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Role     string `json:"role"`
	About    string `json:"about"`
	Avatar   string `json:"avatar"`

	// Durable presence mirror. The authoritative copy lives in the presence
	// store while the user holds at least one live session.
	Online   bool       `gorm:"not null;default:false" json:"online"`
	LastSeen *time.Time `json:"last_seen"`

	Otp_enabled bool   `gorm:"default:false;" json:"-"`
	Otp_secret  string `json:"-"`
}

// Device is one registered client installation. A user may hold several at
// once; sockets attach to devices via the register-device event.
type Device struct {
	gorm.Model
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	DeviceID   string    `gorm:"uniqueIndex;not null" json:"device_id"`
	Name       string    `json:"name"`
	LastActive time.Time `json:"last_active"`
}

const (
	ContactPending  = "PENDING"
	ContactAccepted = "ACCEPTED"
	ContactRejected = "REJECTED"
	ContactBlocked  = "BLOCKED"
)

// Contact is a directed edge: OwnerID requested ContactID. Acceptance is
// recorded on the same row; blocking overwrites the status.
type Contact struct {
	gorm.Model
	OwnerID   uint       `gorm:"index:idx_contact_pair,unique;not null" json:"owner_id"`
	ContactID uint       `gorm:"index:idx_contact_pair,unique;not null" json:"contact_id"`
	Status    string     `gorm:"not null;default:PENDING" json:"status"`
	ViewedAt  *time.Time `json:"viewed_at"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
	User  User `gorm:"foreignKey:ContactID" json:"user"`
}
