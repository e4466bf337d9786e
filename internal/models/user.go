package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// User carries the referral edge (ReferredBy) plus denormalized team
// counters. The counters are a cache; the referred_by column is the
// source of truth.
type User struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string `gorm:"size:100;not null"`
	Username     string `gorm:"uniqueIndex;size:100;not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	Password     string `gorm:"size:255"`
	Role         Role   `gorm:"size:20;not null;default:customer"`
	ReferralCode string `gorm:"uniqueIndex;size:10"`
	// ReferredBy is set once at registration and never changed afterwards.
	ReferredBy      *string `gorm:"type:uuid;index"`
	ReferralCount   int     `gorm:"not null;default:0"`
	ReferralLevel   int     `gorm:"not null;default:1"`
	DirectReferrals int     `gorm:"not null;default:0"`
	TeamSize        int     `gorm:"not null;default:0"`
	TeamDepth       int     `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type ReferralEventType string

const (
	ReferralEventSignup     ReferralEventType = "signup"
	ReferralEventConversion ReferralEventType = "conversion"
)

// ReferralEvent is an immutable attribution record, written once per event.
type ReferralEvent struct {
	ID         uint              `gorm:"primaryKey"`
	ReferrerID string            `gorm:"type:uuid;index;not null"`
	RefereeID  string            `gorm:"type:uuid;index;not null"`
	EventType  ReferralEventType `gorm:"size:20;not null;default:signup"`
	Tier       int               `gorm:"not null;default:1"`
	CreatedAt  time.Time
}
