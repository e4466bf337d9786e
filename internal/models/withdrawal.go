package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WithdrawalStatus string

const (
	WithdrawalAwaitingApproval WithdrawalStatus = "awaiting_approval"
	WithdrawalApproved         WithdrawalStatus = "approved"
	WithdrawalRejected         WithdrawalStatus = "rejected"
	WithdrawalProcessed        WithdrawalStatus = "processed"
)

// Withdrawal is a hold on wallet funds awaiting an admin decision.
// FromBalance/FromBonus record the debit split so a rejection can
// restore exactly what was taken.
type Withdrawal struct {
	gorm.Model
	UserID          string           `gorm:"type:uuid;index;not null"`
	TransactionID   uint             `gorm:"index;not null"`
	Amount          decimal.Decimal  `gorm:"not null"`
	FromBalance     decimal.Decimal  `gorm:"not null"`
	FromBonus       decimal.Decimal  `gorm:"not null"`
	BankName        string           `gorm:"size:100"`
	AccountNumber   string           `gorm:"size:50"`
	AccountTitle    string           `gorm:"size:100"`
	IBAN            string           `gorm:"size:50"`
	Status          WithdrawalStatus `gorm:"size:20;not null;default:awaiting_approval"`
	RequestedAt     time.Time
	ApprovedAt      *time.Time
	ApprovedBy      *string `gorm:"type:uuid"`
	RejectionReason string  `gorm:"type:text"`
	AdminNotes      string  `gorm:"type:text"`
}
