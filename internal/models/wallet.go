package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WalletStatus string

const (
	WalletActive    WalletStatus = "active"
	WalletSuspended WalletStatus = "suspended"
	WalletFrozen    WalletStatus = "frozen"
)

// Wallet holds principal and bonus funds. Version guards optimistic
// read-modify-write cycles; every balance mutation bumps it.
type Wallet struct {
	gorm.Model
	UserID         string          `gorm:"type:uuid;uniqueIndex;not null"`
	Balance        decimal.Decimal `gorm:"not null"`
	BonusBalance   decimal.Decimal `gorm:"not null"`
	TotalEarned    decimal.Decimal `gorm:"not null"`
	TotalWithdrawn decimal.Decimal `gorm:"not null"`
	Currency       string          `gorm:"size:3;not null;default:PKR"`
	Status         WalletStatus    `gorm:"size:20;not null;default:active"`
	Version        int64           `gorm:"not null;default:0"`
}

type TransactionType string

const (
	TxDeposit       TransactionType = "deposit"
	TxWithdrawal    TransactionType = "withdrawal"
	TxPurchase      TransactionType = "purchase"
	TxRefund        TransactionType = "refund"
	TxReferralBonus TransactionType = "referral_bonus"
	TxTopupBonus    TransactionType = "topup_bonus"
)

type TransactionStatus string

const (
	TxPending          TransactionStatus = "pending"
	TxCompleted        TransactionStatus = "completed"
	TxFailed           TransactionStatus = "failed"
	TxCancelled        TransactionStatus = "cancelled"
	TxAwaitingApproval TransactionStatus = "awaiting_approval"
)

type PaymentMethod string

const (
	MethodWallet       PaymentMethod = "wallet"
	MethodGateway      PaymentMethod = "gateway"
	MethodMixed        PaymentMethod = "mixed"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodBonus        PaymentMethod = "bonus"
)

// Transaction is the append-only ledger row. Completed rows are never
// mutated; reversals are written as new refund rows.
type Transaction struct {
	gorm.Model
	UserID        string            `gorm:"type:uuid;index;not null"`
	Type          TransactionType   `gorm:"size:20;not null"`
	Amount        decimal.Decimal   `gorm:"not null"`
	PaymentMethod PaymentMethod     `gorm:"size:20;not null"`
	Status        TransactionStatus `gorm:"size:20;not null;default:pending"`
	Reference     string            `gorm:"uniqueIndex;size:100"`
	GatewayRef    string            `gorm:"size:100"`
	OrderID       *uint             `gorm:"index"`
	Description   string            `gorm:"type:text"`
}
