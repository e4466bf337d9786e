package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	gorm.Model
	Name  string          `gorm:"size:255;not null"`
	Price decimal.Decimal `gorm:"not null"`
	Stock int             `gorm:"not null;default:0"`
}

type CartStatus string

const (
	CartActive     CartStatus = "active"
	CartCheckedOut CartStatus = "checked_out"
)

type Cart struct {
	gorm.Model
	UserID string     `gorm:"type:uuid;index;not null"`
	Status CartStatus `gorm:"size:20;not null;default:active"`
	Items  []CartItem
}

type CartItem struct {
	gorm.Model
	CartID    uint `gorm:"index;not null"`
	ProductID uint `gorm:"index;not null"`
	Quantity  int  `gorm:"not null"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	gorm.Model
	UserID      string          `gorm:"type:uuid;index;not null"`
	TotalAmount decimal.Decimal `gorm:"not null"`
	Status      OrderStatus     `gorm:"size:20;not null;default:pending"`
	// IdempotencyKey deduplicates retried checkout attempts.
	IdempotencyKey string `gorm:"uniqueIndex;size:100"`
	Items          []OrderItem
}

// OrderItem snapshots the product price at purchase time.
type OrderItem struct {
	gorm.Model
	OrderID   uint            `gorm:"index;not null"`
	ProductID uint            `gorm:"index;not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"not null"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment records how an order was funded:
// WalletAmountUsed + GatewayAmount == AmountPaid == Order.TotalAmount.
type Payment struct {
	gorm.Model
	OrderID          uint            `gorm:"index;not null"`
	TransactionID    *uint           `gorm:"index"`
	Method           PaymentMethod   `gorm:"size:20;not null"`
	AmountPaid       decimal.Decimal `gorm:"not null"`
	WalletAmountUsed decimal.Decimal `gorm:"not null"`
	GatewayAmount    decimal.Decimal `gorm:"not null"`
	Status           PaymentStatus   `gorm:"size:20;not null;default:pending"`
	GatewayRef       string          `gorm:"size:100"`
}
