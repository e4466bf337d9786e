// Package checkout settles orders from wallet funds, the external
// payment gateway, or both. The gateway call is not part of any local
// transaction: a wallet debit that cannot be followed by a successful
// charge is compensated before the failure surfaces, so no state where
// money left the wallet without a completed order is ever observable.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/gateway"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
)

// Gateway is the contract the orchestrator needs from the external
// payment provider. All calls are idempotent keyed by reference.
type Gateway interface {
	Charge(ctx context.Context, amount decimal.Decimal, reference string) (*gateway.ChargeResult, error)
	Verify(ctx context.Context, transactionID string) (string, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (string, error)
}

type Orchestrator struct {
	db     *gorm.DB
	ledger *wallet.Ledger
	gw     Gateway
}

func NewOrchestrator(db *gorm.DB, ledger *wallet.Ledger, gw Gateway) *Orchestrator {
	return &Orchestrator{db: db, ledger: ledger, gw: gw}
}

type Result struct {
	Order            *models.Order   `json:"order"`
	Payment          *models.Payment `json:"payment"`
	WalletAmountUsed decimal.Decimal `json:"walletAmountUsed"`
	GatewayAmount    decimal.Decimal `json:"gatewayAmount"`
}

// Checkout settles the user's active cart. The idempotency key
// deduplicates retried attempts: a client retrying after a timeout gets
// the already-completed order back instead of a second debit or charge.
func (o *Orchestrator) Checkout(ctx context.Context, userID string, method models.PaymentMethod, idempotencyKey string) (*Result, error) {
	switch method {
	case models.MethodWallet, models.MethodGateway, models.MethodMixed:
	default:
		return nil, apperrors.Validation("paymentMethod", "must be wallet, gateway or mixed")
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	if res, err := o.lookupPrevious(ctx, userID, idempotencyKey); res != nil || err != nil {
		return res, err
	}

	cart, total, prices, err := o.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	walletUsed, gatewayAmount, err := o.splitFunds(ctx, userID, method, total)
	if err != nil {
		return nil, err
	}

	// Phase 1: order row, price snapshots and the wallet debit commit
	// as one unit. The debit is the reservation.
	var (
		order models.Order
		split wallet.Split
		debit *models.Transaction
	)
	err = wallet.WithConflictRetry(ctx, o.db, func(tx *gorm.DB) error {
		order = models.Order{
			UserID:         userID,
			TotalAmount:    total,
			Status:         models.OrderPending,
			IdempotencyKey: idempotencyKey,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, item := range cart.Items {
			snap := models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     prices[item.ProductID],
			}
			if err := tx.Create(&snap).Error; err != nil {
				return fmt.Errorf("snapshot order item: %w", err)
			}
		}
		if walletUsed.IsPositive() {
			var err error
			split, debit, err = o.ledger.DebitTx(tx, userID, walletUsed, models.TxPurchase, wallet.TxOptions{
				Method:      models.MethodWallet,
				OrderID:     &order.ID,
				Description: fmt.Sprintf("Purchase, order #%d", order.ID),
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// From here on the caller may be gone; the saga still has to finish
	// or roll back cleanly.
	detached := context.WithoutCancel(ctx)

	gatewayRef := ""
	if gatewayAmount.IsPositive() {
		reference := fmt.Sprintf("ORD-%d-%s", order.ID, userID)
		charge, err := o.gw.Charge(ctx, gatewayAmount, reference)
		if err != nil {
			o.compensate(detached, &order, split, err)
			return nil, fmt.Errorf("order %d: %w", order.ID, err)
		}
		if charge.Status != "success" && charge.Status != "completed" {
			gwErr := &apperrors.GatewayError{Op: "charge", Transient: false,
				Err: fmt.Errorf("charge status %q", charge.Status)}
			o.compensate(detached, &order, split, gwErr)
			return nil, fmt.Errorf("order %d: %w", order.ID, gwErr)
		}
		gatewayRef = charge.TransactionID
	}

	// Final phase: payment row, completed order and cleared cart in one
	// atomic unit.
	var payment models.Payment
	err = o.db.WithContext(detached).Transaction(func(tx *gorm.DB) error {
		payment = models.Payment{
			OrderID:          order.ID,
			Method:           method,
			AmountPaid:       total,
			WalletAmountUsed: walletUsed,
			GatewayAmount:    gatewayAmount,
			Status:           models.PaymentCompleted,
			GatewayRef:       gatewayRef,
		}
		if debit != nil {
			payment.TransactionID = &debit.ID
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := tx.Model(&order).Update("status", models.OrderCompleted).Error; err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		if err := tx.Model(cart).Update("status", models.CartCheckedOut).Error; err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		// The charge went through but the local commit did not: reverse
		// the charge too, then roll the wallet back.
		if gatewayRef != "" {
			if _, rerr := o.gw.Refund(detached, gatewayRef, gatewayAmount); rerr != nil {
				logger.Log.Error("gateway refund after failed settlement",
					zap.Uint("order_id", order.ID), zap.Error(rerr))
			}
		}
		o.compensate(detached, &order, split, err)
		return nil, fmt.Errorf("order %d settlement: %w", order.ID, err)
	}

	order.Status = models.OrderCompleted
	return &Result{
		Order:            &order,
		Payment:          &payment,
		WalletAmountUsed: walletUsed,
		GatewayAmount:    gatewayAmount,
	}, nil
}

// lookupPrevious resolves a retried idempotency key.
func (o *Orchestrator) lookupPrevious(ctx context.Context, userID, key string) (*Result, error) {
	var prev models.Order
	err := o.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	switch prev.Status {
	case models.OrderCompleted:
		var payment models.Payment
		if err := o.db.WithContext(ctx).Where("order_id = ?", prev.ID).First(&payment).Error; err != nil {
			return nil, fmt.Errorf("load payment for order %d: %w", prev.ID, err)
		}
		return &Result{
			Order:            &prev,
			Payment:          &payment,
			WalletAmountUsed: payment.WalletAmountUsed,
			GatewayAmount:    payment.GatewayAmount,
		}, nil
	case models.OrderPending:
		return nil, fmt.Errorf("checkout %s still in flight: %w", key, apperrors.ErrConcurrencyConflict)
	default:
		return nil, fmt.Errorf("checkout %s already failed, use a new key: %w", key, apperrors.ErrInvalidStateTransition)
	}
}

// loadCart fetches the active cart and recomputes the total from live
// product prices. Client-submitted totals are never trusted.
func (o *Orchestrator) loadCart(ctx context.Context, userID string) (*models.Cart, decimal.Decimal, map[uint]decimal.Decimal, error) {
	var cart models.Cart
	err := o.db.WithContext(ctx).Preload("Items").
		Where("user_id = ? AND status = ?", userID, models.CartActive).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(cart.Items) == 0) {
		return nil, decimal.Zero, nil, apperrors.Validation("cart", "is empty")
	}
	if err != nil {
		return nil, decimal.Zero, nil, fmt.Errorf("load cart: %w", err)
	}

	prices := make(map[uint]decimal.Decimal, len(cart.Items))
	total := decimal.Zero
	for _, item := range cart.Items {
		var product models.Product
		if err := o.db.WithContext(ctx).First(&product, item.ProductID).Error; err != nil {
			return nil, decimal.Zero, nil, fmt.Errorf("load product %d: %w", item.ProductID, err)
		}
		if product.Stock < item.Quantity {
			return nil, decimal.Zero, nil, apperrors.Validation("cart", fmt.Sprintf("insufficient stock for %s", product.Name))
		}
		prices[item.ProductID] = product.Price
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return &cart, total, prices, nil
}

// splitFunds decides how much of the total comes from the wallet.
func (o *Orchestrator) splitFunds(ctx context.Context, userID string, method models.PaymentMethod, total decimal.Decimal) (walletUsed, gatewayAmount decimal.Decimal, err error) {
	switch method {
	case models.MethodWallet:
		w, err := o.ledger.GetOrCreate(ctx, userID)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		if w.Balance.Add(w.BonusBalance).LessThan(total) {
			return decimal.Zero, decimal.Zero, apperrors.ErrInsufficientFunds
		}
		return total, decimal.Zero, nil
	case models.MethodGateway:
		return decimal.Zero, total, nil
	default: // mixed
		w, err := o.ledger.GetOrCreate(ctx, userID)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		available := w.Balance.Add(w.BonusBalance)
		walletUsed = decimal.Min(available, total)
		return walletUsed, total.Sub(walletUsed), nil
	}
}

// compensate reverses the wallet debit and marks the order failed. Run
// on a detached context: rollback happens whether or not the caller is
// still waiting.
func (o *Orchestrator) compensate(ctx context.Context, order *models.Order, split wallet.Split, cause error) {
	err := wallet.WithConflictRetry(ctx, o.db, func(tx *gorm.DB) error {
		if split.Total().IsPositive() {
			_, err := o.ledger.RefundTx(tx, order.UserID, split, wallet.TxOptions{
				Method:      models.MethodWallet,
				OrderID:     &order.ID,
				Description: fmt.Sprintf("Rollback for failed order #%d", order.ID),
			})
			if err != nil {
				return err
			}
		}
		return tx.Model(order).Update("status", models.OrderFailed).Error
	})
	if err != nil {
		logger.Log.Error("checkout compensation failed",
			zap.Uint("order_id", order.ID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	order.Status = models.OrderFailed
	logger.Log.Info("checkout rolled back",
		zap.Uint("order_id", order.ID),
		zap.String("refunded", split.Total().String()),
		zap.NamedError("cause", cause))
}

// VerifyPayment re-checks a gateway transaction and reconciles the
// local payment row with the gateway's view.
func (o *Orchestrator) VerifyPayment(ctx context.Context, gatewayRef string) (string, error) {
	var payment models.Payment
	err := o.db.WithContext(ctx).Where("gateway_ref = ?", gatewayRef).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load payment: %w", err)
	}

	status, err := o.gw.Verify(ctx, gatewayRef)
	if err != nil {
		return "", err
	}
	if status == "refunded" && payment.Status != models.PaymentRefunded {
		if err := o.db.WithContext(ctx).Model(&payment).Update("status", models.PaymentRefunded).Error; err != nil {
			return "", fmt.Errorf("reconcile payment: %w", err)
		}
	}
	return status, nil
}
