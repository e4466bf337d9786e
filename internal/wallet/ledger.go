// Package wallet implements the per-user wallet ledger. Every balance
// mutation commits together with exactly one Transaction row. Wallets
// are guarded by an optimistic version column: a lost race surfaces as
// ErrConcurrencyConflict and is retried a bounded number of times.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/models"
)

const maxConflictRetries = 3

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Split reports how a debit was taken: principal first, bonus for the
// remainder.
type Split struct {
	FromBalance decimal.Decimal
	FromBonus   decimal.Decimal
}

func (s Split) Total() decimal.Decimal {
	return s.FromBalance.Add(s.FromBonus)
}

// TxOptions annotate the ledger row written alongside a mutation.
type TxOptions struct {
	Method      models.PaymentMethod
	Status      models.TransactionStatus // defaults to completed
	OrderID     *uint
	GatewayRef  string
	Description string
}

// WithConflictRetry runs fn in a database transaction, retrying the
// whole unit when it loses an optimistic version race.
func WithConflictRetry(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, apperrors.ErrConcurrencyConflict) {
			return err
		}
	}
	return fmt.Errorf("wallet update lost %d races: %w", maxConflictRetries, err)
}

// GetOrCreate returns the user's wallet, creating an empty active one
// on first use. Idempotent.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := l.db.WithContext(ctx).
		Where(models.Wallet{UserID: userID}).
		Attrs(models.Wallet{Status: models.WalletActive, Currency: "PKR"}).
		FirstOrCreate(&w).Error
	if err != nil {
		return nil, fmt.Errorf("get or create wallet: %w", err)
	}
	return &w, nil
}

func (l *Ledger) getForUpdate(tx *gorm.DB, userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := tx.Where(models.Wallet{UserID: userID}).
		Attrs(models.Wallet{Status: models.WalletActive, Currency: "PKR"}).
		FirstOrCreate(&w).Error
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return &w, nil
}

// save commits the mutated wallet only if nobody else touched it since
// it was read.
func (l *Ledger) save(tx *gorm.DB, w *models.Wallet) error {
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]any{
			"balance":         w.Balance,
			"bonus_balance":   w.BonusBalance,
			"total_earned":    w.TotalEarned,
			"total_withdrawn": w.TotalWithdrawn,
			"version":         w.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("save wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConcurrencyConflict
	}
	return nil
}

func newReference(t models.TransactionType) string {
	prefix := map[models.TransactionType]string{
		models.TxDeposit:       "DEP",
		models.TxWithdrawal:    "WD",
		models.TxPurchase:      "PUR",
		models.TxRefund:        "REF",
		models.TxReferralBonus: "RB",
		models.TxTopupBonus:    "TB",
	}[t]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

func creditsBonus(t models.TransactionType) bool {
	return t == models.TxReferralBonus || t == models.TxTopupBonus
}

// CreditTx appends a ledger row and increases balance (or bonus balance
// for bonus transaction types) inside the caller's transaction.
func (l *Ledger) CreditTx(tx *gorm.DB, userID string, amount decimal.Decimal, t models.TransactionType, opts TxOptions) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Validation("amount", "must be positive")
	}

	w, err := l.getForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	if creditsBonus(t) {
		w.BonusBalance = w.BonusBalance.Add(amount)
		w.TotalEarned = w.TotalEarned.Add(amount)
	} else {
		w.Balance = w.Balance.Add(amount)
	}
	if err := l.save(tx, w); err != nil {
		return nil, err
	}

	row := l.newTransaction(userID, amount, t, opts)
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("record credit: %w", err)
	}
	return row, nil
}

// DebitTx removes amount from the wallet, principal before bonus, and
// appends the matching ledger row. Fails with ErrInsufficientFunds when
// balance plus bonus cannot cover the amount.
func (l *Ledger) DebitTx(tx *gorm.DB, userID string, amount decimal.Decimal, t models.TransactionType, opts TxOptions) (Split, *models.Transaction, error) {
	if !amount.IsPositive() {
		return Split{}, nil, apperrors.Validation("amount", "must be positive")
	}

	w, err := l.getForUpdate(tx, userID)
	if err != nil {
		return Split{}, nil, err
	}
	if w.Status != models.WalletActive {
		return Split{}, nil, apperrors.Validation("wallet", fmt.Sprintf("is %s", w.Status))
	}
	if w.Balance.Add(w.BonusBalance).LessThan(amount) {
		return Split{}, nil, apperrors.ErrInsufficientFunds
	}

	split := Split{FromBalance: amount}
	if w.Balance.LessThan(amount) {
		split.FromBalance = w.Balance
		split.FromBonus = amount.Sub(w.Balance)
	}
	w.Balance = w.Balance.Sub(split.FromBalance)
	w.BonusBalance = w.BonusBalance.Sub(split.FromBonus)
	if err := l.save(tx, w); err != nil {
		return Split{}, nil, err
	}

	row := l.newTransaction(userID, amount, t, opts)
	if err := tx.Create(row).Error; err != nil {
		return Split{}, nil, fmt.Errorf("record debit: %w", err)
	}
	return split, row, nil
}

// RefundTx restores a previously debited split, bucket for bucket, with
// a single refund row for the total.
func (l *Ledger) RefundTx(tx *gorm.DB, userID string, split Split, opts TxOptions) (*models.Transaction, error) {
	if !split.Total().IsPositive() {
		return nil, apperrors.Validation("amount", "must be positive")
	}

	w, err := l.getForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(split.FromBalance)
	w.BonusBalance = w.BonusBalance.Add(split.FromBonus)
	if err := l.save(tx, w); err != nil {
		return nil, err
	}

	row := l.newTransaction(userID, split.Total(), models.TxRefund, opts)
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("record refund: %w", err)
	}
	return row, nil
}

// AddWithdrawnTx bumps the lifetime withdrawn counter after an approved
// withdrawal. The funds themselves were debited at request time.
func (l *Ledger) AddWithdrawnTx(tx *gorm.DB, userID string, amount decimal.Decimal) error {
	w, err := l.getForUpdate(tx, userID)
	if err != nil {
		return err
	}
	w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
	return l.save(tx, w)
}

// Credit is the standalone form of CreditTx: one atomic unit, retried on
// version conflicts.
func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, t models.TransactionType, opts TxOptions) (*models.Transaction, error) {
	var row *models.Transaction
	err := WithConflictRetry(ctx, l.db, func(tx *gorm.DB) error {
		var err error
		row, err = l.CreditTx(tx, userID, amount, t, opts)
		return err
	})
	return row, err
}

// Debit is the standalone form of DebitTx.
func (l *Ledger) Debit(ctx context.Context, userID string, amount decimal.Decimal, t models.TransactionType, opts TxOptions) (Split, *models.Transaction, error) {
	var (
		split Split
		row   *models.Transaction
	)
	err := WithConflictRetry(ctx, l.db, func(tx *gorm.DB) error {
		var err error
		split, row, err = l.DebitTx(tx, userID, amount, t, opts)
		return err
	})
	return split, row, err
}

// Transactions lists the user's ledger rows, newest first, optionally
// filtered by type.
func (l *Ledger) Transactions(ctx context.Context, userID string, t models.TransactionType, page, limit int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	q := l.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if t != "" {
		q = q.Where("type = ?", t)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	var rows []models.Transaction
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return rows, total, nil
}

func (l *Ledger) newTransaction(userID string, amount decimal.Decimal, t models.TransactionType, opts TxOptions) *models.Transaction {
	status := opts.Status
	if status == "" {
		status = models.TxCompleted
	}
	method := opts.Method
	if method == "" {
		method = models.MethodWallet
	}
	return &models.Transaction{
		UserID:        userID,
		Type:          t,
		Amount:        amount,
		PaymentMethod: method,
		Status:        status,
		Reference:     newReference(t),
		GatewayRef:    opts.GatewayRef,
		OrderID:       opts.OrderID,
		Description:   opts.Description,
	}
}
