// Package withdrawal moves wallet funds out through an admin-approved
// release. The debit at request time is the hold; there is no separate
// reservation ledger. Rejection restores exactly what was debited.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
)

type Workflow struct {
	db        *gorm.DB
	ledger    *wallet.Ledger
	minAmount decimal.Decimal
}

func NewWorkflow(db *gorm.DB, ledger *wallet.Ledger, minAmount decimal.Decimal) *Workflow {
	return &Workflow{db: db, ledger: ledger, minAmount: minAmount}
}

type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountTitle  string `json:"account_title"`
	IBAN          string `json:"iban"`
}

// Request debits the wallet (principal before bonus) and files the
// withdrawal for admin review, all in one atomic unit.
func (w *Workflow) Request(ctx context.Context, userID string, amount decimal.Decimal, bank BankDetails) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Validation("amount", "must be positive")
	}
	if amount.LessThan(w.minAmount) {
		return nil, apperrors.Validation("amount", fmt.Sprintf("below minimum of %s", w.minAmount.String()))
	}

	var wd models.Withdrawal
	err := wallet.WithConflictRetry(ctx, w.db, func(tx *gorm.DB) error {
		split, row, err := w.ledger.DebitTx(tx, userID, amount, models.TxWithdrawal, wallet.TxOptions{
			Method:      models.MethodBankTransfer,
			Status:      models.TxAwaitingApproval,
			Description: fmt.Sprintf("Withdrawal request: %s", amount.String()),
		})
		if err != nil {
			return err
		}

		wd = models.Withdrawal{
			UserID:        userID,
			TransactionID: row.ID,
			Amount:        amount,
			FromBalance:   split.FromBalance,
			FromBonus:     split.FromBonus,
			BankName:      bank.BankName,
			AccountNumber: bank.AccountNumber,
			AccountTitle:  bank.AccountTitle,
			IBAN:          bank.IBAN,
			Status:        models.WithdrawalAwaitingApproval,
			RequestedAt:   time.Now(),
		}
		if err := tx.Create(&wd).Error; err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wd, nil
}

// Decision is an admin verdict on a pending withdrawal.
type Decision struct {
	Approve         bool
	AdminID         string
	RejectionReason string
	AdminNotes      string
}

// Decide transitions a withdrawal out of awaiting_approval. Approval
// completes the hold transaction and counts the amount as withdrawn;
// the actual disbursement runs out of band. Rejection credits back the
// exact split that was debited at request time. A withdrawal that was
// already decided cannot be decided again.
func (w *Workflow) Decide(ctx context.Context, withdrawalID uint, d Decision) (*models.Withdrawal, error) {
	var wd models.Withdrawal
	err := wallet.WithConflictRetry(ctx, w.db, func(tx *gorm.DB) error {
		if err := tx.First(&wd, withdrawalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("load withdrawal: %w", err)
		}
		if wd.Status != models.WithdrawalAwaitingApproval {
			return fmt.Errorf("withdrawal %d is %s: %w", wd.ID, wd.Status, apperrors.ErrInvalidStateTransition)
		}

		if d.Approve {
			if err := w.approve(tx, &wd); err != nil {
				return err
			}
		} else {
			if err := w.reject(tx, &wd, d.RejectionReason); err != nil {
				return err
			}
		}

		wd.ApprovedBy = &d.AdminID
		wd.AdminNotes = d.AdminNotes
		return tx.Save(&wd).Error
	})
	if err != nil {
		return nil, err
	}
	return &wd, nil
}

func (w *Workflow) approve(tx *gorm.DB, wd *models.Withdrawal) error {
	err := tx.Model(&models.Transaction{}).
		Where("id = ?", wd.TransactionID).
		Update("status", models.TxCompleted).Error
	if err != nil {
		return fmt.Errorf("complete hold transaction: %w", err)
	}
	if err := w.ledger.AddWithdrawnTx(tx, wd.UserID, wd.Amount); err != nil {
		return err
	}
	now := time.Now()
	wd.Status = models.WithdrawalApproved
	wd.ApprovedAt = &now
	return nil
}

func (w *Workflow) reject(tx *gorm.DB, wd *models.Withdrawal, reason string) error {
	split := wallet.Split{FromBalance: wd.FromBalance, FromBonus: wd.FromBonus}
	_, err := w.ledger.RefundTx(tx, wd.UserID, split, wallet.TxOptions{
		Method:      models.MethodBankTransfer,
		Description: fmt.Sprintf("Rejected withdrawal #%d", wd.ID),
	})
	if err != nil {
		return err
	}
	err = tx.Model(&models.Transaction{}).
		Where("id = ?", wd.TransactionID).
		Update("status", models.TxCancelled).Error
	if err != nil {
		return fmt.Errorf("cancel hold transaction: %w", err)
	}
	wd.Status = models.WithdrawalRejected
	wd.RejectionReason = reason
	return nil
}

// ListForUser pages through a user's withdrawal requests.
func (w *Workflow) ListForUser(ctx context.Context, userID string, status models.WithdrawalStatus, page, limit int) ([]models.Withdrawal, int64, error) {
	q := w.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("user_id = ?", userID)
	return w.list(q, status, page, limit)
}

// ListAll pages the admin review queue.
func (w *Workflow) ListAll(ctx context.Context, status models.WithdrawalStatus, page, limit int) ([]models.Withdrawal, int64, error) {
	q := w.db.WithContext(ctx).Model(&models.Withdrawal{})
	return w.list(q, status, page, limit)
}

func (w *Workflow) list(q *gorm.DB, status models.WithdrawalStatus, page, limit int) ([]models.Withdrawal, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	var rows []models.Withdrawal
	err := q.Order("requested_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	return rows, total, nil
}
