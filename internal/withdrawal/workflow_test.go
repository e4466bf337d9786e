package withdrawal

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/store"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestWorkflow(t *testing.T, minAmount string) (*Workflow, *wallet.Ledger, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	ledger := wallet.NewLedger(db)
	return NewWorkflow(db, ledger, d(minAmount)), ledger, db
}

func fund(t *testing.T, ledger *wallet.Ledger, userID, amount string) {
	t.Helper()
	_, err := ledger.Credit(context.Background(), userID, d(amount), models.TxDeposit, wallet.TxOptions{})
	require.NoError(t, err)
}

var bank = BankDetails{
	BankName:      "Test Bank",
	AccountNumber: "1234567890",
	AccountTitle:  "Test User",
	IBAN:          "PK36TEST0000001123456702",
}

func TestRequestHoldsFundsImmediately(t *testing.T) {
	wf, ledger, db := newTestWorkflow(t, "500.00")
	ctx := context.Background()
	fund(t, ledger, "user-1", "1000.00")

	wd, err := wf.Request(ctx, "user-1", d("500.00"), bank)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalAwaitingApproval, wd.Status)
	assert.True(t, wd.FromBalance.Equal(d("500.00")))
	assert.True(t, wd.FromBonus.IsZero())

	w, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("500.00")), "balance %s", w.Balance)

	var tx models.Transaction
	require.NoError(t, db.First(&tx, wd.TransactionID).Error)
	assert.Equal(t, models.TxAwaitingApproval, tx.Status)
	assert.Equal(t, models.TxWithdrawal, tx.Type)
}

func TestRequestBelowMinimum(t *testing.T) {
	wf, ledger, _ := newTestWorkflow(t, "500.00")
	fund(t, ledger, "user-1", "1000.00")

	var ve *apperrors.ValidationError
	_, err := wf.Request(context.Background(), "user-1", d("499.99"), bank)
	require.ErrorAs(t, err, &ve)

	_, err = wf.Request(context.Background(), "user-1", d("-10"), bank)
	require.ErrorAs(t, err, &ve)
}

func TestRequestInsufficientFunds(t *testing.T) {
	wf, ledger, db := newTestWorkflow(t, "500.00")
	fund(t, ledger, "user-1", "400.00")

	_, err := wf.Request(context.Background(), "user-1", d("500.00"), bank)
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	var count int64
	require.NoError(t, db.Model(&models.Withdrawal{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestApproveCompletesHoldAndCountsWithdrawn(t *testing.T) {
	wf, ledger, db := newTestWorkflow(t, "500.00")
	ctx := context.Background()
	fund(t, ledger, "user-1", "1000.00")

	wd, err := wf.Request(ctx, "user-1", d("600.00"), bank)
	require.NoError(t, err)

	decided, err := wf.Decide(ctx, wd.ID, Decision{Approve: true, AdminID: "admin-1", AdminNotes: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, decided.Status)
	require.NotNil(t, decided.ApprovedAt)
	require.NotNil(t, decided.ApprovedBy)
	assert.Equal(t, "admin-1", *decided.ApprovedBy)

	w, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("400.00")), "approval must not re-debit")
	assert.True(t, w.TotalWithdrawn.Equal(d("600.00")))

	var tx models.Transaction
	require.NoError(t, db.First(&tx, wd.TransactionID).Error)
	assert.Equal(t, models.TxCompleted, tx.Status)
}

func TestRejectRestoresExactSplit(t *testing.T) {
	wf, ledger, db := newTestWorkflow(t, "500.00")
	ctx := context.Background()
	fund(t, ledger, "user-1", "400.00")
	_, err := ledger.Credit(ctx, "user-1", d("300.00"), models.TxReferralBonus, wallet.TxOptions{})
	require.NoError(t, err)

	// 400 principal + 100 bonus.
	wd, err := wf.Request(ctx, "user-1", d("500.00"), bank)
	require.NoError(t, err)
	assert.True(t, wd.FromBalance.Equal(d("400.00")))
	assert.True(t, wd.FromBonus.Equal(d("100.00")))

	decided, err := wf.Decide(ctx, wd.ID, Decision{Approve: false, AdminID: "admin-1", RejectionReason: "bad iban"})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, decided.Status)
	assert.Equal(t, "bad iban", decided.RejectionReason)

	w, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("400.00")), "balance %s", w.Balance)
	assert.True(t, w.BonusBalance.Equal(d("300.00")), "bonus %s", w.BonusBalance)
	assert.True(t, w.TotalWithdrawn.IsZero())

	var tx models.Transaction
	require.NoError(t, db.First(&tx, wd.TransactionID).Error)
	assert.Equal(t, models.TxCancelled, tx.Status)
}

func TestDecideTwiceFails(t *testing.T) {
	wf, ledger, _ := newTestWorkflow(t, "500.00")
	ctx := context.Background()
	fund(t, ledger, "user-1", "1000.00")

	wd, err := wf.Request(ctx, "user-1", d("500.00"), bank)
	require.NoError(t, err)

	_, err = wf.Decide(ctx, wd.ID, Decision{Approve: true, AdminID: "admin-1"})
	require.NoError(t, err)

	_, err = wf.Decide(ctx, wd.ID, Decision{Approve: false, AdminID: "admin-1"})
	require.ErrorIs(t, err, apperrors.ErrInvalidStateTransition)

	w, err := ledger.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("500.00")), "second decision must not move funds")
}

func TestDecideUnknownWithdrawal(t *testing.T) {
	wf, _, _ := newTestWorkflow(t, "500.00")
	_, err := wf.Decide(context.Background(), 9999, Decision{Approve: true, AdminID: "admin-1"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListFiltersByStatusAndUser(t *testing.T) {
	wf, ledger, _ := newTestWorkflow(t, "100.00")
	ctx := context.Background()
	fund(t, ledger, "user-1", "1000.00")
	fund(t, ledger, "user-2", "1000.00")

	wd1, err := wf.Request(ctx, "user-1", d("100.00"), bank)
	require.NoError(t, err)
	_, err = wf.Request(ctx, "user-1", d("200.00"), bank)
	require.NoError(t, err)
	_, err = wf.Request(ctx, "user-2", d("300.00"), bank)
	require.NoError(t, err)

	_, err = wf.Decide(ctx, wd1.ID, Decision{Approve: true, AdminID: "admin-1"})
	require.NoError(t, err)

	mine, total, err := wf.ListForUser(ctx, "user-1", "", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, mine, 2)

	pending, total, err := wf.ListAll(ctx, models.WithdrawalAwaitingApproval, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, wd := range pending {
		assert.Equal(t, models.WithdrawalAwaitingApproval, wd.Status)
	}
}
