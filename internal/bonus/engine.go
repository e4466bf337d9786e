// Package bonus issues referral and top-up bonuses into wallets. Rates
// come from configuration, never constants compiled in.
package bonus

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/team"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
)

type Engine struct {
	db           *gorm.DB
	ledger       *wallet.Ledger
	teams        *team.Aggregator
	signupBonus  decimal.Decimal
	topupPercent decimal.Decimal
}

func NewEngine(db *gorm.DB, ledger *wallet.Ledger, teams *team.Aggregator, signupBonus, topupPercent decimal.Decimal) *Engine {
	return &Engine{
		db:           db,
		ledger:       ledger,
		teams:        teams,
		signupBonus:  signupBonus,
		topupPercent: topupPercent,
	}
}

// OnSignupTx rewards the referrer for a successful attribution inside
// the caller's transaction: the configured signup bonus lands in the
// referrer's bonus balance and the attribution is logged as a tier-1
// signup event. Callers follow up with RefreshTeams once committed.
func (e *Engine) OnSignupTx(tx *gorm.DB, referrerID, refereeID string) error {
	if e.signupBonus.IsPositive() {
		_, err := e.ledger.CreditTx(tx, referrerID, e.signupBonus, models.TxReferralBonus, wallet.TxOptions{
			Method:      models.MethodBonus,
			Description: fmt.Sprintf("Signup bonus for referring user %s", refereeID),
		})
		if err != nil {
			return err
		}
	}
	event := models.ReferralEvent{
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		EventType:  models.ReferralEventSignup,
		Tier:       1,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("record referral event: %w", err)
	}
	return nil
}

// RefreshTeams recomputes the referrer's counters and walks the upline.
// Best effort: a failure here is logged and never blocks the
// registration that triggered it; stale counters self-heal on the next
// mutation touching the lineage.
func (e *Engine) RefreshTeams(ctx context.Context, referrerID string) {
	if _, err := e.teams.Refresh(ctx, referrerID); err != nil {
		logger.Log.Warn("referrer stats refresh failed",
			zap.String("referrer_id", referrerID), zap.Error(err))
		return
	}
	if err := e.teams.RefreshUpline(ctx, referrerID); err != nil {
		logger.Log.Warn("upline stats refresh failed",
			zap.String("referrer_id", referrerID), zap.Error(err))
	}
}

// OnSignup is the standalone form: bonus and event in their own atomic
// unit, then the team refresh.
func (e *Engine) OnSignup(ctx context.Context, referrerID, refereeID string) error {
	err := wallet.WithConflictRetry(ctx, e.db, func(tx *gorm.DB) error {
		return e.OnSignupTx(tx, referrerID, refereeID)
	})
	if err != nil {
		return err
	}
	e.RefreshTeams(ctx, referrerID)
	return nil
}

// OnTopUp credits the percentage bonus for a wallet deposit inside the
// caller's transaction. The bonus goes to the account that topped up,
// matching the live behavior of the deposit flow.
func (e *Engine) OnTopUp(tx *gorm.DB, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	bonusAmount := amount.Mul(e.topupPercent).Div(decimal.NewFromInt(100))
	if !bonusAmount.IsPositive() {
		return decimal.Zero, nil
	}

	_, err := e.ledger.CreditTx(tx, userID, bonusAmount, models.TxTopupBonus, wallet.TxOptions{
		Method:      models.MethodBonus,
		Description: fmt.Sprintf("%s%% bonus on balance add", e.topupPercent.String()),
	})
	if err != nil {
		return decimal.Zero, err
	}
	return bonusAmount, nil
}
