package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/httputil"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/middleware"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
)

type BalanceResponse struct {
	Balance        decimal.Decimal `json:"balance"`
	BonusBalance   decimal.Decimal `json:"bonusBalance"`
	TotalAvailable decimal.Decimal `json:"totalAvailable"`
	TotalEarned    decimal.Decimal `json:"totalEarned"`
	TotalWithdrawn decimal.Decimal `json:"totalWithdrawn"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TopUpResponse struct {
	Transaction *models.Transaction `json:"transaction"`
	Bonus       decimal.Decimal     `json:"bonus"`
}

// BalanceHandler godoc
// @Summary Wallet balances for the current user
// @Tags wallet
// @Produce json
// @Success 200 {object} BalanceResponse
// @Security BearerAuth
// @Router /wallet [get]
func (h *Handlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	wal, err := h.ledger.GetOrCreate(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		logger.Log.Error("failed to load wallet", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Balance:        wal.Balance,
		BonusBalance:   wal.BonusBalance,
		TotalAvailable: wal.Balance.Add(wal.BonusBalance),
		TotalEarned:    wal.TotalEarned,
		TotalWithdrawn: wal.TotalWithdrawn,
		Currency:       wal.Currency,
		Status:         string(wal.Status),
	})
}

// TopUpHandler godoc
// @Summary Deposit funds and receive the top-up bonus
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body TopUpRequest true "amount to deposit"
// @Success 200 {object} TopUpResponse
// @Security BearerAuth
// @Router /wallet/topup [post]
func (h *Handlers) TopUpHandler(w http.ResponseWriter, r *http.Request) {
	var req TopUpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if !req.Amount.IsPositive() {
		httputil.WriteAppError(w, apperrors.Validation("amount", "must be positive"))
		return
	}

	userID := middleware.UserID(r.Context())
	var (
		deposit *models.Transaction
		bonus   decimal.Decimal
	)
	err := wallet.WithConflictRetry(r.Context(), h.db, func(tx *gorm.DB) error {
		var err error
		deposit, err = h.ledger.CreditTx(tx, userID, req.Amount, models.TxDeposit, wallet.TxOptions{
			Method:      models.MethodGateway,
			Description: "wallet top-up",
		})
		if err != nil {
			return err
		}
		bonus, err = h.bonuses.OnTopUp(tx, userID, req.Amount)
		return err
	})
	if err != nil {
		logger.Log.Error("top-up failed", zap.String("user_id", userID), zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TopUpResponse{Transaction: deposit, Bonus: bonus})
}

// TransactionsHandler godoc
// @Summary Paged transaction history, optionally filtered by type
// @Tags wallet
// @Produce json
// @Param type query string false "transaction type filter"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} map[string]any
// @Security BearerAuth
// @Router /wallet/transactions [get]
func (h *Handlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	t := models.TransactionType(r.URL.Query().Get("type"))

	txs, total, err := h.ledger.Transactions(r.Context(), middleware.UserID(r.Context()), t, page, limit)
	if err != nil {
		logger.Log.Error("failed to fetch transactions", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}
