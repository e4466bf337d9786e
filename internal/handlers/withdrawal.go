package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
	"github.com/basharatali122/hamza-website-backend/internal/httputil"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/middleware"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/monitoring"
	"github.com/basharatali122/hamza-website-backend/internal/withdrawal"
)

type WithdrawalRequest struct {
	Amount decimal.Decimal        `json:"amount"`
	Bank   withdrawal.BankDetails `json:"bank"`
}

// RequestWithdrawalHandler godoc
// @Summary Request a withdrawal; funds are held until an admin decides
// @Tags withdrawal
// @Accept json
// @Produce json
// @Param request body WithdrawalRequest true "amount and bank details"
// @Success 201 {object} models.Withdrawal
// @Security BearerAuth
// @Router /withdrawals [post]
func (h *Handlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	wd, err := h.withdrawals.Request(r.Context(), middleware.UserID(r.Context()), req.Amount, req.Bank)
	if err != nil {
		logger.Log.Warn("withdrawal request failed",
			zap.String("user_id", middleware.UserID(r.Context())),
			zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	monitoring.WithdrawalsTotal.WithLabelValues(string(wd.Status)).Inc()

	httputil.WriteJSON(w, http.StatusCreated, wd)
}

// MyWithdrawalsHandler godoc
// @Summary List the current user's withdrawal requests
// @Tags withdrawal
// @Produce json
// @Param status query string false "status filter"
// @Success 200 {object} map[string]any
// @Security BearerAuth
// @Router /withdrawals [get]
func (h *Handlers) MyWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	status := models.WithdrawalStatus(r.URL.Query().Get("status"))

	items, total, err := h.withdrawals.ListForUser(r.Context(), middleware.UserID(r.Context()), status, page, limit)
	if err != nil {
		logger.Log.Error("failed to list withdrawals", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"withdrawals": items,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

// AdminWithdrawalsHandler godoc
// @Summary List all withdrawal requests (admin)
// @Tags admin
// @Produce json
// @Param status query string false "status filter"
// @Success 200 {object} map[string]any
// @Security BearerAuth
// @Router /admin/withdrawals [get]
func (h *Handlers) AdminWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	status := models.WithdrawalStatus(r.URL.Query().Get("status"))

	items, total, err := h.withdrawals.ListAll(r.Context(), status, page, limit)
	if err != nil {
		logger.Log.Error("failed to list withdrawals", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"withdrawals": items,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

type DecideWithdrawalRequest struct {
	Approve         bool   `json:"approve"`
	RejectionReason string `json:"rejectionReason"`
	AdminNotes      string `json:"adminNotes"`
}

// DecideWithdrawalHandler godoc
// @Summary Approve or reject a pending withdrawal (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "withdrawal id"
// @Param request body DecideWithdrawalRequest true "decision"
// @Success 200 {object} models.Withdrawal
// @Security BearerAuth
// @Router /admin/withdrawals/{id}/decision [post]
func (h *Handlers) DecideWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteAppError(w, apperrors.Validation("id", "must be a number"))
		return
	}

	var req DecideWithdrawalRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	wd, err := h.withdrawals.Decide(r.Context(), uint(id), withdrawal.Decision{
		Approve:         req.Approve,
		AdminID:         middleware.UserID(r.Context()),
		RejectionReason: req.RejectionReason,
		AdminNotes:      req.AdminNotes,
	})
	if err != nil {
		logger.Log.Warn("withdrawal decision failed", zap.Uint64("id", id), zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	monitoring.WithdrawalsTotal.WithLabelValues(string(wd.Status)).Inc()

	httputil.WriteJSON(w, http.StatusOK, wd)
}
