// Package handlers exposes the HTTP surface. Handlers stay thin:
// decode, delegate to the service, map errors, encode.
package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/auth"
	"github.com/basharatali122/hamza-website-backend/internal/bonus"
	"github.com/basharatali122/hamza-website-backend/internal/checkout"
	"github.com/basharatali122/hamza-website-backend/internal/httputil"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/middleware"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/monitoring"
	"github.com/basharatali122/hamza-website-backend/internal/referral"
	"github.com/basharatali122/hamza-website-backend/internal/team"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
	"github.com/basharatali122/hamza-website-backend/internal/withdrawal"
)

type Handlers struct {
	db          *gorm.DB
	auth        *auth.Service
	ledger      *wallet.Ledger
	bonuses     *bonus.Engine
	graph       *referral.Graph
	teams       *team.Aggregator
	checkout    *checkout.Orchestrator
	withdrawals *withdrawal.Workflow
}

func New(
	db *gorm.DB,
	authSvc *auth.Service,
	ledger *wallet.Ledger,
	bonuses *bonus.Engine,
	graph *referral.Graph,
	teams *team.Aggregator,
	orchestrator *checkout.Orchestrator,
	withdrawals *withdrawal.Workflow,
) *Handlers {
	return &Handlers{
		db:          db,
		auth:        authSvc,
		ledger:      ledger,
		bonuses:     bonuses,
		graph:       graph,
		teams:       teams,
		checkout:    orchestrator,
		withdrawals: withdrawals,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ReferralCode string `json:"referralCode"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		Role:         string(u.Role),
		ReferralCode: u.ReferralCode,
	}
}

// RegisterHandler godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.RegisterInput true "registration payload"
// @Success 201 {object} LoginResponse
// @Router /auth/register [post]
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if user.ReferredBy != nil {
		monitoring.ReferralSignupsTotal.Inc()
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		logger.Log.Error("failed to sign jwt", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, LoginResponse{Token: token, User: toUserResponse(user)})
}

// LoginHandler godoc
// @Summary Log in with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "credentials"
// @Success 200 {object} LoginResponse
// @Router /auth/login [post]
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		// Single message for bad username and bad password.
		httputil.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserResponse(user)})
}

// MeHandler godoc
// @Summary Current user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handlers) currentUser(r *http.Request) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(r.Context()).
		First(&user, "id = ?", middleware.UserID(r.Context())).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
