package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/basharatali122/hamza-website-backend/internal/httputil"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/middleware"
	"github.com/basharatali122/hamza-website-backend/internal/models"
)

type ReferralInfoResponse struct {
	ReferralCode    string         `json:"referralCode"`
	ReferralLevel   int            `json:"referralLevel"`
	DirectReferrals int            `json:"directReferrals"`
	TeamSize        int            `json:"teamSize"`
	TeamDepth       int            `json:"teamDepth"`
	Referrals       []UserResponse `json:"referrals"`
}

// ReferralInfoHandler godoc
// @Summary Referral code, level and direct referrals for the current user
// @Tags referral
// @Produce json
// @Success 200 {object} ReferralInfoResponse
// @Security BearerAuth
// @Router /referral [get]
func (h *Handlers) ReferralInfoHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	children, err := h.graph.Children(r.Context(), user.ID)
	if err != nil {
		logger.Log.Error("failed to fetch referrals", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}

	resp := ReferralInfoResponse{
		ReferralCode:    user.ReferralCode,
		ReferralLevel:   user.ReferralLevel,
		DirectReferrals: user.DirectReferrals,
		TeamSize:        user.TeamSize,
		TeamDepth:       user.TeamDepth,
		Referrals:       make([]UserResponse, 0, len(children)),
	}
	for i := range children {
		resp.Referrals = append(resp.Referrals, toUserResponse(&children[i]))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ReferralEventsHandler godoc
// @Summary Referral events earned by the current user
// @Tags referral
// @Produce json
// @Success 200 {array} models.ReferralEvent
// @Security BearerAuth
// @Router /referral/events [get]
func (h *Handlers) ReferralEventsHandler(w http.ResponseWriter, r *http.Request) {
	var events []models.ReferralEvent
	err := h.db.WithContext(r.Context()).
		Where("referrer_id = ?", middleware.UserID(r.Context())).
		Order("created_at DESC").
		Find(&events).Error
	if err != nil {
		logger.Log.Error("failed to fetch referral events", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

// TeamStatsHandler godoc
// @Summary Aggregate team statistics for the current user
// @Tags team
// @Produce json
// @Success 200 {object} team.Stats
// @Security BearerAuth
// @Router /team [get]
func (h *Handlers) TeamStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.teams.Stats(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		logger.Log.Error("failed to compute team stats", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// TeamTreeHandler godoc
// @Summary Downline as a nested tree, optionally bounded by depth
// @Tags team
// @Produce json
// @Param depth query int false "maximum depth"
// @Success 200 {object} team.TreeNode
// @Security BearerAuth
// @Router /team/tree [get]
func (h *Handlers) TeamTreeHandler(w http.ResponseWriter, r *http.Request) {
	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
	tree, err := h.teams.Tree(r.Context(), middleware.UserID(r.Context()), depth)
	if err != nil {
		logger.Log.Error("failed to build team tree", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tree)
}

// TeamListHandler godoc
// @Summary Downline as a flat list grouped by level
// @Tags team
// @Produce json
// @Success 200 {object} map[string]any
// @Security BearerAuth
// @Router /team/list [get]
func (h *Handlers) TeamListHandler(w http.ResponseWriter, r *http.Request) {
	members, byLevel, err := h.teams.LeveledList(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		logger.Log.Error("failed to list team", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"members": members,
		"byLevel": byLevel,
		"total":   len(members),
	})
}

// TeamRefreshHandler godoc
// @Summary Recompute and persist the current user's team statistics
// @Tags team
// @Produce json
// @Success 200 {object} team.Stats
// @Security BearerAuth
// @Router /team/refresh [post]
func (h *Handlers) TeamRefreshHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.teams.Refresh(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		logger.Log.Error("failed to refresh team stats", zap.Error(err))
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
