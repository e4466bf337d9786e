package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/basharatali122/hamza-website-backend/internal/handlers"
	appmw "github.com/basharatali122/hamza-website-backend/internal/middleware"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/monitoring"
)

func NewRoutes(h *handlers.Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(monitoring.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Post("/auth/register", h.RegisterHandler)
	r.Post("/auth/login", h.LoginHandler)
	r.Get("/products", h.ProductsHandler)

	r.Group(func(r chi.Router) {
		r.Use(appmw.Authenticated)

		r.Get("/auth/me", h.MeHandler)

		r.Get("/wallet", h.BalanceHandler)
		r.Post("/wallet/topup", h.TopUpHandler)
		r.Get("/wallet/transactions", h.TransactionsHandler)

		r.Get("/referral", h.ReferralInfoHandler)
		r.Get("/referral/events", h.ReferralEventsHandler)

		r.Get("/team", h.TeamStatsHandler)
		r.Get("/team/tree", h.TeamTreeHandler)
		r.Get("/team/list", h.TeamListHandler)
		r.Post("/team/refresh", h.TeamRefreshHandler)

		r.Get("/cart", h.GetCartHandler)
		r.Post("/cart/items", h.AddCartItemHandler)
		r.Post("/checkout", h.CheckoutHandler)
		r.Get("/orders", h.OrdersHandler)
		r.Get("/orders/{id}", h.OrderHandler)
		r.Get("/payments/{ref}/verify", h.VerifyPaymentHandler)

		r.Post("/withdrawals", h.RequestWithdrawalHandler)
		r.Get("/withdrawals", h.MyWithdrawalsHandler)

		r.Group(func(r chi.Router) {
			r.Use(appmw.RequireRole(models.RoleAdmin))
			r.Get("/admin/withdrawals", h.AdminWithdrawalsHandler)
			r.Post("/admin/withdrawals/{id}/decision", h.DecideWithdrawalHandler)
		})
	})

	return r
}
