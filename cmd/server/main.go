package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/basharatali122/hamza-website-backend/configs"
	"github.com/basharatali122/hamza-website-backend/internal/auth"
	"github.com/basharatali122/hamza-website-backend/internal/bonus"
	"github.com/basharatali122/hamza-website-backend/internal/checkout"
	"github.com/basharatali122/hamza-website-backend/internal/gateway"
	"github.com/basharatali122/hamza-website-backend/internal/handlers"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/referral"
	"github.com/basharatali122/hamza-website-backend/internal/routes"
	"github.com/basharatali122/hamza-website-backend/internal/seed"
	"github.com/basharatali122/hamza-website-backend/internal/store"
	"github.com/basharatali122/hamza-website-backend/internal/team"
	"github.com/basharatali122/hamza-website-backend/internal/wallet"
	"github.com/basharatali122/hamza-website-backend/internal/withdrawal"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	configs.LoadConfig()
	store.NewDB()
	store.DBMigrate()
	seed.Run()

	cfg := configs.AppConfig
	db := store.DB

	ledger := wallet.NewLedger(db)
	graph := referral.NewGraph(db)
	teams := team.NewAggregator(db, graph, cfg.Referral.MaxTeamTreeDepth)
	bonuses := bonus.NewEngine(db, ledger, teams,
		decimal.RequireFromString(cfg.Referral.SignupBonus),
		decimal.RequireFromString(cfg.Referral.TopupBonusPercent))
	authSvc := auth.NewService(db, graph, bonuses, cfg.JWT.SECRET)
	gw := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     cfg.Gateway.APIKey,
		APISecret:  cfg.Gateway.APISecret,
		MerchantID: cfg.Gateway.MerchantID,
		Timeout:    cfg.Gateway.Timeout,
	})
	orchestrator := checkout.NewOrchestrator(db, ledger, gw)
	withdrawals := withdrawal.NewWorkflow(db, ledger,
		decimal.RequireFromString(cfg.Wallet.MinWithdrawal))

	h := handlers.New(db, authSvc, ledger, bonuses, graph, teams, orchestrator, withdrawals)
	router := routes.NewRoutes(h)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		logger.Log.Error("db close skipped, reason:", zap.Error(err))
	} else {
		sqlDB.Close()
		logger.Log.Info("db closed")
	}

	logger.Log.Info("server stopped")
}
