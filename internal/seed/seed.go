package seed

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/models"
	"github.com/basharatali122/hamza-website-backend/internal/store"
)

const (
	seedPassword = "password123"
	rootEmail    = "root@shop.local"
)

// Dev fixture: a three-level referral chain (root -> user2 -> user3)
// plus funded wallets and a few products, so the team and checkout
// endpoints have data to work with out of the box.
var testUsers = []struct {
	Name     string
	Username string
	Email    string
}{
	{"Root Referrer", "root", rootEmail},
	{"Test User 2", "user2", "user2@test.com"},
	{"Test User 3", "user3", "user3@test.com"},
}

var testProducts = []struct {
	Name  string
	Price string
	Stock int
}{
	{"Starter Pack", "500.00", 100},
	{"Growth Pack", "1500.00", 50},
	{"Premium Pack", "5000.00", 20},
}

func Run() {
	db := store.DB
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", rootEmail).Count(&count).Error; err != nil {
		logger.Log.Fatal("seed check failed", zap.Error(err))
	}
	if count > 0 {
		logger.Log.Info("seed already applied, skipping")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Fatal("failed to hash seed password", zap.Error(err))
	}
	hashed := string(hash)

	err = db.Transaction(func(tx *gorm.DB) error {
		initial := decimal.RequireFromString("10000.00")

		var prev *models.User
		for i, u := range testUsers {
			user := models.User{
				Name:          u.Name,
				Username:      u.Username,
				Email:         u.Email,
				Password:      hashed,
				Role:          models.RoleCustomer,
				ReferralCode:  "SEED000" + string(rune('1'+i)),
				ReferralLevel: 1,
			}
			if prev != nil {
				user.ReferredBy = &prev.ID
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}

			w := models.Wallet{
				UserID:   user.ID,
				Balance:  initial,
				Currency: "PKR",
				Status:   models.WalletActive,
			}
			if err := tx.Create(&w).Error; err != nil {
				return err
			}

			if prev != nil {
				event := models.ReferralEvent{
					ReferrerID: prev.ID,
					RefereeID:  user.ID,
					EventType:  models.ReferralEventSignup,
					Tier:       1,
				}
				if err := tx.Create(&event).Error; err != nil {
					return err
				}
			}
			prev = &user
		}

		for _, p := range testProducts {
			product := models.Product{
				Name:  p.Name,
				Price: decimal.RequireFromString(p.Price),
				Stock: p.Stock,
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Log.Fatal("seed failed", zap.Error(err))
	}
	logger.Log.Info("seeded referral chain and products", zap.String("password", seedPassword))
}
