package configs

import (
	"errors"
	"time"

	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	JWT struct {
		SECRET string `mapstructure:"secret"`
	} `mapstructure:"jwt"`
	Referral struct {
		SignupBonus       string `mapstructure:"signup-bonus"`
		TopupBonusPercent string `mapstructure:"topup-bonus-percent"`
		MaxTeamTreeDepth  int    `mapstructure:"max-team-tree-depth"`
	} `mapstructure:"referral"`
	Wallet struct {
		MinWithdrawal string `mapstructure:"min-withdrawal"`
	} `mapstructure:"wallet"`
	Gateway struct {
		BaseURL    string        `mapstructure:"base-url"`
		APIKey     string        `mapstructure:"api-key"`
		APISecret  string        `mapstructure:"api-secret"`
		MerchantID string        `mapstructure:"merchant-id"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"gateway"`
}

var AppConfig Config

func LoadConfig() {
	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	viper.SetDefault("referral.signup-bonus", "100.00")
	viper.SetDefault("referral.topup-bonus-percent", "10")
	viper.SetDefault("referral.max-team-tree-depth", 10)
	viper.SetDefault("wallet.min-withdrawal", "500.00")
	viper.SetDefault("gateway.timeout", 15*time.Second)

	var fileLookupError viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil {
		if errors.As(err, &fileLookupError) {
			logger.Log.Fatal("config file not found", zap.Error(err))
		}
		logger.Log.Fatal("failed to read config", zap.Error(err))
	}

	viper.Unmarshal(&AppConfig)
}
