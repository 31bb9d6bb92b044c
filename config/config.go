package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN" validate:"required"`
	AdminChatID      int64  `mapstructure:"ADMIN_CHAT_ID" validate:"required"`
	DB_URL           string `mapstructure:"DB_URL" validate:"required"`
	RedisURL         string `mapstructure:"REDIS_URL"`

	TronAPIURL      string `mapstructure:"TRON_API_URL" validate:"required,url"`
	TronAPIKey      string `mapstructure:"TRON_API_KEY"`
	TronExplorerURL string `mapstructure:"TRON_EXPLORER_URL" validate:"required,url"`
	TronRPS         int    `mapstructure:"TRON_RPS" validate:"gt=0"`
	TronPrivateKey  string `mapstructure:"TRON_PRIVATE_KEY" validate:"required,hexadecimal,len=64"`
	EncryptionKey   string `mapstructure:"ENCRYPTION_KEY" validate:"required,base64"`

	ConfirmationThreshold int64 `mapstructure:"CONFIRMATION_THRESHOLD" validate:"gte=1"`

	DepositToMainWalletRateRaw string `mapstructure:"DEPOSIT_TO_MAIN_WALLET_RATE" validate:"numeric"`
	WithdrawalFeeRateRaw       string `mapstructure:"WITHDRAWAL_FEE_RATE" validate:"numeric"`
	MinWithdrawalAmountRaw     string `mapstructure:"MIN_WITHDRAWAL_AMOUNT" validate:"numeric"`
	MaxWithdrawalAmountRaw     string `mapstructure:"MAX_WITHDRAWAL_AMOUNT" validate:"numeric"`
	DailyWithdrawalLimitRaw    string `mapstructure:"DAILY_WITHDRAWAL_LIMIT" validate:"numeric"`

	DepositToMainWalletRate decimal.Decimal `mapstructure:"-"`
	WithdrawalFeeRate       decimal.Decimal `mapstructure:"-"`
	MinWithdrawalAmount     decimal.Decimal `mapstructure:"-"`
	MaxWithdrawalAmount     decimal.Decimal `mapstructure:"-"`
	DailyWithdrawalLimit    decimal.Decimal `mapstructure:"-"`

	DepositCheckInterval      int           `mapstructure:"DEPOSIT_CHECK_INTERVAL" validate:"gt=0"`
	WithdrawalProcessInterval int           `mapstructure:"WITHDRAWAL_PROCESS_INTERVAL" validate:"gt=0"`
	RunTimeout                time.Duration `mapstructure:"RUN_TIMEOUT" validate:"gt=0"`
	SubmitExpiry              time.Duration `mapstructure:"WITHDRAWAL_SUBMIT_EXPIRY" validate:"gt=0"`
	WalletBatchSize           int           `mapstructure:"WALLET_BATCH_SIZE" validate:"gt=0"`
	WalletBatchPause          time.Duration `mapstructure:"WALLET_BATCH_PAUSE" validate:"gte=0"`
	TransferPageSize          int           `mapstructure:"TRANSFER_PAGE_SIZE" validate:"gt=0,lte=200"`

	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
}

var defaults = map[string]any{
	"REDIS_URL":                   "",
	"TRON_API_URL":                "https://api.trongrid.io",
	"TRON_API_KEY":                "",
	"TRON_EXPLORER_URL":           "https://tronscan.org",
	"TRON_RPS":                    10,
	"CONFIRMATION_THRESHOLD":      19,
	"DEPOSIT_TO_MAIN_WALLET_RATE": "0.9",
	"WITHDRAWAL_FEE_RATE":         "0.01",
	"MIN_WITHDRAWAL_AMOUNT":       "1",
	"MAX_WITHDRAWAL_AMOUNT":       "1000",
	"DAILY_WITHDRAWAL_LIMIT":      "1000",
	"DEPOSIT_CHECK_INTERVAL":      5,
	"WITHDRAWAL_PROCESS_INTERVAL": 5,
	"RUN_TIMEOUT":                 "4m",
	"WITHDRAWAL_SUBMIT_EXPIRY":    "2m",
	"WALLET_BATCH_SIZE":           10,
	"WALLET_BATCH_PAUSE":          "1200ms",
	"TRANSFER_PAGE_SIZE":          50,
	"METRICS_ADDR":                ":9090",
	"LOG_LEVEL":                   "info",
}

var required = []string{
	"TELEGRAM_BOT_TOKEN",
	"ADMIN_CHAT_ID",
	"DB_URL",
	"TRON_PRIVATE_KEY",
	"ENCRYPTION_KEY",
}

// LoadConfig reads the env file at path (if it exists) and the process
// environment. Environment variables win over the file.
func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("ошибка получения абсолютного пути: %w", err)
	}

	if err := godotenv.Load(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range required {
		if err := v.BindEnv(key); err != nil {
			return config, fmt.Errorf("ошибка привязки %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("ошибка преобразования конфига: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks field constraints and fills the decimal fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var err error
	parse := func(name, raw string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var d decimal.Decimal
		d, err = decimal.NewFromString(raw)
		if err != nil {
			err = fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		return d
	}

	c.DepositToMainWalletRate = parse("DEPOSIT_TO_MAIN_WALLET_RATE", c.DepositToMainWalletRateRaw)
	c.WithdrawalFeeRate = parse("WITHDRAWAL_FEE_RATE", c.WithdrawalFeeRateRaw)
	c.MinWithdrawalAmount = parse("MIN_WITHDRAWAL_AMOUNT", c.MinWithdrawalAmountRaw)
	c.MaxWithdrawalAmount = parse("MAX_WITHDRAWAL_AMOUNT", c.MaxWithdrawalAmountRaw)
	c.DailyWithdrawalLimit = parse("DAILY_WITHDRAWAL_LIMIT", c.DailyWithdrawalLimitRaw)
	if err != nil {
		return err
	}

	one := decimal.NewFromInt(1)
	switch {
	case c.DepositToMainWalletRate.IsNegative() || c.DepositToMainWalletRate.GreaterThan(one):
		return fmt.Errorf("DEPOSIT_TO_MAIN_WALLET_RATE must be within [0, 1]")
	case c.WithdrawalFeeRate.IsNegative() || !c.WithdrawalFeeRate.LessThan(one):
		return fmt.Errorf("WITHDRAWAL_FEE_RATE must be within [0, 1)")
	case !c.MinWithdrawalAmount.IsPositive():
		return fmt.Errorf("MIN_WITHDRAWAL_AMOUNT must be positive")
	case c.MaxWithdrawalAmount.LessThan(c.MinWithdrawalAmount):
		return fmt.Errorf("MAX_WITHDRAWAL_AMOUNT must not be below MIN_WITHDRAWAL_AMOUNT")
	case c.DailyWithdrawalLimit.LessThan(c.MinWithdrawalAmount):
		return fmt.Errorf("DAILY_WITHDRAWAL_LIMIT must not be below MIN_WITHDRAWAL_AMOUNT")
	}
	return nil
}

func (c *Config) DepositInterval() time.Duration {
	return time.Duration(c.DepositCheckInterval) * time.Minute
}

func (c *Config) WithdrawalInterval() time.Duration {
	return time.Duration(c.WithdrawalProcessInterval) * time.Minute
}
