package bot

import (
	"context"

	"github.com/Fi44er/tron_bot/config"
	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

const (
	btnDeposit  = "💰 Пополнить"
	btnBalance  = "📊 Баланс"
	btnWithdraw = "💸 Вывести"
	btnHistory  = "🧾 История"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type UserService interface {
	RegisterUser(ctx context.Context, telegramID int64, username, firstName, sponsorCode string) (*models.User, bool, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	EnsureWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, toAddress string) (*models.Withdrawal, error)
	Fee(amount decimal.Decimal) decimal.Decimal
	History(ctx context.Context, userID int64) ([]models.Transaction, error)
}

type Bot struct {
	API     API
	service UserService
	logger  *utils.Logger
	config  *config.Config
	states  *stateStore
}

func NewBot(api API, service UserService, logger *utils.Logger, config *config.Config) *Bot {
	return &Bot{
		API:     api,
		service: service,
		logger:  logger,
		config:  config,
		states:  newStateStore(),
	}
}

// Start consumes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("Starting bot...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			b.logger.Info("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.logger.Debugf("Received update: %d", update.UpdateID)
			b.HandleUpdate(ctx, update)
		}
	}
}

func GetMainMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnDeposit),
			tgbotapi.NewKeyboardButton(btnBalance),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnWithdraw),
			tgbotapi.NewKeyboardButton(btnHistory),
		),
	)
}

// sendMessage - унифицированная функция для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string, replyMarkup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}
	if _, err := b.API.Send(msg); err != nil {
		b.logger.Errorf("Failed to send message: %v", err)
	}
}
