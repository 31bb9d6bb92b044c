package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.withUserCheck(func(ctx context.Context, update tgbotapi.Update, user *models.User) {
		msg := update.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		b.logger.Infof("Processing message from user %d: %s", user.TelegramID, text)

		if msg.IsCommand() {
			b.states.set(user.TelegramID, stateDefault)
			switch msg.Command() {
			case "start":
				b.handleStart(ctx, chatID, user)
			case "deposit":
				b.handleDeposit(ctx, chatID, user)
			case "balance":
				b.handleBalance(chatID, user)
			case "withdraw":
				b.handleWithdraw(ctx, chatID, user, msg.CommandArguments())
			case "history":
				b.handleHistory(ctx, chatID, user)
			default:
				b.sendMessage(chatID, "Неизвестная команда. Используйте меню.", GetMainMenu())
			}
			return
		}

		if b.states.get(user.TelegramID) == stateAwaitingWithdraw {
			b.states.set(user.TelegramID, stateDefault)
			b.handleWithdraw(ctx, chatID, user, text)
			return
		}

		switch text {
		case btnDeposit:
			b.handleDeposit(ctx, chatID, user)
		case btnBalance:
			b.handleBalance(chatID, user)
		case btnWithdraw:
			b.states.set(user.TelegramID, stateAwaitingWithdraw)
			b.sendMessage(chatID, b.withdrawPrompt(user), tgbotapi.NewRemoveKeyboard(true))
		case btnHistory:
			b.handleHistory(ctx, chatID, user)
		default:
			b.sendMessage(chatID, "Неизвестная команда. Используйте меню.", GetMainMenu())
		}
	})(ctx, update)
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, user *models.User) {
	welcomeText := fmt.Sprintf(
		"Добро пожаловать! 👋\n\n"+
			"Пополняйте баланс в TRX и выводите средства на любой TRON-адрес.\n\n"+
			"🎁 Ваш реферальный код: `%s`",
		user.ReferralCode,
	)
	b.sendMessage(chatID, welcomeText, GetMainMenu())
}

func (b *Bot) handleDeposit(ctx context.Context, chatID int64, user *models.User) {
	wallet, err := b.service.EnsureWallet(ctx, user.ID)
	if err != nil {
		b.logger.Errorf("Failed to get deposit wallet for user %d: %v", user.TelegramID, err)
		b.sendMessage(chatID, "Не удалось получить адрес. Попробуйте позже.", GetMainMenu())
		return
	}

	msgText := fmt.Sprintf(
		"Ваш адрес для пополнения:\n\n`%s`\n\n"+
			"Любое поступление TRX на него будет автоматически зачислено на ваш баланс после %d подтверждений в сети.",
		wallet.Address, b.config.ConfirmationThreshold,
	)
	b.sendMessage(chatID, msgText, GetMainMenu())
}

func (b *Bot) handleBalance(chatID int64, user *models.User) {
	msgText := fmt.Sprintf(
		"💰 *Баланс:* `%s`\n\n"+
			"📥 Всего пополнено: `%s`\n"+
			"📤 Всего выведено: `%s`",
		utils.FormatTRX(user.AccountBalance),
		utils.FormatTRX(user.TotalDeposited),
		utils.FormatTRX(user.TotalWithdrawn),
	)
	b.sendMessage(chatID, msgText, GetMainMenu())
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, user *models.User) {
	rows, err := b.service.History(ctx, user.ID)
	if err != nil {
		b.logger.Errorf("Failed to load history for user %d: %v", user.TelegramID, err)
		b.sendMessage(chatID, errorText, GetMainMenu())
		return
	}
	if len(rows) == 0 {
		b.sendMessage(chatID, "История операций пуста.", GetMainMenu())
		return
	}

	var sb strings.Builder
	sb.WriteString("🧾 *Последние операции:*\n")
	for _, row := range rows {
		fmt.Fprintf(&sb, "\n%s %s `%s` %s",
			row.CreatedAt.UTC().Format("02.01.2006 15:04"),
			typeLabel(row.Type),
			utils.FormatTRX(row.AmountTRX),
			statusLabel(row.Status),
		)
	}
	b.sendMessage(chatID, sb.String(), GetMainMenu())
}

func typeLabel(t models.TransactionType) string {
	switch t {
	case models.TransactionDeposit:
		return "📥 Пополнение"
	case models.TransactionWithdrawal:
		return "📤 Вывод"
	case models.TransactionReferralCommission:
		return "🎁 Реферальные"
	case models.TransactionFee:
		return "🧾 Комиссия"
	default:
		return "•"
	}
}

func statusLabel(s models.TransactionStatus) string {
	switch s {
	case models.TransactionCompleted:
		return "✅"
	case models.TransactionFailed:
		return "❌"
	default:
		return "⏳"
	}
}
