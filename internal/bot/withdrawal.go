package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/internal/service"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/shopspring/decimal"
)

func (b *Bot) withdrawPrompt(user *models.User) string {
	return fmt.Sprintf(
		"💰 Ваш баланс: `%s`\n\n"+
			"Отправьте сумму и адрес через пробел, например:\n`%s TXYZ...`\n\n"+
			"Лимиты: от `%s` до `%s`, не более `%s` в сутки. Комиссия %s%%.",
		utils.FormatTRX(user.AccountBalance),
		b.config.MinWithdrawalAmount,
		utils.FormatTRX(b.config.MinWithdrawalAmount),
		utils.FormatTRX(b.config.MaxWithdrawalAmount),
		utils.FormatTRX(b.config.DailyWithdrawalLimit),
		b.config.WithdrawalFeeRate.Shift(2),
	)
}

// handleWithdraw parses "<amount> <address>" and files a withdrawal request.
func (b *Bot) handleWithdraw(ctx context.Context, chatID int64, user *models.User, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.sendMessage(chatID, b.withdrawPrompt(user), GetMainMenu())
		return
	}

	amount, err := decimal.NewFromString(strings.Replace(fields[0], ",", ".", -1))
	if err != nil || !amount.IsPositive() {
		b.sendMessage(chatID, "❌ Неверная сумма. Введите положительное число.", GetMainMenu())
		return
	}

	w, err := b.service.RequestWithdrawal(ctx, user.ID, amount, fields[1])
	if err != nil {
		b.sendMessage(chatID, b.withdrawError(user, amount, err), GetMainMenu())
		return
	}

	msg := fmt.Sprintf(
		"✅ *Заявка на вывод #%d создана*\n\n"+
			"💰 *Сумма:* `%s`\n"+
			"🧾 *Комиссия:* `%s`\n"+
			"📬 *Адрес:* `%s`\n\n"+
			"Перевод будет отправлен в ближайшее время.",
		w.ID, utils.FormatTRX(w.AmountTRX), utils.FormatTRX(w.FeeTRX), w.ToAddress,
	)
	b.sendMessage(chatID, msg, GetMainMenu())
}

func (b *Bot) withdrawError(user *models.User, amount decimal.Decimal, err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidAddress):
		return "❌ Неверный TRON-адрес."
	case errors.Is(err, service.ErrAmountOutOfBounds):
		return fmt.Sprintf("❌ Сумма должна быть от `%s` до `%s`.",
			utils.FormatTRX(b.config.MinWithdrawalAmount), utils.FormatTRX(b.config.MaxWithdrawalAmount))
	case errors.Is(err, service.ErrDailyLimitExceeded):
		return fmt.Sprintf("❌ Превышен дневной лимит вывода `%s`.", utils.FormatTRX(b.config.DailyWithdrawalLimit))
	case errors.Is(err, service.ErrInsufficientBalance):
		need := amount.Add(b.service.Fee(amount))
		return fmt.Sprintf(
			"❌ Недостаточно средств.\n\nНужно `%s` (сумма + комиссия), доступно `%s`.",
			utils.FormatTRX(need), utils.FormatTRX(user.AccountBalance))
	default:
		b.logger.Errorf("Withdrawal request for user %d failed: %v", user.TelegramID, err)
		return errorText
	}
}
