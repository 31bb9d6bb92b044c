package notify

import (
	"fmt"

	"github.com/Fi44er/tron_bot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// escape makes free text (node error codes like BANDWITH_ERROR) safe inside
// a Markdown message.
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// Messages renders every chat text the reconcilers send.
type Messages struct {
	ExplorerURL string
}

func (m Messages) link(txHash string) string {
	return fmt.Sprintf("[%s](%s)", utils.ShortHash(txHash), utils.TxLink(m.ExplorerURL, txHash))
}

func (m Messages) DepositCredited(amount decimal.Decimal, txHash string) string {
	return fmt.Sprintf(
		"✅ *Пополнение зачислено*\n\n"+
			"💰 *Сумма:* `%s`\n"+
			"🔗 *TX:* %s",
		utils.FormatTRX(amount), m.link(txHash))
}

func (m Messages) WithdrawalCompleted(amount, fee decimal.Decimal, toAddress, txHash string) string {
	return fmt.Sprintf(
		"✅ *Вывод выполнен*\n\n"+
			"💰 *Сумма:* `%s`\n"+
			"🧾 *Комиссия:* `%s`\n"+
			"📬 *Адрес:* `%s`\n"+
			"🔗 *TX:* %s",
		utils.FormatTRX(amount), utils.FormatTRX(fee), toAddress, m.link(txHash))
}

func (m Messages) WithdrawalFailed(amount decimal.Decimal, reason string) string {
	return fmt.Sprintf(
		"❌ *Вывод не выполнен*\n\n"+
			"💰 *Сумма:* `%s`\n"+
			"Причина: %s\n\n"+
			"Средства вместе с комиссией возвращены на баланс.",
		utils.FormatTRX(amount), escape(reason))
}

func (m Messages) WithdrawalInsufficient(amount decimal.Decimal) string {
	return fmt.Sprintf(
		"❌ *Вывод отклонён*\n\n"+
			"Недостаточно средств для вывода `%s`. Зарезервированная сумма возвращена на баланс.",
		utils.FormatTRX(amount))
}

func (m Messages) ForwardSucceeded(userID int64, amount decimal.Decimal, fromAddress, txHash string) string {
	return fmt.Sprintf(
		"🏦 *Перевод в основной кошелёк*\n\n"+
			"👤 *Пользователь:* `%d`\n"+
			"💰 *Сумма:* `%s`\n"+
			"📤 *С адреса:* `%s`\n"+
			"🔗 *TX:* %s",
		userID, utils.FormatTRX(amount), fromAddress, m.link(txHash))
}

func (m Messages) ForwardFailed(userID int64, amount decimal.Decimal, fromAddress string, err error) string {
	return fmt.Sprintf(
		"⚠️ *Не удалось перевести депозит в основной кошелёк*\n\n"+
			"👤 *Пользователь:* `%d`\n"+
			"💰 *Сумма:* `%s`\n"+
			"📤 *С адреса:* `%s`\n"+
			"Ошибка: %v",
		userID, utils.FormatTRX(amount), fromAddress, escape(fmt.Sprint(err)))
}
