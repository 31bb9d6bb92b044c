package notify

import (
	"context"
	"errors"

	"github.com/Fi44er/tron_bot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrNoRecipient = errors.New("no recipient chat id")

// Notifier delivers a text message to a chat. Delivery is best effort:
// callers log failures and never roll back ledger state because of them.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	api    Sender
	logger *utils.Logger
}

func NewTelegramNotifier(api Sender, logger *utils.Logger) *TelegramNotifier {
	return &TelegramNotifier{api: api, logger: logger}
}

func (n *TelegramNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warnf("NOTIFY: failed to send message to %d: %v", chatID, err)
		return err
	}
	n.logger.Debugf("NOTIFY: message sent to %d", chatID)
	return nil
}
