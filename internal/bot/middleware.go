package bot

import (
	"context"

	"github.com/Fi44er/tron_bot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const errorText = "Произошла ошибка. Попробуйте позже."

// withUserCheck registers unknown senders before running handler. A /start
// argument is treated as the sponsor's referral code.
func (b *Bot) withUserCheck(handler func(context.Context, tgbotapi.Update, *models.User)) func(context.Context, tgbotapi.Update) {
	return func(ctx context.Context, update tgbotapi.Update) {
		msg := update.Message
		from := msg.From

		var sponsorCode string
		if msg.IsCommand() && msg.Command() == "start" {
			sponsorCode = msg.CommandArguments()
		}

		user, created, err := b.service.RegisterUser(ctx, from.ID, from.UserName, from.FirstName, sponsorCode)
		if err != nil {
			b.logger.Errorf("Failed to register user %d: %v", from.ID, err)
			b.sendMessage(msg.Chat.ID, errorText, nil)
			return
		}

		if created {
			if _, err := b.service.EnsureWallet(ctx, user.ID); err != nil {
				b.logger.Errorf("Failed to issue wallet for user %d: %v", from.ID, err)
			}
		}

		handler(ctx, update, user)
	}
}
