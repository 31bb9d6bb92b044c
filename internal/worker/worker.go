// Package worker holds the periodic reconcilers that move value between the
// chain and the account store.
package worker

import (
	"context"
	"fmt"

	"github.com/Fi44er/tron_bot/internal/metrics"
	"github.com/Fi44er/tron_bot/internal/notify"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/sirupsen/logrus"
)

// KeyOpener decrypts a stored deposit wallet key.
type KeyOpener interface {
	Decrypt(sealed string) (string, error)
}

// isolate runs fn and turns a panic into an error, so one bad wallet or
// withdrawal never stops the rest of the run.
func isolate(worker string, logger *logrus.Entry, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			metrics.RecordItemError(worker)
			logger.WithError(err).Error("item failed")
		}
	}()
	return fn()
}

// tell sends a best effort notification.
func tell(ctx context.Context, n notify.Notifier, logger *utils.Logger, chatID int64, text string) {
	if err := n.Notify(ctx, chatID, text); err != nil {
		logger.WithError(err).WithField("chat_id", chatID).Warn("notification not delivered")
	}
}
