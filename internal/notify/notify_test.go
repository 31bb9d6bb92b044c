package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/Fi44er/tron_bot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func TestTelegramNotifier_Notify(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.Text == "hello" && msg.ParseMode == tgbotapi.ModeMarkdown
	})).Return(nil).Once()

	n := NewTelegramNotifier(sender, utils.NewNopLogger())
	require.NoError(t, n.Notify(context.Background(), 42, "hello"))
	sender.AssertExpectations(t)
}

func TestTelegramNotifier_Errors(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(errors.New("blocked by user")).Once()
	n := NewTelegramNotifier(sender, utils.NewNopLogger())

	assert.ErrorIs(t, n.Notify(context.Background(), 0, "x"), ErrNoRecipient)
	assert.EqualError(t, n.Notify(context.Background(), 7, "x"), "blocked by user")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, 7, "x"), context.Canceled)

	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestMessages(t *testing.T) {
	m := Messages{ExplorerURL: "https://tronscan.org"}
	hash := "0123456789abcdef0123456789abcdef"

	text := m.DepositCredited(decimal.NewFromInt(100), hash)
	assert.Contains(t, text, "100.00 TRX")
	assert.Contains(t, text, "https://tronscan.org/#/transaction/"+hash)

	text = m.WithdrawalFailed(decimal.NewFromInt(5), "broadcast rejected")
	assert.Contains(t, text, "broadcast rejected")

	text = m.ForwardFailed(3, decimal.RequireFromString("90"), "TAddr", errors.New("bandwidth"))
	assert.Contains(t, text, "bandwidth")
	assert.Contains(t, text, "90.00 TRX")
}

func TestMessages_EscapeNodeErrors(t *testing.T) {
	m := Messages{ExplorerURL: "https://tronscan.org"}

	text := m.WithdrawalFailed(decimal.NewFromInt(5), "broadcast rejected: BANDWITH_ERROR")
	assert.Contains(t, text, `BANDWITH\_ERROR`)
	assert.NotContains(t, text, "BANDWITH_ERROR")

	text = m.ForwardFailed(3, decimal.NewFromInt(90), "TAddr", errors.New("bad raw_data_hex: *odd [x]"))
	assert.Contains(t, text, `bad raw\_data\_hex: \*odd \[x]`)
}
