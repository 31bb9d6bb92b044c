package worker

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/Fi44er/tron_bot/internal/ledger"
	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/internal/notify"
	"github.com/Fi44er/tron_bot/internal/repository"
	"github.com/Fi44er/tron_bot/internal/storetest"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	treasuryAddress = "TTreasuryxxxxxxxxxxxxxxxxxxxxxxxxx"
	treasuryKey     = "aa00000000000000000000000000000000000000000000000000000000000001"
	walletAddress   = "TDepositxxxxxxxxxxxxxxxxxxxxxxxxxx"
	walletKey       = "bb00000000000000000000000000000000000000000000000000000000000002"
	payoutAddress   = "TPayoutxxxxxxxxxxxxxxxxxxxxxxxxxxx"
	adminChatID     = int64(777)
	userChatID      = int64(1001)
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) ListInboundTransfers(_ context.Context, address string, limit int) ([]ledger.Transfer, error) {
	args := m.Called(address, limit)
	transfers, _ := args.Get(0).([]ledger.Transfer)
	return transfers, args.Error(1)
}

func (m *mockLedger) Send(_ context.Context, key, to string, amount decimal.Decimal) (string, error) {
	args := m.Called(key, to, amount)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) TreasuryAddress() string {
	return treasuryAddress
}

func (m *mockLedger) Prepare(_ context.Context, key, to string, amount decimal.Decimal) (*ledger.SignedTransfer, error) {
	args := m.Called(key, to, amount)
	st, _ := args.Get(0).(*ledger.SignedTransfer)
	return st, args.Error(1)
}

func (m *mockLedger) Broadcast(_ context.Context, st *ledger.SignedTransfer) (string, error) {
	args := m.Called(st.TxID)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) TransactionState(_ context.Context, txID string) (ledger.TxState, error) {
	args := m.Called(txID)
	return args.Get(0).(ledger.TxState), args.Error(1)
}

func amountOf(s string) interface{} {
	want := decimal.RequireFromString(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

type sentMessage struct {
	chatID int64
	text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{chatID: chatID, text: text})
	return n.err
}

func (n *recordingNotifier) to(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

type env struct {
	db       *gorm.DB
	repo     *repository.Repository
	ledger   *mockLedger
	notifier *recordingNotifier
	cipher   *utils.KeyCipher
	user     *models.User
	wallet   *models.Wallet
	messages notify.Messages
}

func newEnv(t *testing.T, balance string) *env {
	t.Helper()

	cipher, err := utils.NewKeyCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 32))))
	require.NoError(t, err)
	sealed, err := cipher.Encrypt(walletKey)
	require.NoError(t, err)

	gdb := storetest.Open(t)
	user := storetest.SeedUser(t, gdb, userChatID, balance)
	wallet := storetest.SeedWallet(t, gdb, user.ID, walletAddress, sealed)

	return &env{
		db:       gdb,
		repo:     repository.NewRepository(gdb, utils.NewNopLogger()),
		ledger:   new(mockLedger),
		notifier: &recordingNotifier{},
		cipher:   cipher,
		user:     user,
		wallet:   wallet,
		messages: notify.Messages{ExplorerURL: "https://tronscan.org"},
	}
}

func (e *env) reloadUser(t *testing.T) *models.User {
	return storetest.ReloadUser(t, e.db, e.user.ID)
}
