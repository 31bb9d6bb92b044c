package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"

	"github.com/shopspring/decimal"
)

// SunPerTRX is the number of base units in one TRX.
const SunPerTRX = 1_000_000

var (
	ErrBroadcastRejected = errors.New("broadcast rejected")
	ErrTxIDMismatch      = errors.New("transaction id does not match raw data")
	ErrRateLimited       = errors.New("ledger api rate limited")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidKey        = errors.New("invalid private key")
)

// Transfer is one inbound native TRX transfer as seen by the ledger API.
type Transfer struct {
	TxID          string
	From          string
	To            string
	AmountSun     int64
	BlockNumber   int64
	Timestamp     int64
	Confirmations int64
	Success       bool
}

func (t Transfer) Amount() decimal.Decimal {
	return FromSun(t.AmountSun)
}

// SignedTransfer is a signed transaction ready for broadcast.
type SignedTransfer struct {
	TxID   string
	From   string
	To     string
	Amount decimal.Decimal

	payload signedTx
}

type TxState int

const (
	TxUnknown TxState = iota
	TxConfirmed
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func FromSun(sun int64) decimal.Decimal {
	return decimal.New(sun, -6)
}

// ToSun converts a TRX amount, dropping anything below one sun.
func ToSun(amount decimal.Decimal) int64 {
	return amount.Shift(6).Truncate(0).IntPart()
}

type signedTx struct {
	Visible    bool            `json:"visible"`
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
}

// OutcomeUnknown reports whether a failed call may still have reached the
// node, so its effect has to be read back from chain state.
func OutcomeUnknown(err error) bool {
	if err == nil || errors.Is(err, ErrBroadcastRejected) {
		return false
	}
	var (
		netErr net.Error
		urlErr *url.Error
	)
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) ||
		errors.As(err, &urlErr)
}
