package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TRXPrecision is the number of fractional digits stored for every amount.
const TRXPrecision = 6

var printer = message.NewPrinter(language.English)

func RoundTRX(d decimal.Decimal) decimal.Decimal {
	return d.Round(TRXPrecision)
}

// FormatTRX renders an amount for chat messages, e.g. "1,234.56 TRX".
func FormatTRX(d decimal.Decimal) string {
	return printer.Sprintf("%.2f TRX", d.InexactFloat64())
}

func TxLink(explorerURL, txHash string) string {
	return fmt.Sprintf("%s/#/transaction/%s", strings.TrimRight(explorerURL, "/"), txHash)
}

// ShortHash keeps the head and tail of a long hash.
func ShortHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:8] + "…" + h[len(h)-8:]
}
