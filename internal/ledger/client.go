package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Fi44er/tron_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const transferContract = "TransferContract"

type ClientConfig struct {
	BaseURL     string
	APIKey      string
	RPS         int
	TreasuryKey string
	Timeout     time.Duration
}

// Client talks to a TronGrid compatible HTTP API. All calls share one rate
// limiter so a full wallet sweep stays under the provider quota.
type Client struct {
	baseURL         string
	apiKey          string
	http            *http.Client
	limiter         *rate.Limiter
	treasuryKey     string
	treasuryAddress string
	logger          *utils.Logger
}

func NewClient(cfg ClientConfig, logger *utils.Logger) (*Client, error) {
	treasury, err := AddressFromPrivateKey(cfg.TreasuryKey)
	if err != nil {
		return nil, fmt.Errorf("treasury key: %w", err)
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		http:            &http.Client{Timeout: timeout},
		limiter:         rate.NewLimiter(rate.Limit(rps), rps),
		treasuryKey:     cfg.TreasuryKey,
		treasuryAddress: treasury,
		logger:          logger,
	}, nil
}

func (c *Client) TreasuryAddress() string {
	return c.treasuryAddress
}

// TreasuryKey is the hot wallet key used to sign withdrawals.
func (c *Client) TreasuryKey() string {
	return c.treasuryKey
}

func (c *Client) GenerateKey() (string, string, error) {
	return GenerateKey()
}

func (c *Client) IsValidAddress(address string) bool {
	return IsValidAddress(address)
}

type accountTransactionsResponse struct {
	Data []struct {
		TxID           string `json:"txID"`
		BlockNumber    int64  `json:"blockNumber"`
		BlockTimestamp int64  `json:"block_timestamp"`
		Ret            []struct {
			ContractRet string `json:"contractRet"`
		} `json:"ret"`
		RawData struct {
			Contract []struct {
				Type      string `json:"type"`
				Parameter struct {
					Value struct {
						Amount       int64  `json:"amount"`
						OwnerAddress string `json:"owner_address"`
						ToAddress    string `json:"to_address"`
					} `json:"value"`
				} `json:"parameter"`
			} `json:"contract"`
		} `json:"raw_data"`
	} `json:"data"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ListInboundTransfers returns the newest native transfers received by
// address. Token transfers and contract calls are dropped.
func (c *Client) ListInboundTransfers(ctx context.Context, address string, limit int) ([]Transfer, error) {
	head, err := c.HeadBlock(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("only_to", "true")
	q.Set("only_confirmed", "true")
	q.Set("limit", fmt.Sprint(limit))
	q.Set("order_by", "block_timestamp,desc")
	q.Set("visible", "true")

	var resp accountTransactionsResponse
	path := fmt.Sprintf("/v1/accounts/%s/transactions?%s", url.PathEscape(address), q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list transfers for %s: %w", address, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("failed to list transfers for %s: %s", address, resp.Error)
	}

	transfers := make([]Transfer, 0, len(resp.Data))
	for _, tx := range resp.Data {
		if len(tx.RawData.Contract) == 0 || tx.RawData.Contract[0].Type != transferContract {
			continue
		}
		value := tx.RawData.Contract[0].Parameter.Value

		success := len(tx.Ret) > 0 && tx.Ret[0].ContractRet == "SUCCESS"
		var confirmations int64
		if tx.BlockNumber > 0 && head > tx.BlockNumber {
			confirmations = head - tx.BlockNumber
		}

		transfers = append(transfers, Transfer{
			TxID:          tx.TxID,
			From:          normalizeAddress(value.OwnerAddress),
			To:            normalizeAddress(value.ToAddress),
			AmountSun:     value.Amount,
			BlockNumber:   tx.BlockNumber,
			Timestamp:     tx.BlockTimestamp,
			Confirmations: confirmations,
			Success:       success,
		})
	}
	return transfers, nil
}

// HeadBlock returns the number of the newest block.
func (c *Client) HeadBlock(ctx context.Context) (int64, error) {
	var resp struct {
		BlockHeader struct {
			RawData struct {
				Number int64 `json:"number"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := c.do(ctx, http.MethodPost, "/wallet/getnowblock", struct{}{}, &resp); err != nil {
		return 0, fmt.Errorf("failed to get head block: %w", err)
	}
	return resp.BlockHeader.RawData.Number, nil
}

// Prepare builds and signs a native transfer without broadcasting it. The
// returned TxID is final, so it can be stored before Broadcast.
func (c *Client) Prepare(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (*SignedTransfer, error) {
	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	if !IsValidAddress(to) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}
	sun := ToSun(amount)
	if sun <= 0 {
		return nil, fmt.Errorf("amount %s is below one sun", amount)
	}

	from := pubKeyToAddress(priv.PubKey())
	req := map[string]interface{}{
		"owner_address": from,
		"to_address":    to,
		"amount":        sun,
		"visible":       true,
	}

	var created struct {
		signedTx
		Error string `json:"Error"`
	}
	if err := c.do(ctx, http.MethodPost, "/wallet/createtransaction", req, &created); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if created.Error != "" {
		return nil, fmt.Errorf("failed to create transaction: %s", created.Error)
	}

	raw, err := hex.DecodeString(created.RawDataHex)
	if err != nil {
		return nil, fmt.Errorf("bad raw_data_hex: %w", err)
	}
	digest := sha256.Sum256(raw)
	if !strings.EqualFold(hex.EncodeToString(digest[:]), created.TxID) {
		return nil, ErrTxIDMismatch
	}

	sig := signDigest(priv, digest[:])

	payload := created.signedTx
	payload.Signature = []string{hex.EncodeToString(sig)}

	return &SignedTransfer{
		TxID:    created.TxID,
		From:    from,
		To:      to,
		Amount:  FromSun(sun),
		payload: payload,
	}, nil
}

// Broadcast submits a signed transfer. A node refusal wraps
// ErrBroadcastRejected; any other error leaves the outcome unknown.
func (c *Client) Broadcast(ctx context.Context, st *SignedTransfer) (string, error) {
	var resp struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/wallet/broadcasttransaction", st.payload, &resp); err != nil {
		return "", fmt.Errorf("failed to broadcast %s: %w", st.TxID, err)
	}
	if !resp.Result {
		return "", fmt.Errorf("%w: %s %s", ErrBroadcastRejected, resp.Code, decodeMessage(resp.Message))
	}

	c.logger.WithFields(logrus.Fields{
		"tx_id":  st.TxID,
		"to":     st.To,
		"amount": st.Amount.String(),
	}).Info("Transfer broadcast")
	return st.TxID, nil
}

// Send signs and broadcasts a transfer in one step.
func (c *Client) Send(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (string, error) {
	st, err := c.Prepare(ctx, privateKeyHex, to, amount)
	if err != nil {
		return "", err
	}
	return c.Broadcast(ctx, st)
}

// TransactionState reports whether txID made it into a block and how it ended.
func (c *Client) TransactionState(ctx context.Context, txID string) (TxState, error) {
	var resp struct {
		ID          string `json:"id"`
		BlockNumber int64  `json:"blockNumber"`
		Result      string `json:"result"`
		Receipt     struct {
			Result string `json:"result"`
		} `json:"receipt"`
	}
	if err := c.do(ctx, http.MethodPost, "/wallet/gettransactioninfobyid", map[string]string{"value": txID}, &resp); err != nil {
		return TxUnknown, fmt.Errorf("failed to get transaction %s: %w", txID, err)
	}

	switch {
	case resp.ID == "" || resp.BlockNumber == 0:
		return TxUnknown, nil
	case resp.Result == "FAILED":
		return TxFailed, nil
	case resp.Receipt.Result != "" && resp.Receipt.Result != "SUCCESS":
		return TxFailed, nil
	default:
		return TxConfirmed, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// normalizeAddress accepts either base58 or "41..." hex.
func normalizeAddress(a string) string {
	if strings.HasPrefix(a, "41") && len(a) == 42 {
		if b58, err := HexToAddress(a); err == nil {
			return b58
		}
	}
	return a
}

// Node error messages are sometimes hex encoded.
func decodeMessage(m string) string {
	if raw, err := hex.DecodeString(m); err == nil && len(raw) > 0 {
		return string(raw)
	}
	return m
}
