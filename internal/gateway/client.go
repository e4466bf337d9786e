// Package gateway talks to the external Zindigi payment API. Calls are
// blocking network I/O with an enforced timeout; a timeout or silence
// is a failure for the caller to compensate, never an implicit success.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/basharatali122/hamza-website-backend/internal/apperrors"
)

type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	MerchantID string
	Timeout    time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

// ChargeResult is the gateway's answer to a charge attempt.
type ChargeResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type chargeRequest struct {
	MerchantID     string          `json:"merchant_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	OrderReference string          `json:"order_reference"`
	Description    string          `json:"description,omitempty"`
}

type refundRequest struct {
	MerchantID    string          `json:"merchant_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Charge processes a payment. The gateway deduplicates by reference, so
// a retried charge with the same reference never double-bills.
func (c *Client) Charge(ctx context.Context, amount decimal.Decimal, reference string) (*ChargeResult, error) {
	req := chargeRequest{
		MerchantID:     c.cfg.MerchantID,
		Amount:         amount,
		Currency:       "PKR",
		OrderReference: reference,
		Description:    fmt.Sprintf("Payment for %s", reference),
	}
	var res ChargeResult
	if err := c.post(ctx, "charge", "/payment/process", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Verify re-checks the status of a gateway transaction.
func (c *Client) Verify(ctx context.Context, transactionID string) (string, error) {
	var res statusResponse
	if err := c.get(ctx, "verify", "/payment/verify/"+transactionID, &res); err != nil {
		return "", err
	}
	return res.Status, nil
}

// Refund reverses a settled charge, fully or partially.
func (c *Client) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (string, error) {
	req := refundRequest{
		MerchantID:    c.cfg.MerchantID,
		TransactionID: transactionID,
		Amount:        amount,
	}
	var res statusResponse
	if err := c.post(ctx, "refund", "/payment/refund", req, &res); err != nil {
		return "", err
	}
	return res.Status, nil
}

// authHeaders signs the request the way the gateway expects: an HMAC of
// api key + millisecond timestamp under the shared secret.
func (c *Client) authHeaders() map[string]string {
	ts := fmt.Sprintf("%d", c.now().UnixMilli())
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(c.cfg.APIKey + ts))
	return map[string]string{
		"X-API-Key":   c.cfg.APIKey,
		"X-Timestamp": ts,
		"X-Signature": hex.EncodeToString(mac.Sum(nil)),
	}
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	for k, v := range c.authHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failures and timeouts are transient: the caller may
		// retry with the same reference, or compensate.
		return &apperrors.GatewayError{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Transient: true, Err: err}
	}
	if resp.StatusCode >= 500 {
		return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Transient: true,
			Err: fmt.Errorf("gateway unavailable: %s", raw)}
	}
	if resp.StatusCode >= 400 {
		return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Transient: false,
			Err: fmt.Errorf("gateway rejected request: %s", raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Transient: false,
			Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
