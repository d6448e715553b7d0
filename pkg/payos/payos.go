// Package payos is a thin client for the PayOS merchant API: payment link
// creation, cancellation and webhook signature verification.
package payos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"car-rental/pkg/utils"

	"go.uber.org/zap"
)

const (
	codeSuccess       = "00"
	maxDescriptionLen = 25
)

var (
	ErrInvalidSignature = errors.New("payos: invalid signature")
	ErrMalformedPayload = errors.New("payos: malformed payload")
)

// Gateway is the part of PayOS the booking core depends on.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, req PaymentRequest) (*PaymentLink, error)
	CancelPaymentLink(ctx context.Context, orderCode int64, reason string) error
	VerifyWebhook(body []byte) (*WebhookData, error)
}

type PaymentRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	BuyerName   string
	BuyerEmail  string
}

type PaymentLink struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	Status        string `json:"status"`
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
}

// WebhookData is the verified payload of a payment notification.
type WebhookData struct {
	OrderCode           int64
	Amount              int64
	Reference           string
	PaymentLinkID       string
	TransactionDateTime string
	Code                string
	Desc                string
}

// Paid reports whether the notification confirms a successful payment.
func (d *WebhookData) Paid() bool { return d.Code == codeSuccess }

type Client struct {
	http        *http.Client
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	returnURL   string
	cancelURL   string
	linkTTL     time.Duration
	now         func() time.Time
	log         *zap.Logger
}

func NewClient(cfg utils.PayOSConfig, log *zap.Logger) *Client {
	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		returnURL:   cfg.ReturnURL,
		cancelURL:   cfg.CancelURL,
		linkTTL:     cfg.LinkTTL,
		now:         time.Now,
		log:         log.With(zap.String("component", "payos")),
	}
}

type envelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentRequest) (*PaymentLink, error) {
	description := truncate(req.Description, maxDescriptionLen)
	signature := c.sign(createLinkSignatureData(req.Amount, c.cancelURL, description, req.OrderCode, c.returnURL))

	body := map[string]any{
		"orderCode":   req.OrderCode,
		"amount":      req.Amount,
		"description": description,
		"cancelUrl":   c.cancelURL,
		"returnUrl":   c.returnURL,
		"signature":   signature,
	}
	if req.BuyerName != "" {
		body["buyerName"] = req.BuyerName
	}
	if req.BuyerEmail != "" {
		body["buyerEmail"] = req.BuyerEmail
	}
	if c.linkTTL > 0 {
		body["expiredAt"] = c.now().Add(c.linkTTL).Unix()
	}

	var link PaymentLink
	if err := c.do(ctx, "/v2/payment-requests", body, &link); err != nil {
		return nil, err
	}

	c.log.Info("Payment link created",
		zap.Int64("order_code", req.OrderCode),
		zap.Int64("amount", req.Amount),
		zap.String("payment_link_id", link.PaymentLinkID))

	return &link, nil
}

func (c *Client) CancelPaymentLink(ctx context.Context, orderCode int64, reason string) error {
	path := fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode)
	body := map[string]any{"cancellationReason": reason}
	if err := c.do(ctx, path, body, nil); err != nil {
		return err
	}

	c.log.Info("Payment link cancelled", zap.Int64("order_code", orderCode))
	return nil
}

func (c *Client) do(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payos request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn("PayOS returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("payos %s: http status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != codeSuccess {
		return fmt.Errorf("payos %s: code %s: %s", path, env.Code, env.Desc)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// VerifyWebhook checks the HMAC of a webhook body and returns its data.
func (c *Client) VerifyWebhook(body []byte) (*WebhookData, error) {
	return VerifyWebhook(c.checksumKey, body)
}

func VerifyWebhook(checksumKey string, body []byte) (*WebhookData, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformedPayload
	}
	if len(env.Data) == 0 || env.Signature == "" {
		return nil, ErrMalformedPayload
	}

	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, ErrMalformedPayload
	}

	expected := Sign(checksumKey, SortedFieldString(fields))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(env.Signature))) {
		return nil, ErrInvalidSignature
	}

	data := &WebhookData{
		Reference:           stringField(fields, "reference"),
		PaymentLinkID:       stringField(fields, "paymentLinkId"),
		TransactionDateTime: stringField(fields, "transactionDateTime"),
		Code:                stringField(fields, "code"),
		Desc:                stringField(fields, "desc"),
	}

	var err error
	if data.OrderCode, err = intField(fields, "orderCode"); err != nil {
		return nil, ErrMalformedPayload
	}
	if data.Amount, err = intField(fields, "amount"); err != nil {
		return nil, ErrMalformedPayload
	}

	return data, nil
}

// Sign returns the lowercase hex HMAC-SHA256 of data.
func Sign(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) sign(data string) string { return Sign(c.checksumKey, data) }

func createLinkSignatureData(amount int64, cancelURL, description string, orderCode int64, returnURL string) string {
	return fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		amount, cancelURL, description, orderCode, returnURL)
}

// SortedFieldString renders fields as key=value pairs sorted by key and
// joined by '&'. Null values render as empty strings.
func SortedFieldString(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(fields[k]))
	}
	return strings.Join(parts, "&")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if val == "null" || val == "undefined" {
			return ""
		}
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

func stringField(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func intField(fields map[string]any, key string) (int64, error) {
	switch v := fields[key].(type) {
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("field %s missing", key)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
