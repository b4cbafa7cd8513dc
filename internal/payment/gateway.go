// Package payment adapts the third-party prepay API. The order service only
// depends on the Gateway interface; the HTTP client and the sandbox stub are
// interchangeable behind it.
package payment

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrOrderPaid reports that the provider already settled this order number.
// Callers treat it as a business condition, not a transport failure.
var ErrOrderPaid = errors.New("payment: order already paid")

// codeOrderPaid is the provider's response code for a settled order.
const codeOrderPaid = "ORDERPAID"

type PrepayRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Description string
	PayerID     string
}

// PrepayResponse is the opaque payload handed back to the client's payment
// SDK. The server never interprets it beyond the already-paid code check.
type PrepayResponse struct {
	PrepayID  string `json:"prepayId"`
	NonceStr  string `json:"nonceStr"`
	Timestamp string `json:"timestamp"`
	SignType  string `json:"signType"`
	Package   string `json:"package"`
}

type Gateway interface {
	CreatePrepay(ctx context.Context, req PrepayRequest) (*PrepayResponse, error)
}

// Client talks to the real prepay endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	merchantID string
	apiKey     string
}

func NewClient(baseURL, merchantID, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		merchantID: merchantID,
		apiKey:     apiKey,
	}
}

type prepayWire struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	PrepayID string `json:"prepay_id"`
	Package  string `json:"package"`
}

func (c *Client) CreatePrepay(ctx context.Context, req PrepayRequest) (*PrepayResponse, error) {
	body, err := json.Marshal(map[string]any{
		"mchid":        c.merchantID,
		"out_trade_no": req.OrderNumber,
		"description":  req.Description,
		"amount":       map[string]any{"total": req.Amount.StringFixed(2)},
		"payer":        map[string]any{"id": req.PayerID},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal prepay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/pay/transactions/jsapi", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prepay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call prepay endpoint: %w", err)
	}
	defer resp.Body.Close()

	var wire prepayWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode prepay response: %w", err)
	}

	if wire.Code == codeOrderPaid {
		return nil, ErrOrderPaid
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prepay endpoint: %s (%s)", wire.Code, wire.Message)
	}

	return &PrepayResponse{
		PrepayID:  wire.PrepayID,
		NonceStr:  nonce(),
		Timestamp: strconv.FormatInt(time.Now().Unix(), 10),
		SignType:  "RSA",
		Package:   wire.Package,
	}, nil
}

// Sandbox returns a canned prepay payload. Used in development and tests
// when no gateway URL is configured.
type Sandbox struct{}

func (Sandbox) CreatePrepay(_ context.Context, req PrepayRequest) (*PrepayResponse, error) {
	return &PrepayResponse{
		PrepayID:  "sandbox-" + req.OrderNumber,
		NonceStr:  nonce(),
		Timestamp: strconv.FormatInt(time.Now().Unix(), 10),
		SignType:  "RSA",
		Package:   "prepay_id=sandbox-" + req.OrderNumber,
	}, nil
}

func nonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
