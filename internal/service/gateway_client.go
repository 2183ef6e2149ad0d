package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketplace-core/internal/models"
	"marketplace-core/internal/util"
)

// GatewayRegistration is the result of registering an order with the
// payment gateway
type GatewayRegistration struct {
	OrderRef string
	Checkout models.CheckoutParams
}

// GatewayClient talks to the external payment gateway. It is the only
// component holding the shared secret; everything arriving from the
// gateway side is untrusted input except what passes VerifySignature.
type GatewayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewGatewayClient creates a new gateway client
func NewGatewayClient(baseURL, keyID, keySecret string) *GatewayClient {
	return &GatewayClient{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type gatewayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type gatewayOrderResponse struct {
	ID string `json:"id"`
}

// RegisterOrder registers an order with the gateway and returns the
// external order ref plus client checkout params
func (c *GatewayClient) RegisterOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayRegistration, error) {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(gatewayOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: unexpected status code: %d", resp.StatusCode)
	}

	var out gatewayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gateway: failed to decode response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway: response missing order id")
	}

	return &GatewayRegistration{
		OrderRef: out.ID,
		Checkout: c.CheckoutParams(out.ID, amount, currency),
	}, nil
}

// CheckoutParams returns what the buyer's client needs to open checkout
// for a registered order
func (c *GatewayClient) CheckoutParams(orderRef string, amount int64, currency string) models.CheckoutParams {
	return models.CheckoutParams{
		Key:      c.keyID,
		OrderRef: orderRef,
		Amount:   amount,
		Currency: currency,
	}
}

// VerifySignature recomputes the HMAC-SHA256 of "orderRef|paymentRef"
// with the shared secret and compares in constant time. This is the sole
// authenticity check for a payment confirmation.
func (c *GatewayClient) VerifySignature(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
