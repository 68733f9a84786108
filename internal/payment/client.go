package payment

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
	"strconv"
	"time"
)

// Config carries the processor settings. AccessToken and ProductID are
// required for outbound calls; WebhookSecret for verifying callbacks.
type Config struct {
	APIURL        string
	AccessToken   string
	ProductID     string
	WebhookSecret string
	BaseURL       string
}

func (c Config) Validate() error {
	var missing []string
	if c.AccessToken == "" {
		missing = append(missing, "PAYMENT_ACCESS_TOKEN")
	}
	if c.ProductID == "" {
		missing = append(missing, "PAYMENT_PRODUCT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing payment configuration: %v", missing)
	}
	return nil
}

// SuccessURL is where the processor redirects the shopper after payment.
// The processor substitutes the checkout-session id placeholder itself.
func (c Config) SuccessURL() string {
	return c.BaseURL + "/checkout/success?checkout_id={CHECKOUT_SESSION_ID}"
}

// Client is the outbound half of the processor integration: it opens hosted
// checkout sessions. All inbound traffic goes through the webhook handler
// and the Reconciler instead.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// CheckoutRequest opens a checkout for one placed order. The order id rides
// in the metadata bag so webhook events can be correlated back.
type CheckoutRequest struct {
	OrderID       uint
	CustomerEmail string
	CustomerName  string
}

// CheckoutSession is the processor's answer: where to send the shopper and
// the id all later webhook events will reference.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	payload := map[string]any{
		"product_id":     c.cfg.ProductID,
		"customer_email": req.CustomerEmail,
		"customer_name":  req.CustomerName,
		"success_url":    c.cfg.SuccessURL(),
		"metadata": map[string]string{
			"order_id": strconv.FormatUint(uint64(req.OrderID), 10),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payment: marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payment: build checkout request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("payment: create checkout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return CheckoutSession{}, fmt.Errorf("payment: create checkout: status %d: %s", resp.StatusCode, msg)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return CheckoutSession{}, fmt.Errorf("payment: decode checkout response: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return CheckoutSession{}, fmt.Errorf("payment: checkout response missing id or url")
	}
	return session, nil
}

// Sign computes the hex HMAC-SHA256 of payload under secret. Used by the
// webhook handler (and its tests) for the shared-secret signature scheme.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature header in constant time.
func VerifySignature(secret, payload []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
