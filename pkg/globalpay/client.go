/**
 * @description
 * This package provides a client for the international payment provider's
 * order API: client-credentials authentication, order creation for the
 * listing fee, and capture of a buyer-approved order. The access token is
 * cached in memory until shortly before expiry.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, net/url, strings, sync,
 *   time: Standard Go libraries.
 */
package globalpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client is a client for the international provider API.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new international provider client.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// OrderRequest describes the order to create: one purchase unit for the
// listing fee.
type OrderRequest struct {
	Amount      float64
	Currency    string
	Description string
}

// OrderResponse is the provider's answer to order creation.
type OrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Capture is one settled capture within a purchase unit.
type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CapturePayments groups the captures of one purchase unit.
type CapturePayments struct {
	Captures []Capture `json:"captures"`
}

// CapturePurchaseUnit is one purchase unit in a capture response.
type CapturePurchaseUnit struct {
	Payments CapturePayments `json:"payments"`
}

// CaptureResponse is the provider's answer to an order capture.
type CaptureResponse struct {
	ID            string                `json:"id"`
	Status        string                `json:"status"`
	PurchaseUnits []CapturePurchaseUnit `json:"purchase_units"`
}

// TransactionID returns the settled capture id when present, falling back to
// the order id.
func (r *CaptureResponse) TransactionID() string {
	for _, unit := range r.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID
			}
		}
	}
	return r.ID
}

// ErrorResponse represents an error from the provider API.
type ErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *ErrorResponse) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("globalpay api error: %s - %s", e.Name, e.Message)
	}
	return "unknown globalpay api error"
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid access token, fetching a fresh one when the cached
// token is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=globalpay op=token status=%d msg=\"token request rejected\"", resp.StatusCode)
		return "", fmt.Errorf("token request failed (status %d)", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(bodyBytes, &tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// CreateOrder creates a CAPTURE-intent order for the listing fee.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"amount": map[string]string{
				"currency_code": req.Currency,
				"value":         fmt.Sprintf("%.2f", req.Amount),
			},
			"description": req.Description,
		}},
	}

	var resp OrderResponse
	if err := c.doJSON(ctx, "POST", "/v2/checkout/orders", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("order response missing id")
	}
	return &resp, nil
}

// CaptureOrder finalizes a buyer-approved order into a settled transaction.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResponse, error) {
	var resp CaptureResponse
	if err := c.doJSON(ctx, "POST", "/v2/checkout/orders/"+orderID+"/capture", nil, &resp); err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Status, "COMPLETED") {
		return nil, fmt.Errorf("capture not completed: status=%s", resp.Status)
	}
	return &resp, nil
}

// doJSON executes one authenticated JSON request against the provider.
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	accessToken, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=globalpay op=%s path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", method, path, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=globalpay op=%s path=%s status=%d name=%q message=%q", method, path, resp.StatusCode, errResp.Name, errResp.Message)
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
