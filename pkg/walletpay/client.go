/**
 * @description
 * This package provides a client for the regional wallet-style payment
 * provider. The only server-side interaction is preference creation: the
 * service posts the item and payer data, receives a preference id, and hands
 * that id to the on-page wallet widget, which completes payment out-of-band.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package walletpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the regional provider API.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

// NewClient creates a new wallet provider client.
func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Payer identifies the paying user on a preference.
type Payer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PreferenceItem is one line item on a payment preference.
type PreferenceItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// PreferenceRequest is the payload for preference creation.
type PreferenceRequest struct {
	ID        string
	Title     string
	Quantity  int
	UnitPrice float64
	Payer     Payer
}

// preferencePayload is the wire shape the provider expects.
type preferencePayload struct {
	Items []PreferenceItem `json:"items"`
	Payer Payer            `json:"payer"`
}

// PreferenceResponse is the provider's answer to preference creation.
type PreferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// ErrorResponse represents an error from the provider API.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Cause   string `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("walletpay api error: %s (status %d)", e.Message, e.Status)
	}
	return "unknown walletpay api error"
}

// CreatePreference requests a payment preference for one listing fee.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*PreferenceResponse, error) {
	payload := preferencePayload{
		Items: []PreferenceItem{{
			ID:        req.ID,
			Title:     req.Title,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
		}},
		Payer: req.Payer,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/checkout/preferences", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create preference request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute preference request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read preference response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=walletpay op=create_preference status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=walletpay op=create_preference status=%d message=%q", resp.StatusCode, errResp.Message)
		return nil, &errResp
	}

	var successResp PreferenceResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode preference response: %w", err)
	}
	if successResp.ID == "" {
		return nil, fmt.Errorf("preference response missing id")
	}

	return &successResp, nil
}
