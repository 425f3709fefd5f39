package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CheckoutClient talks to the hosted payment gateway: it creates a
// checkout session and returns the URL the user is redirected to.
type CheckoutClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type checkoutSessionReq struct {
	ReferenceID   string  `json:"reference_id"` // our payment id
	PlanID        string  `json:"plan_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	CustomerEmail string  `json:"customer_email"`
	SuccessURL    string  `json:"success_url"`
	CancelURL     string  `json:"cancel_url"`
}

type checkoutSessionResp struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewCheckoutClient(baseURL, apiKey string) *CheckoutClient {
	return &CheckoutClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateSession returns the gateway session id and the hosted checkout URL.
func (c *CheckoutClient) CreateSession(ctx context.Context, paymentID, planID string, amount float64, customerEmail, successURL, cancelURL string) (string, string, error) {
	if c.Client == nil {
		return "", "", errors.New("checkout: http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return "", "", errors.New("checkout: api key is required")
	}

	b, err := json.Marshal(checkoutSessionReq{
		ReferenceID:   paymentID,
		PlanID:        planID,
		Amount:        amount,
		Currency:      "BRL",
		CustomerEmail: customerEmail,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	})
	if err != nil {
		return "", "", err
	}

	url := fmt.Sprintf("%s/checkout/sessions", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", "", fmt.Errorf("checkout: %s", msg)
	}

	var decoded checkoutSessionResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", "", errors.New(decoded.Error.Message)
	}
	if decoded.CheckoutURL == "" {
		return "", "", errors.New("checkout: empty checkout url")
	}
	return decoded.SessionID, decoded.CheckoutURL, nil
}
