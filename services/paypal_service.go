package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// PayPalService talks to the PayPal REST API directly: webhook signature
// verification and order capture. No Go SDK is used; the surface we need is
// two endpoints plus OAuth.
type PayPalService struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string
	httpClient   *http.Client
}

func NewPayPalService() *PayPalService {
	baseURL := os.Getenv("PAYPAL_API_BASE")
	if baseURL == "" {
		baseURL = "https://api-m.paypal.com"
	}
	return &PayPalService{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		clientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		webhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *PayPalService) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token request returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode paypal token: %w", err)
	}
	return body.AccessToken, nil
}

// VerifyWebhookSignature asks PayPal to confirm the transmission headers
// match the raw body for our configured webhook id. An unset webhook id
// skips verification, mirroring the development behavior of the other
// webhook surfaces.
func (s *PayPalService) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	if s.webhookID == "" {
		return true, nil
	}

	token, err := s.accessToken(ctx)
	if err != nil {
		return false, err
	}

	payload := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        s.webhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("paypal verification request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode paypal verification: %w", err)
	}
	return result.VerificationStatus == "SUCCESS", nil
}

type PayPalCapture struct {
	OrderID  string `json:"orderId"`
	Status   string `json:"status"`
	CustomID string `json:"customId,omitempty"`
}

// CaptureOrder captures an approved PayPal order. The custom id carries the
// same grant metadata the Stripe path puts on checkout sessions.
func (s *PayPalService) CaptureOrder(ctx context.Context, orderID string) (*PayPalCapture, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/checkout/orders/"+orderID+"/capture", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal capture request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paypal capture returned %d", resp.StatusCode)
	}

	var body struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode paypal capture: %w", err)
	}

	capture := &PayPalCapture{OrderID: body.ID, Status: body.Status}
	if len(body.PurchaseUnits) > 0 {
		capture.CustomID = body.PurchaseUnits[0].CustomID
	}
	return capture, nil
}
