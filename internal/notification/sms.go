package notification

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

	"laundry-jobs-backend/config"
	"laundry-jobs-backend/internal/parse"
)

// Sender delivers a rendered notification to a single customer contact.
type Sender interface {
	Send(ctx context.Context, contact string, kind Kind, payload Payload) error
}

// SMSClient posts messages to an HTTP SMS gateway.
type SMSClient struct {
	gatewayURL  string
	apiKey      string
	sender      string
	countryCode string
	client      *http.Client
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// NewSMSClient builds an SMS gateway client with a bounded request timeout.
func NewSMSClient(cfg config.SMSConfig) (*SMSClient, error) {
	gatewayURL := strings.TrimSpace(cfg.GatewayURL)
	if gatewayURL == "" {
		return nil, errors.New("sms gateway url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSClient{
		gatewayURL:  gatewayURL,
		apiKey:      cfg.APIKey,
		sender:      cfg.Sender,
		countryCode: cfg.DefaultCountryCode,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Send normalizes the contact number and posts the rendered message.
func (c *SMSClient) Send(ctx context.Context, contact string, kind Kind, payload Payload) error {
	to, err := parse.PhoneNumber(contact, c.countryCode)
	if err != nil {
		return fmt.Errorf("cannot send %s: %w", kind, err)
	}

	body, err := json.Marshal(smsRequest{
		To:      to,
		From:    c.sender,
		Message: Render(kind, payload),
		Tag:     string(kind),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
