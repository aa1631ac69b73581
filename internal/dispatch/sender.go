package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sashimarconi/checkout-backend/pkg/config"
)

const maxResponseBytes = 8 << 10

// Sender performs the outbound conversion call.
type Sender interface {
	Send(ctx context.Context, url, token string, payload Payload) (int, string, error)
}

// HTTPSender posts conversion payloads as JSON.
type HTTPSender struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSender builds the webhook sender from the conversion config.
func NewHTTPSender(cfg config.ConversionConfig) *HTTPSender {
	return &HTTPSender{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
}

// Send posts the payload and returns the response status and truncated body.
func (s *HTTPSender) Send(ctx context.Context, url, token string, payload Payload) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("encoding conversion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("building conversion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(respBody), nil
}
