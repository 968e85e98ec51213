// Package push delivers mobile push notifications through a gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Notification is one push message addressed to a user's devices.
type Notification struct {
	UserID uuid.UUID         `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Sender delivers push notifications.
type Sender interface {
	Push(ctx context.Context, n Notification) error
}

// GatewayClient sends notifications to a push gateway over HTTP.
type GatewayClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewGatewayClient creates a push gateway client. Returns nil when no
// endpoint is configured.
func NewGatewayClient(endpoint, apiKey string, logger *logging.Logger) *GatewayClient {
	if endpoint == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GatewayClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// Push sends one notification through the gateway.
func (c *GatewayClient) Push(ctx context.Context, n Notification) error {
	jsonBody, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("push: marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/notifications", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("push: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("push: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push: gateway returned %d: %s", resp.StatusCode, string(respBody[:min(200, len(respBody))]))
	}

	c.logger.Info("push notification sent", "user_id", n.UserID, "title", n.Title)
	return nil
}

// StubSender logs but does not deliver. Used in tests and when push is
// disabled.
type StubSender struct {
	logger *logging.Logger
}

// NewStubSender creates a stub push sender.
func NewStubSender(logger *logging.Logger) *StubSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSender{logger: logger}
}

// Push logs the notification without sending it.
func (s *StubSender) Push(ctx context.Context, n Notification) error {
	s.logger.Info("stub push sender: would push", "user_id", n.UserID, "title", n.Title)
	return nil
}

// Ensure interface compliance
var _ Sender = (*GatewayClient)(nil)
var _ Sender = (*StubSender)(nil)
