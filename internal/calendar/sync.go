// Package calendar mirrors appointments into external calendars.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Event is an appointment projected onto a calendar.
type Event struct {
	OwnerEmail  string    `json:"ownerEmail"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	MeetingLink string    `json:"meetingLink,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// Syncer mirrors appointment changes into a calendar backend.
type Syncer interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, ownerEmail, eventID string) error
}

// Client talks to a calendar gateway over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a calendar gateway client. Returns nil when no
// endpoint is configured so callers can fall back to a stub.
func NewClient(endpoint, apiKey string, logger *logging.Logger) *Client {
	if endpoint == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// CreateEvent creates a calendar event and returns the backend's event id.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/events", ev, &created); err != nil {
		return "", fmt.Errorf("calendar: create event: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendar: gateway returned empty event id")
	}
	c.logger.Info("calendar event created", "event_id", created.ID, "owner", ev.OwnerEmail)
	return created.ID, nil
}

// UpdateEvent replaces an existing event's times and details.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	if err := c.doRequest(ctx, http.MethodPut, "/events/"+eventID, ev, nil); err != nil {
		return fmt.Errorf("calendar: update event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent removes an event from the owner's calendar.
func (c *Client) DeleteEvent(ctx context.Context, ownerEmail, eventID string) error {
	body := map[string]string{"ownerEmail": ownerEmail}
	if err := c.doRequest(ctx, http.MethodDelete, "/events/"+eventID, body, nil); err != nil {
		return fmt.Errorf("calendar: delete event %s: %w", eventID, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(respBody[:min(200, len(respBody))]))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// StubSyncer records nothing and returns deterministic ids. Used when no
// calendar gateway is configured.
type StubSyncer struct {
	logger *logging.Logger
}

// NewStubSyncer creates a stub calendar syncer.
func NewStubSyncer(logger *logging.Logger) *StubSyncer {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSyncer{logger: logger}
}

// CreateEvent logs and returns a placeholder id.
func (s *StubSyncer) CreateEvent(ctx context.Context, ev Event) (string, error) {
	id := fmt.Sprintf("stub-%d", ev.StartAt.Unix())
	s.logger.Info("stub calendar: would create event", "owner", ev.OwnerEmail, "start_at", ev.StartAt)
	return id, nil
}

// UpdateEvent logs and succeeds.
func (s *StubSyncer) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	s.logger.Info("stub calendar: would update event", "event_id", eventID, "start_at", ev.StartAt)
	return nil
}

// DeleteEvent logs and succeeds.
func (s *StubSyncer) DeleteEvent(ctx context.Context, ownerEmail, eventID string) error {
	s.logger.Info("stub calendar: would delete event", "event_id", eventID, "owner", ownerEmail)
	return nil
}

// Ensure interface compliance
var _ Syncer = (*Client)(nil)
var _ Syncer = (*StubSyncer)(nil)
