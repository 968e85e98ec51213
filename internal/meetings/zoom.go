// Package meetings creates video meeting links for remote consultations.
package meetings

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

const (
	defaultAuthEndpoint = "https://zoom.us/oauth/token"
	defaultAPIEndpoint  = "https://api.zoom.us/v2"
	defaultTimeout      = 15 * time.Second
)

// Meeting is a created video meeting.
type Meeting struct {
	ID       string
	JoinURL  string
	Provider string
}

// LinkProvider creates a video meeting for an appointment.
// Implementations can be swapped (Zoom, stub) without changing callers.
type LinkProvider interface {
	CreateMeeting(ctx context.Context, topic string, startAt time.Time, durationMinutes int) (*Meeting, error)
}

// ZoomConfig holds server-to-server OAuth credentials for Zoom.
type ZoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

// ZoomClient creates meetings via the Zoom API using account credentials.
type ZoomClient struct {
	cfg          ZoomConfig
	authEndpoint string
	apiEndpoint  string
	httpClient   *http.Client
	logger       *logging.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option configures a ZoomClient.
type Option func(*ZoomClient)

// WithEndpoints overrides the Zoom auth and API endpoints. Empty values
// keep the defaults.
func WithEndpoints(authEndpoint, apiEndpoint string) Option {
	return func(c *ZoomClient) {
		if authEndpoint != "" {
			c.authEndpoint = authEndpoint
		}
		if apiEndpoint != "" {
			c.apiEndpoint = apiEndpoint
		}
	}
}

// NewZoomClient creates a new Zoom meeting client.
func NewZoomClient(cfg ZoomConfig, logger *logging.Logger, opts ...Option) *ZoomClient {
	if cfg.AccountID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &ZoomClient{
		cfg:          cfg,
		authEndpoint: defaultAuthEndpoint,
		apiEndpoint:  defaultAPIEndpoint,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMeeting creates a scheduled Zoom meeting and returns its join link.
func (c *ZoomClient) CreateMeeting(ctx context.Context, topic string, startAt time.Time, durationMinutes int) (*Meeting, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("meetings: zoom auth: %w", err)
	}

	payload := map[string]interface{}{
		"topic":      topic,
		"type":       2, // scheduled meeting
		"start_time": startAt.UTC().Format("2006-01-02T15:04:05Z"),
		"duration":   durationMinutes,
		"timezone":   "UTC",
		"settings": map[string]interface{}{
			"join_before_host": true,
			"waiting_room":     false,
		},
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("meetings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiEndpoint+"/users/me/meetings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("meetings: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meetings: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("meetings: read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meetings: zoom API returned %d: %s", resp.StatusCode, string(respBody[:min(200, len(respBody))]))
	}

	var created struct {
		ID      int64  `json:"id"`
		JoinURL string `json:"join_url"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("meetings: unmarshal response: %w", err)
	}

	c.logger.Info("zoom meeting created", "meeting_id", created.ID, "start_at", startAt)
	return &Meeting{
		ID:       fmt.Sprintf("%d", created.ID),
		JoinURL:  created.JoinURL,
		Provider: "zoom",
	}, nil
}

// token returns a cached access token, refreshing via the
// account_credentials grant when expired.
func (c *ZoomClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.cfg.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authEndpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(respBody[:min(200, len(respBody))]))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// StubLinkProvider returns deterministic placeholder links without calling
// any external API. Used in tests and when video meetings are disabled.
type StubLinkProvider struct {
	logger *logging.Logger
}

// NewStubLinkProvider creates a stub meeting provider.
func NewStubLinkProvider(logger *logging.Logger) *StubLinkProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubLinkProvider{logger: logger}
}

// CreateMeeting returns a placeholder meeting link.
func (s *StubLinkProvider) CreateMeeting(ctx context.Context, topic string, startAt time.Time, durationMinutes int) (*Meeting, error) {
	id := fmt.Sprintf("stub-%d", startAt.Unix())
	s.logger.Info("stub meeting provider: would create meeting", "topic", topic, "start_at", startAt)
	return &Meeting{
		ID:       id,
		JoinURL:  "https://meet.example.com/" + id,
		Provider: "stub",
	}, nil
}

// Ensure interface compliance
var _ LinkProvider = (*ZoomClient)(nil)
var _ LinkProvider = (*StubLinkProvider)(nil)
