package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storyware/storybox-core/internal/token"
)

// maxErrorBody bounds how much of an error response body is read for
// inclusion in error messages.
const maxErrorBody = 4096

// TokenSource supplies the bearer token for authenticated calls.
// Satisfied by token.Provider; declared locally so the client can be
// constructed before the provider (the provider also depends on this
// client for refreshes).
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client talks to the Storybox cloud REST API.
//
// Two concerns live here:
//   - token refresh (token.RefreshClient implementation)
//   - the degraded request-based command channel used when a player does
//     not confirm a command over MQTT
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL      string
	refreshToken string
	http         *http.Client
	tokens       TokenSource
	logger       Logger
}

// Config contains the settings needed to construct a Client.
type Config struct {
	// BaseURL is the cloud API root, without a trailing slash.
	BaseURL string

	// RefreshToken is the long-lived credential exchanged for access tokens.
	RefreshToken string

	// RequestTimeout is the per-request timeout.
	RequestTimeout time.Duration
}

// NewClient creates a cloud API client.
// Call SetTokenSource before using authenticated endpoints.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:      cfg.BaseURL,
		refreshToken: cfg.RefreshToken,
		http:         &http.Client{Timeout: cfg.RequestTimeout},
		logger:       noopLogger{},
	}
}

// SetTokenSource wires the token provider used for bearer authentication.
func (c *Client) SetTokenSource(src TokenSource) {
	c.tokens = src
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// sessionResponse is the wire shape of POST /v2/sessions.
type sessionResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"` // seconds; 0 if omitted
	MQTT        struct {
		Endpoint string `json:"endpoint"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"mqtt"`
}

// RefreshAccessToken exchanges the refresh token for a fresh access token
// and transport credentials. Implements token.RefreshClient.
func (c *Client) RefreshAccessToken(ctx context.Context) (token.Grant, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": c.refreshToken})
	if err != nil {
		return token.Grant{}, fmt.Errorf("marshalling session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/sessions", bytes.NewReader(body))
	if err != nil {
		return token.Grant{}, fmt.Errorf("building session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return token.Grant{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body

	if resp.StatusCode != http.StatusOK {
		return token.Grant{}, statusError(resp)
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return token.Grant{}, fmt.Errorf("decoding session response: %w", err)
	}

	grant := token.Grant{
		AccessToken: session.AccessToken,
		Endpoint:    session.MQTT.Endpoint,
		Username:    session.MQTT.Username,
		Password:    session.MQTT.Password,
	}
	if session.ExpiresIn > 0 {
		grant.ExpiresAt = time.Now().UTC().Add(time.Duration(session.ExpiresIn) * time.Second)
	}
	return grant, nil
}

// SetPlayerState updates a player's state directly through the cloud.
// This is the degraded fallback path when a command published over MQTT
// is not confirmed by the player in time.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - familyID: Family the player belongs to
//   - playerID: Target player
//   - changes: Desired state fields, e.g. {"playback": "paused"}
//
// Returns:
//   - error: nil on success, ErrAuth on 401, ErrUnavailable on transport failure
func (c *Client) SetPlayerState(ctx context.Context, familyID, playerID string, changes map[string]any) error {
	if c.tokens == nil {
		return fmt.Errorf("cloud: no token source configured")
	}

	tok, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("acquiring token: %w", err)
	}

	body, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshalling state changes: %w", err)
	}

	url := fmt.Sprintf("%s/v2/families/%s/players/%s/state", c.baseURL, familyID, playerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building state request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}

	c.logger.Debug("player state set via fallback", "family", familyID, "player", playerID)
	return nil
}

// statusError maps an HTTP error response to a package error.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, snippet)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, snippet)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, snippet)
	}
}
