package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultTokenTTL is assumed when a grant carries no expiry information
// at all (no expires_in and no exp claim in the access token).
const defaultTokenTTL = time.Hour

// Credentials carries everything the transport layer needs to connect.
type Credentials struct {
	// Endpoint is the broker URL, e.g. "ssl://broker.example.com:8883".
	Endpoint string

	// Username and Password authenticate the MQTT session.
	Username string
	Password string
}

// Grant is the result of a token refresh against the cloud.
type Grant struct {
	AccessToken string
	Endpoint    string
	Username    string
	Password    string

	// ExpiresAt is the access token expiry reported by the cloud.
	// Zero if the cloud did not report one; the provider then falls back
	// to the token's own exp claim.
	ExpiresAt time.Time
}

// RefreshClient performs the actual token refresh. Implemented by the
// cloud REST client; the exchange itself (device flow, refresh grant) is
// the cloud's concern.
type RefreshClient interface {
	RefreshAccessToken(ctx context.Context) (Grant, error)
}

// Provider supplies valid access tokens and transport credentials,
// refreshing proactively before expiry.
type Provider interface {
	// AccessToken returns a token valid for at least the configured headroom.
	AccessToken(ctx context.Context) (string, error)

	// TransportCredentials returns the broker endpoint and credentials
	// matching the current token.
	TransportCredentials(ctx context.Context) (Credentials, error)

	// ExpiresAt reports when the current token expires. Zero if no token
	// has been acquired yet.
	ExpiresAt() time.Time

	// Invalidate discards the cached token so the next call refreshes.
	// Called after the broker rejects the current credentials.
	Invalidate()
}

// Logger defines the logging interface used by the provider.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CloudProvider caches the grant from a RefreshClient and refreshes it
// before expiry. Refreshes are serialised; concurrent callers share the
// result of a single refresh.
//
// Thread Safety: all methods are safe for concurrent use.
type CloudProvider struct {
	client   RefreshClient
	headroom time.Duration
	logger   Logger

	mu      sync.Mutex
	grant   Grant
	expires time.Time
}

// NewCloudProvider creates a provider backed by the given refresh client.
// headroom is how long before expiry the token is considered stale.
func NewCloudProvider(client RefreshClient, headroom time.Duration) *CloudProvider {
	return &CloudProvider{
		client:   client,
		headroom: headroom,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the provider.
func (p *CloudProvider) SetLogger(logger Logger) {
	p.logger = logger
}

// AccessToken returns a cached token, refreshing it first if it is
// missing or within the headroom of its expiry.
func (p *CloudProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureFreshLocked(ctx); err != nil {
		return "", err
	}
	return p.grant.AccessToken, nil
}

// TransportCredentials returns broker credentials for the current grant,
// refreshing the grant first if needed.
func (p *CloudProvider) TransportCredentials(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureFreshLocked(ctx); err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Endpoint: p.grant.Endpoint,
		Username: p.grant.Username,
		Password: p.grant.Password,
	}, nil
}

// ExpiresAt reports the current token's expiry.
func (p *CloudProvider) ExpiresAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expires
}

// Invalidate discards the cached grant.
func (p *CloudProvider) Invalidate() {
	p.mu.Lock()
	p.grant = Grant{}
	p.expires = time.Time{}
	p.mu.Unlock()
	p.logger.Debug("token invalidated")
}

// ensureFreshLocked refreshes the grant when missing or stale.
// Caller must hold p.mu.
func (p *CloudProvider) ensureFreshLocked(ctx context.Context) error {
	if p.grant.AccessToken != "" && time.Until(p.expires) > p.headroom {
		return nil
	}

	grant, err := p.client.RefreshAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if grant.AccessToken == "" {
		return fmt.Errorf("%w: cloud returned empty access token", ErrAuth)
	}

	p.grant = grant
	p.expires = grantExpiry(grant)
	p.logger.Info("access token refreshed", "expires_at", p.expires)
	return nil
}

// grantExpiry determines when a grant expires: cloud-reported expiry
// first, then the JWT exp claim, then a conservative default TTL.
func grantExpiry(grant Grant) time.Time {
	if !grant.ExpiresAt.IsZero() {
		return grant.ExpiresAt
	}
	if exp, ok := tokenExpiry(grant.AccessToken); ok {
		return exp
	}
	return time.Now().UTC().Add(defaultTokenTTL)
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. Verification is the cloud's job; we only need the deadline
// to schedule proactive refreshes.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
