package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/storyware/storybox-core/internal/token"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	subscribeTimeout  = 5 * time.Second
	keepAliveInterval = 30 * time.Second
	disconnectQuiesce = 250 // milliseconds for paho to flush in-flight work

	// tokenCheckInterval is how often the watcher compares the access token
	// expiry against the configured headroom.
	tokenCheckInterval = 30 * time.Second
)

// Logger is the minimal logging interface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler processes an inbound message. Handlers run on paho's
// router goroutine; long work should be handed off.
type MessageHandler func(topic string, payload []byte)

// Config holds the connection settings for the client.
type Config struct {
	// ClientID identifies this client to the broker. Required.
	ClientID string

	// QoS is the quality of service applied to publishes and subscriptions
	// that pass QoSDefault.
	QoS byte

	// OutboundBuffer bounds the number of publishes held while disconnected.
	OutboundBuffer int

	// Reconnect backoff parameters.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Stability    time.Duration

	// TokenHeadroom is how long before token expiry the connection is
	// cycled onto fresh credentials.
	TokenHeadroom time.Duration
}

// QoSDefault tells Publish and Subscribe to use the configured default QoS.
const QoSDefault byte = 0xFF

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client manages a single broker connection with credential-aware
// reconnection. Credentials come from a token.Provider; when the broker
// rejects them the token is invalidated and one retry is made with a fresh
// grant before the failure is surfaced as ErrAuth.
//
// Connection loss is retried indefinitely with exponential backoff, and
// recorded subscriptions are restored after every reconnect.
type Client struct {
	cfg     Config
	tokens  token.Provider
	logger  Logger
	backoff *Backoff
	queue   *publishQueue

	mu        sync.RWMutex
	paho      pahomqtt.Client
	connected bool

	subMu sync.RWMutex
	subs  map[string]subscription

	callbackMu   sync.RWMutex
	onConnect    func()
	onDisconnect func(error)

	lost   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed sync.Once
}

// Connect establishes the initial broker connection and starts the
// reconnect and token watcher loops. The supplied context bounds only the
// initial attempt; the client's lifetime is ended by Close.
func Connect(ctx context.Context, cfg Config, tokens token.Provider, logger Logger) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client ID required", ErrConnectionFailed)
	}
	if cfg.QoS > 2 {
		return nil, ErrInvalidQoS
	}
	if logger == nil {
		logger = noopLogger{}
	}

	lifetime, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		tokens: tokens,
		logger: logger,
		backoff: &Backoff{
			Initial:   cfg.InitialDelay,
			Max:       cfg.MaxDelay,
			Stability: cfg.Stability,
			Jitter:    0.2,
		},
		queue:  newPublishQueue(cfg.OutboundBuffer),
		subs:   make(map[string]subscription),
		lost:   make(chan struct{}, 1),
		ctx:    lifetime,
		cancel: cancel,
	}

	if err := c.connectOnce(ctx); err != nil {
		cancel()
		return nil, err
	}

	c.wg.Add(2)
	go c.reconnectLoop()
	go c.tokenWatcher()

	return c, nil
}

// connectOnce performs a single connection attempt, including the
// invalidate-and-retry path for rejected credentials.
func (c *Client) connectOnce(ctx context.Context) error {
	err := c.dial(ctx)
	if err == nil {
		return nil
	}
	if !isAuthError(err) {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	// The broker rejected the credentials. The token may simply have
	// expired between refresh and CONNECT, so force a refresh and try once
	// more before giving up.
	c.logger.Warn("broker rejected credentials, refreshing token", "client_id", c.cfg.ClientID)
	c.tokens.Invalidate()

	err = c.dial(ctx)
	if err == nil {
		return nil
	}
	if isAuthError(err) {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

// dial fetches credentials, builds a fresh paho client and connects it.
func (c *Client) dial(ctx context.Context) error {
	creds, err := c.tokens.TransportCredentials(ctx)
	if err != nil {
		return fmt.Errorf("fetch credentials: %w", err)
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(creds.Endpoint).
		SetClientID(c.cfg.ClientID).
		SetUsername(creds.Username).
		SetPassword(creds.Password).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAliveInterval).
		SetOnConnectHandler(c.handleConnect).
		SetConnectionLostHandler(c.handleConnectionLost)

	client := pahomqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout + time.Second) {
		return fmt.Errorf("connect timeout after %s", connectTimeout)
	}
	if err := tok.Error(); err != nil {
		return err
	}

	c.mu.Lock()
	old := c.paho
	c.paho = client
	c.connected = true
	c.mu.Unlock()

	if old != nil && old.IsConnectionOpen() {
		old.Disconnect(disconnectQuiesce)
	}
	return nil
}

// isAuthError reports whether a CONNECT failure was a credential rejection
// rather than a transport problem.
func isAuthError(err error) bool {
	return errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised)
}

// handleConnect runs on every successful (re)connection. It restores
// recorded subscriptions and flushes publishes buffered while offline.
func (c *Client) handleConnect(_ pahomqtt.Client) {
	c.logger.Info("mqtt connected", "client_id", c.cfg.ClientID)
	c.backoff.NoteConnected()

	c.restoreSubscriptions()
	go c.flushQueue()

	c.callbackMu.RLock()
	cb := c.onConnect
	c.callbackMu.RUnlock()
	if cb != nil {
		go cb()
	}
}

// handleConnectionLost runs when an established connection drops. It marks
// the client disconnected and wakes the reconnect loop.
func (c *Client) handleConnectionLost(_ pahomqtt.Client, err error) {
	c.logger.Warn("mqtt connection lost", "client_id", c.cfg.ClientID, "error", err)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.backoff.NoteDisconnected()

	c.callbackMu.RLock()
	cb := c.onDisconnect
	c.callbackMu.RUnlock()
	if cb != nil {
		go cb(err)
	}

	c.signalLost()
}

func (c *Client) signalLost() {
	select {
	case c.lost <- struct{}{}:
	default:
	}
}

// reconnectLoop re-establishes the connection after loss, retrying
// indefinitely with exponential backoff. Credential rejections during
// reconnect are logged and retried like any other failure because the
// refresh token may start working again.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.lost:
		}

		for {
			delay := c.backoff.Next()
			c.logger.Info("mqtt reconnecting", "delay", delay.String())

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(delay):
			}

			if err := c.connectOnce(c.ctx); err != nil {
				c.logger.Error("mqtt reconnect failed", "error", err)
				continue
			}
			break
		}
	}
}

// tokenWatcher cycles the connection onto fresh credentials before the
// current access token expires, so the broker never kills the session for
// an expired token.
func (c *Client) tokenWatcher() {
	defer c.wg.Done()

	headroom := c.cfg.TokenHeadroom
	if headroom <= 0 {
		headroom = 5 * time.Minute
	}

	ticker := time.NewTicker(tokenCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		exp := c.tokens.ExpiresAt()
		if exp.IsZero() || time.Until(exp) > headroom {
			continue
		}
		if !c.IsConnected() {
			continue
		}

		c.logger.Info("access token near expiry, cycling connection",
			"expires_at", exp.Format(time.RFC3339))
		c.tokens.Invalidate()

		if err := c.connectOnce(c.ctx); err != nil {
			c.logger.Error("reconnect with fresh token failed", "error", err)
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			c.signalLost()
		}
	}
}

// restoreSubscriptions re-applies every recorded subscription on the
// current connection.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subMu.RUnlock()

	c.mu.RLock()
	client := c.paho
	c.mu.RUnlock()
	if client == nil {
		return
	}

	for _, s := range subs {
		tok := client.Subscribe(s.topic, s.qos, c.wrapHandler(s.topic, s.handler))
		if !tok.WaitTimeout(subscribeTimeout) || tok.Error() != nil {
			c.logger.Error("failed to restore subscription", "topic", s.topic, "error", tok.Error())
			continue
		}
		c.logger.Debug("subscription restored", "topic", s.topic)
	}
}

// flushQueue publishes everything buffered while offline.
func (c *Client) flushQueue() {
	msgs := c.queue.drain()
	if len(msgs) == 0 {
		return
	}
	c.logger.Info("flushing buffered publishes", "count", len(msgs))

	for _, m := range msgs {
		c.mu.RLock()
		client, connected := c.paho, c.connected
		c.mu.RUnlock()
		if !connected || client == nil {
			// Connection dropped mid-flush; requeue the remainder.
			c.queue.push(m)
			continue
		}

		tok := client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !tok.WaitTimeout(publishTimeout) || tok.Error() != nil {
			c.logger.Warn("buffered publish failed", "topic", m.topic, "error", tok.Error())
		}
	}
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnectionOpen()
}

// OnConnect registers a callback invoked after every successful connection,
// including reconnects. The callback runs on its own goroutine.
func (c *Client) OnConnect(fn func()) {
	c.callbackMu.Lock()
	c.onConnect = fn
	c.callbackMu.Unlock()
}

// OnDisconnect registers a callback invoked when an established connection
// is lost. The callback runs on its own goroutine.
func (c *Client) OnDisconnect(fn func(error)) {
	c.callbackMu.Lock()
	c.onDisconnect = fn
	c.callbackMu.Unlock()
}

// QueuedPublishes returns how many publishes are currently buffered.
func (c *Client) QueuedPublishes() int {
	return c.queue.len()
}

// Close disconnects from the broker and stops the background loops.
// Safe to call multiple times.
func (c *Client) Close() {
	c.closed.Do(func() {
		c.cancel()

		c.mu.Lock()
		client := c.paho
		c.paho = nil
		c.connected = false
		c.mu.Unlock()

		if client != nil && client.IsConnectionOpen() {
			client.Disconnect(disconnectQuiesce)
		}
		c.wg.Wait()
		c.logger.Info("mqtt client closed", "client_id", c.cfg.ClientID)
	})
}
