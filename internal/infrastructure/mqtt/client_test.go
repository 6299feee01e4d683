package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/storyware/storybox-core/internal/token"
)

type stubTokens struct {
	creds       token.Credentials
	err         error
	invalidated int
}

func (s *stubTokens) AccessToken(context.Context) (string, error) { return "tok", s.err }
func (s *stubTokens) TransportCredentials(context.Context) (token.Credentials, error) {
	return s.creds, s.err
}
func (s *stubTokens) ExpiresAt() time.Time { return time.Now().Add(time.Hour) }
func (s *stubTokens) Invalidate()          { s.invalidated++ }

func TestConnectRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()

	_, err := Connect(ctx, Config{ClientID: ""}, &stubTokens{}, nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect with empty client ID: err = %v, want ErrConnectionFailed", err)
	}

	_, err = Connect(ctx, Config{ClientID: "c", QoS: 3}, &stubTokens{}, nil)
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Connect with QoS 3: err = %v, want ErrInvalidQoS", err)
	}
}

func TestConnectSurfacesCredentialFetchFailure(t *testing.T) {
	tokens := &stubTokens{err: errors.New("cloud down")}

	_, err := Connect(context.Background(), Config{
		ClientID:     "c",
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}, tokens, nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("err = %v, want ErrConnectionFailed", err)
	}
}

func TestIsAuthError(t *testing.T) {
	if !isAuthError(packets.ErrorRefusedBadUsernameOrPassword) {
		t.Error("bad username/password should be an auth error")
	}
	if !isAuthError(packets.ErrorRefusedNotAuthorised) {
		t.Error("not authorised should be an auth error")
	}
	if isAuthError(packets.ErrorRefusedServerUnavailable) {
		t.Error("server unavailable should not be an auth error")
	}
	if isAuthError(errors.New("dial tcp: connection refused")) {
		t.Error("transport error should not be an auth error")
	}
}

func TestPublishWhileDisconnectedQueues(t *testing.T) {
	c := &Client{
		cfg:    Config{ClientID: "c", QoS: 1},
		logger: noopLogger{},
		queue:  newPublishQueue(2),
	}

	if err := c.Publish("a/topic", QoSDefault, false, []byte("x")); !errors.Is(err, ErrPublishQueued) {
		t.Fatalf("Publish while disconnected: err = %v, want ErrPublishQueued", err)
	}
	if got := c.QueuedPublishes(); got != 1 {
		t.Errorf("QueuedPublishes() = %d, want 1", got)
	}

	msgs := c.queue.drain()
	if len(msgs) != 1 || msgs[0].qos != 1 {
		t.Fatalf("queued message = %+v, want qos 1 from default", msgs)
	}
}

func TestPublishOverflowDropsOldest(t *testing.T) {
	c := &Client{
		cfg:    Config{ClientID: "c", QoS: 0},
		logger: noopLogger{},
		queue:  newPublishQueue(2),
	}

	c.Publish("t/0", 0, false, nil)
	c.Publish("t/1", 0, false, nil)
	if err := c.Publish("t/2", 0, false, nil); !errors.Is(err, ErrPublishDropped) {
		t.Fatalf("overflowing publish: err = %v, want ErrPublishDropped", err)
	}

	msgs := c.queue.drain()
	if len(msgs) != 2 || msgs[0].topic != "t/1" || msgs[1].topic != "t/2" {
		t.Fatalf("buffer after overflow = %+v, want t/1 then t/2", msgs)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{cfg: Config{QoS: 1}, logger: noopLogger{}, queue: newPublishQueue(2)}

	if err := c.Publish("", 1, false, nil); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t", 7, false, nil); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 7: err = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeWhileDisconnectedIsRecorded(t *testing.T) {
	c := &Client{
		cfg:    Config{ClientID: "c", QoS: 1},
		logger: noopLogger{},
		queue:  newPublishQueue(2),
		subs:   make(map[string]subscription),
	}

	handler := func(string, []byte) {}
	if err := c.Subscribe("a/+/events", QoSDefault, handler); err != nil {
		t.Fatalf("Subscribe while disconnected: %v", err)
	}

	c.subMu.RLock()
	sub, ok := c.subs["a/+/events"]
	c.subMu.RUnlock()
	if !ok {
		t.Fatal("subscription not recorded")
	}
	if sub.qos != 1 {
		t.Errorf("recorded qos = %d, want 1 from default", sub.qos)
	}

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: err = %v, want ErrSubscribeFailed", err)
	}

	if err := c.Unsubscribe("a/+/events"); err != nil {
		t.Fatalf("Unsubscribe while disconnected: %v", err)
	}
	c.subMu.RLock()
	_, ok = c.subs["a/+/events"]
	c.subMu.RUnlock()
	if ok {
		t.Error("subscription still recorded after Unsubscribe")
	}
}
