package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers handler for topic and applies the subscription on the
// live connection. The subscription is recorded first so it survives
// reconnects; subscribing while disconnected succeeds and takes effect on
// the next connection. Subscribing to the same topic again replaces the
// handler. Pass QoSDefault to use the configured default QoS.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if qos == QoSDefault {
		qos = c.cfg.QoS
	}
	if qos > 2 {
		return ErrInvalidQoS
	}

	c.subMu.Lock()
	c.subs[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	c.mu.RLock()
	client, connected := c.paho, c.connected
	c.mu.RUnlock()
	if !connected || client == nil {
		c.logger.Debug("subscription recorded for next connection", "topic", topic)
		return nil
	}

	tok := client.Subscribe(topic, qos, c.wrapHandler(topic, handler))
	if !tok.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %s", ErrSubscribeFailed, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}
	c.logger.Debug("subscribed", "topic", topic, "qos", qos)
	return nil
}

// Unsubscribe removes the recorded subscription and unsubscribes on the
// live connection if there is one.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()

	c.mu.RLock()
	client, connected := c.paho, c.connected
	c.mu.RUnlock()
	if !connected || client == nil {
		return nil
	}

	tok := client.Unsubscribe(topic)
	if !tok.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("%w: timeout unsubscribing from %s", ErrUnsubscribeFailed, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsubscribeFailed, err)
	}
	return nil
}

// wrapHandler adapts a MessageHandler to paho's callback signature and
// isolates panics so a bad handler cannot kill the router goroutine.
func (c *Client) wrapHandler(topic string, handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("message handler panicked",
					"topic", topic, "panic", fmt.Sprintf("%v", r))
			}
		}()
		handler(msg.Topic(), msg.Payload())
	}
}
