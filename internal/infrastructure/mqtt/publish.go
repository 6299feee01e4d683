package mqtt

import "fmt"

// Publish sends payload to topic. When the client is disconnected the
// message is buffered and ErrPublishQueued is returned; buffered messages
// are flushed in order on reconnect. If buffering evicted an older entry
// from a full buffer the caller gets ErrPublishDropped instead. Pass
// QoSDefault to use the configured default QoS.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos == QoSDefault {
		qos = c.cfg.QoS
	}
	if qos > 2 {
		return ErrInvalidQoS
	}

	c.mu.RLock()
	client, connected := c.paho, c.connected
	c.mu.RUnlock()

	if !connected || client == nil {
		evicted := c.queue.push(queuedMessage{
			topic:    topic,
			qos:      qos,
			retained: retained,
			payload:  payload,
		})
		if evicted {
			c.logger.Warn("outbound buffer full, dropped oldest publish",
				"topic", topic, "dropped_total", c.queue.droppedCount())
			return ErrPublishDropped
		}
		return ErrPublishQueued
	}

	tok := client.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout publishing to %s", ErrPublishFailed, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}
