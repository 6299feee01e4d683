package mqtt

import "sync"

// queuedMessage is a publish buffered while the client is offline.
type queuedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// publishQueue is a bounded FIFO buffer for publishes attempted while
// disconnected. When full, the oldest entry is dropped to make room so the
// buffer always holds the most recent messages.
type publishQueue struct {
	mu      sync.Mutex
	entries []queuedMessage
	limit   int
	dropped uint64
}

func newPublishQueue(limit int) *publishQueue {
	if limit <= 0 {
		limit = 1
	}
	return &publishQueue{limit: limit}
}

// push appends a message, evicting the oldest entry if the buffer is full.
// Returns true if an entry was evicted.
func (q *publishQueue) push(msg queuedMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.entries) >= q.limit {
		q.entries = q.entries[1:]
		q.dropped++
		evicted = true
	}
	q.entries = append(q.entries, msg)
	return evicted
}

// drain removes and returns all buffered messages in arrival order.
func (q *publishQueue) drain() []queuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.entries
	q.entries = nil
	return out
}

func (q *publishQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *publishQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
