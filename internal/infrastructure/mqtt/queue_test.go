package mqtt

import (
	"fmt"
	"testing"
)

func TestPublishQueueOrdering(t *testing.T) {
	q := newPublishQueue(8)

	for i := 0; i < 3; i++ {
		q.push(queuedMessage{topic: fmt.Sprintf("t/%d", i)})
	}

	msgs := q.drain()
	if len(msgs) != 3 {
		t.Fatalf("drained %d messages, want 3", len(msgs))
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("t/%d", i); m.topic != want {
			t.Errorf("message %d: topic %q, want %q", i, m.topic, want)
		}
	}
	if q.len() != 0 {
		t.Errorf("queue length after drain = %d, want 0", q.len())
	}
}

func TestPublishQueueDropsOldestWhenFull(t *testing.T) {
	q := newPublishQueue(3)

	for i := 0; i < 5; i++ {
		evicted := q.push(queuedMessage{topic: fmt.Sprintf("t/%d", i)})
		if i < 3 && evicted {
			t.Errorf("push %d evicted unexpectedly", i)
		}
		if i >= 3 && !evicted {
			t.Errorf("push %d should have evicted the oldest entry", i)
		}
	}

	msgs := q.drain()
	if len(msgs) != 3 {
		t.Fatalf("drained %d messages, want 3", len(msgs))
	}
	// The two oldest (t/0, t/1) were dropped.
	for i, m := range msgs {
		if want := fmt.Sprintf("t/%d", i+2); m.topic != want {
			t.Errorf("message %d: topic %q, want %q", i, m.topic, want)
		}
	}
	if got := q.droppedCount(); got != 2 {
		t.Errorf("droppedCount() = %d, want 2", got)
	}
}

func TestPublishQueueMinimumCapacity(t *testing.T) {
	q := newPublishQueue(0)

	q.push(queuedMessage{topic: "a"})
	q.push(queuedMessage{topic: "b"})

	msgs := q.drain()
	if len(msgs) != 1 || msgs[0].topic != "b" {
		t.Fatalf("drain() = %+v, want single entry for topic b", msgs)
	}
}
