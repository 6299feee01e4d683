package events

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduper discards repeated (device, sequence) pairs. Each device gets a
// bounded window of recently seen sequence numbers; devices themselves are
// held in an LRU cache so an unbounded fleet cannot grow memory without
// limit. Evicting a device merely forgets its history, which at worst lets
// an old duplicate through; it never drops a fresh event.
type Deduper struct {
	mu      sync.Mutex
	devices *lru.Cache[string, *seqWindow]
	window  int
}

// NewDeduper tracks up to maxDevices devices with a window of recent
// sequence numbers each.
func NewDeduper(maxDevices, window int) (*Deduper, error) {
	if window <= 0 {
		return nil, fmt.Errorf("dedup window must be positive, got %d", window)
	}
	cache, err := lru.New[string, *seqWindow](maxDevices)
	if err != nil {
		return nil, fmt.Errorf("dedup cache: %w", err)
	}
	return &Deduper{devices: cache, window: window}, nil
}

// Seen records (deviceID, seq) and reports whether it was already present
// in the device's recent window.
func (d *Deduper) Seen(deviceID string, seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.devices.Get(deviceID)
	if !ok {
		w = newSeqWindow(d.window)
		d.devices.Add(deviceID, w)
	}
	return w.seen(seq)
}

// seqWindow remembers the last N sequence numbers of one device. Membership
// checks are O(1) via the set; the ring evicts in arrival order.
type seqWindow struct {
	set  map[uint64]struct{}
	ring []uint64
	next int
	full bool
}

func newSeqWindow(size int) *seqWindow {
	return &seqWindow{
		set:  make(map[uint64]struct{}, size),
		ring: make([]uint64, size),
	}
}

func (w *seqWindow) seen(seq uint64) bool {
	if _, dup := w.set[seq]; dup {
		return true
	}
	if w.full {
		delete(w.set, w.ring[w.next])
	}
	w.ring[w.next] = seq
	w.set[seq] = struct{}{}
	w.next++
	if w.next == len(w.ring) {
		w.next = 0
		w.full = true
	}
	return false
}
