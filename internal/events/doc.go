// Package events turns raw bus messages into routed device events. The
// router parses each message into an Envelope, discards duplicates using a
// per-device sequence window, and fans the event out to a fixed chain of
// handlers: player state first, then adventure forwarding, then the event
// log. A failing handler never blocks the ones after it.
package events
