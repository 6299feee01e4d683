// Package player maintains the in-memory state registry for every audio
// player the service has seen. State is built incrementally from device
// events; the registry guarantees per-player monotonicity in device time and
// hands out copies only, never references into its own storage.
package player
