// Package adventure drives branching stories on players. A story is a graph
// of chapters connected by left/right button edges; the engine tracks each
// player's position per story, applies button presses as transitions, and
// plays the new chapter's track on every successful move. Positions are
// ephemeral by default, with an optional SQLite-backed store for resuming
// across restarts.
package adventure
