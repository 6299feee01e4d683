// Package telemetry ships player state snapshots and command outcomes to
// InfluxDB. The sink is optional; when disabled or unreachable the rest of
// the service runs unaffected. Writes are batched and asynchronous so the
// event path never waits on the time-series database.
package telemetry
