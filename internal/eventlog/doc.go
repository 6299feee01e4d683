// Package eventlog persists the raw stream of device events to SQLite for
// troubleshooting and history queries. Writes go through an asynchronous
// appender so the event path never waits on disk.
package eventlog
