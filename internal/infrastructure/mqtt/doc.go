// Package mqtt wraps the Eclipse Paho client with the connection behaviour
// the device bus needs: credentials fetched from a token provider, a single
// invalidate-and-retry on credential rejection, indefinite reconnection with
// exponential backoff, proactive connection cycling before token expiry,
// subscription restoration after reconnect, and a bounded buffer for
// publishes attempted while offline.
//
// Paho's built-in auto-reconnect is disabled because it reuses the
// credentials captured at construction time; tokens here are short-lived,
// so every attempt must fetch fresh ones.
package mqtt
