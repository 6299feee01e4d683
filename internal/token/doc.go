// Package token supplies access tokens and transport credentials for the
// cloud account.
//
// The actual OAuth exchange is owned by the cloud REST client; this
// package caches the resulting grant, derives its expiry (cloud-reported,
// JWT exp claim, or a default TTL), and refreshes proactively so callers
// never hold a token inside the configured headroom of expiry.
package token
