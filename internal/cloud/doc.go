// Package cloud is the outbound REST client for the Storybox cloud API.
//
// It covers the two interactions the core needs from the cloud:
//
//   - session refresh: exchanging the long-lived refresh token for an
//     access token plus MQTT transport credentials
//   - the fallback command channel: writing player state directly when a
//     command published over MQTT goes unconfirmed
//
// The core never serves HTTP itself; this package is client-only.
package cloud
