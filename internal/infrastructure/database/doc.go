// Package database provides SQLite connectivity for Storybox Core.
//
// This package manages:
//   - Connection lifecycle with WAL mode and busy timeout pragmas
//   - Schema initialisation (event log, adventure sessions)
//   - Health checks
//
// SQLite is deliberately used as an embedded, zero-administration store.
// The local database holds only the event log and optional adventure
// session positions; everything else is owned by the cloud.
package database
