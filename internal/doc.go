// Package internal holds the Event Viewer server internals.
//
// Layout:
//   - api: routing, middleware, handlers and problem responses
//   - domain: users, sessions, events and notifications
//   - storage: Postgres repositories and poster image stores
//   - realtime: WebSocket hub and the optional Redis fan-out bus
//   - jobs: River workers for the nightly auth sweep
//   - auth, audit, config, email, metrics, telemetry: shared infrastructure
package internal
