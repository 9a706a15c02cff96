// Package api implements the local HTTP REST API and WebSocket server for
// the DALI bridge.
//
// This package provides:
//   - Read endpoints for the device inventory, gateway links, groups and scenes
//   - Command and scan endpoints that publish onto the Gray Logic bus
//   - WebSocket hub for real-time state and event broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server is a thin façade over the device registry and the bus. Reads
// come straight from the registry cache. Writes never touch the gateway
// directly: a command POST is marshalled into the same bus message Core would
// send and published to the bridge's command topic, so the API exercises the
// exact path production traffic takes. State changes flow back via bus
// subscriptions and are broadcast to WebSocket clients.
//
// # Graceful Degradation
//
// The server operates with the bus disconnected: reads and WebSocket
// connections work, only commands and scan requests fail with 503.
package api
