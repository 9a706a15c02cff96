// Package gateway manages the link to a DALI Center gateway.
//
// Each gateway runs its own MQTT broker; the bridge holds one Connection
// per gateway. A Connection combines three pieces:
//
//   - A connection state machine (Disconnected, Connecting, Connected,
//     Reconnecting) governing which operations are permitted.
//   - A dispatch loop: a single goroutine that owns all mutable connection
//     state. Events from paho's network goroutines, timer callbacks and API
//     calls are marshalled onto it, so no locks guard the state machine.
//   - A reconnection scheduler driving exponential-backoff attempts
//     (1s doubling to a 60s cap, ±10% jitter) while in Reconnecting.
//
// # Ordering and delivery
//
// Listener callbacks run on the dispatch loop, in registration order, and
// each listener sees its own events in the order they were marshalled.
// Availability notifications fire exactly once per state transition, never
// per raw network event: a flapping socket that reports loss five times
// produces one transition into Reconnecting and one unavailability event.
//
// # Failure handling
//
// Only the initial Connect reports an error to its caller. Everything later
// (link loss, failed reconnection attempts) becomes a state transition
// plus an availability event, logged at reduced severity because an
// unreachable gateway during a network outage is expected. An explicit
// Disconnect while reconnecting cancels the pending attempt and discards
// the result of any attempt already in flight; a late success never
// resurrects the connection.
//
// # Legacy synchronous mode
//
// Constructing with Options.SyncDispatch disables the loop: listeners run
// inline on whichever goroutine raised the event. This exists for embedders
// that serialise all access themselves and accept the races.
package gateway
