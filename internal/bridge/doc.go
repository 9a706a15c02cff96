// Package bridge translates between Sunricher DALI gateways and the Gray
// Logic MQTT bus.
//
// Southbound, the bridge subscribes to command and request topics on the
// core bus, resolves the target device through the registry, and forwards
// the operation to the owning gateway's protocol client. Northbound, it
// listens on every gateway connection's event stream and publishes
// canonical state, events, availability and discovery snapshots back to
// the bus.
//
// Gateway event handlers run on each connection's dispatch loop and must
// stay non-blocking: they publish to the bus, merge state through the
// registry, and hand anything that waits on a gateway response (such as
// post-scan discovery) to a separate goroutine.
//
// A HealthReporter publishes a retained health document at a fixed
// interval, covering the bus connection and the state of every gateway
// link.
package bridge
