// Package mqtt provides the bridge's client for the Gray Logic core bus.
//
// This is the northbound link: the central broker where the core publishes
// commands and the bridge publishes device state, events, discovery payloads
// and its own health. It is distinct from the per-gateway sessions managed by
// the gateway package, which talk to each DALI gateway's embedded broker.
//
// The client wraps paho.mqtt.golang with subscription tracking, automatic
// re-subscription after reconnect, panic recovery around handlers and a Last
// Will that marks the bridge offline if it dies without saying goodbye.
// Reconnection to the core bus is delegated to paho's own retry loop; losing
// the core broker does not affect the gateway links.
package mqtt
