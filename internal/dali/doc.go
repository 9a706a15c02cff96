// Package dali models the Sunricher DALI Center device domain and speaks the
// gateway's MQTT wire protocol.
//
// The gateway exposes every DALI bus device through a JSON command/report
// protocol on its own embedded broker. This package provides:
//
//   - Device, Group and Scene types with the gateway's composite device
//     identifier scheme (type code, channel, short address, gateway serial)
//   - classification helpers for the device type codes (lights, control
//     panels, motion and illuminance sensors)
//   - property codecs for the light datapoints (switch, white level,
//     brightness, colour temperature, HSV colour)
//   - a Client that issues commands, correlates responses by message ID and
//     decodes unsolicited reports into typed gateway events
//
// The Client sits on top of a gateway.Connection and inherits its threading
// model: report decoding runs on the connection's dispatch loop, while
// request/response calls block the caller's goroutine until the gateway
// answers or the context expires.
package dali
