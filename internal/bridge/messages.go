package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
)

// MQTT message types for communication between Gray Logic Core and the
// DALI bridge. Topic layout lives in internal/infrastructure/mqtt.

// CommandMessage is sent from Core to the bridge to execute a device
// command. Topic: graylogic/command/dali/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with
	// acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the DALI device identifier.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "on", "off", "brightness").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50} for brightness
	//   {"kelvin": 4000} for color_temp
	//   {"hue": 120, "saturation": 1, "value": 0.8} for color
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source"`
}

// Device command names accepted by the bridge.
const (
	CmdOn         = "on"
	CmdOff        = "off"
	CmdBrightness = "brightness"
	CmdColorTemp  = "color_temp"
	CmdColor      = "color"
	CmdWhiteLevel = "white_level"
	CmdRead       = "read"
)

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and forwarded to the
	// gateway.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/dali/{device_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the DALI device identifier.
	DeviceID string `json:"device_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Protocol is the protocol identifier ("dali").
	Protocol string `json:"protocol"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "GATEWAY_UNREACHABLE").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeGatewayUnreachable = "GATEWAY_UNREACHABLE"
	ErrCodeInvalidCommand     = "INVALID_COMMAND"
	ErrCodeInvalidParameters  = "INVALID_PARAMETERS"
	ErrCodeUnknownDevice      = "UNKNOWN_DEVICE"
	ErrCodeUnsupported        = "UNSUPPORTED"
	ErrCodeBridgeError        = "BRIDGE_ERROR"
)

// StateMessage is sent from the bridge to Core when device state changes.
// Topic: graylogic/state/dali/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the DALI device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the current device state.
	// Structure depends on device type:
	//   Light: {"on": true, "brightness": 50, "color_temp": 4000}
	//   Motion sensor: {"motion": "presence"}
	//   Illuminance sensor: {"illuminance": 420}
	State map[string]any `json:"state"`

	// Protocol is the protocol identifier ("dali").
	Protocol string `json:"protocol"`

	// GatewaySN is the serial of the gateway the device sits behind.
	GatewaySN string `json:"gateway_sn"`
}

// EventMessage is sent from the bridge to Core for momentary events that
// are not state (button presses, rotations, motion triggers).
// Topic: graylogic/event/dali/{device_id}
// QoS: 1, Retained: No
type EventMessage struct {
	// DeviceID is the DALI device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the event occurred (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Event is the event name (e.g., "press", "hold", "rotate", "motion").
	Event string `json:"event"`

	// Data contains event-specific values.
	// Examples:
	//   {"key": 2} for press
	//   {"key": 1, "delta": -3} for rotate
	Data map[string]any `json:"data,omitempty"`

	// GatewaySN is the serial of the reporting gateway.
	GatewaySN string `json:"gateway_sn"`
}

// AvailabilityMessage is the retained payload on availability topics.
type AvailabilityMessage struct {
	// Online reports whether the device or gateway link is reachable.
	Online bool `json:"online"`

	// Timestamp is when availability last changed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`
}

// RequestMessage is sent from Core to the bridge for request/response
// operations. Topic: graylogic/request/dali/{operation}
type RequestMessage struct {
	// RequestID uniquely identifies this request for correlation.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// GatewaySN targets a specific gateway (required for scan, scene and
	// group operations).
	GatewaySN string `json:"gateway_sn,omitempty"`

	// DeviceID targets a specific device (for read_device).
	DeviceID string `json:"device_id,omitempty"`

	// Parameters contains operation-specific values.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Request operation names, taken from the request topic's last segment.
const (
	OpScan       = "scan"
	OpStopScan   = "stop_scan"
	OpDiscover   = "discover"
	OpScene      = "scene"
	OpGroup      = "group"
	OpReadDevice = "read_device"
)

// ResponseMessage is sent from the bridge to Core in response to a request.
// Topic: graylogic/response/dali/{request_id}
type ResponseMessage struct {
	// RequestID is the ID from the original request.
	RequestID string `json:"request_id"`

	// Timestamp is when the response was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the request succeeded.
	Success bool `json:"success"`

	// Data contains the response payload (if successful).
	Data map[string]any `json:"data,omitempty"`

	// Error contains error details (if failed).
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	// Code is the error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// DiscoveryMessage is the retained inventory snapshot published after a
// bus scan or discovery refresh. Topic: graylogic/discovery/dali
type DiscoveryMessage struct {
	// Timestamp is when discovery was performed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// GatewaySN is the gateway the inventory belongs to.
	GatewaySN string `json:"gateway_sn"`

	// Devices contains the discovered devices.
	Devices []DiscoveredDevice `json:"devices"`

	// Groups contains the configured DALI groups.
	Groups []dali.Group `json:"groups"`

	// Scenes contains the configured DALI scenes.
	Scenes []dali.Scene `json:"scenes"`
}

// DiscoveredDevice represents a device found during a bus scan.
type DiscoveredDevice struct {
	// ID is the DALI device identifier.
	ID string `json:"id"`

	// Type is the raw device type code (e.g., "0101").
	Type string `json:"type"`

	// Name is the gateway-assigned display name.
	Name string `json:"name"`

	// Channel is the DALI bus channel on the gateway.
	Channel int `json:"channel"`

	// Address is the short address on the bus.
	Address int `json:"address"`

	// Capabilities lists what the device can do (e.g., ["on_off", "dim"]).
	Capabilities []string `json:"capabilities"`

	// Manufacturer is the device manufacturer.
	Manufacturer string `json:"manufacturer"`
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  "dali",
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckFailed,
		Protocol:  "dali",
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID, gatewaySN string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  "dali",
		GatewaySN: gatewaySN,
	}
}

// NewEventMessage creates an event message for a device.
func NewEventMessage(deviceID, gatewaySN, event string, data map[string]any) EventMessage {
	return EventMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Event:     event,
		Data:      data,
		GatewaySN: gatewaySN,
	}
}

// NewAvailabilityMessage creates a retained availability payload.
func NewAvailabilityMessage(online bool) AvailabilityMessage {
	return AvailabilityMessage{
		Online:    online,
		Timestamp: time.Now().UTC(),
	}
}

// capabilitiesFor derives the capability list from a device type code.
func capabilitiesFor(devType string) []string {
	switch {
	case dali.IsColorDevice(devType) && dali.IsColorTempDevice(devType):
		return []string{"on_off", "dim", "color_temp", "color"}
	case dali.IsColorDevice(devType):
		return []string{"on_off", "dim", "color"}
	case dali.IsColorTempDevice(devType):
		return []string{"on_off", "dim", "color_temp"}
	case dali.IsLightDevice(devType):
		return []string{"on_off", "dim"}
	case dali.IsMotionSensor(devType):
		return []string{"motion"}
	case dali.IsIlluminanceSensor(devType):
		return []string{"illuminance"}
	case dali.IsPanelDevice(devType):
		return []string{"buttons"}
	default:
		return nil
	}
}
