package mqtt

import "fmt"

// bridgeType is this bridge's segment in the Gray Logic topic scheme. The
// core addresses each bridge family by type: commands arrive on
// command/{type}/{device} and the bridge answers on state/{type}/{device}.
const bridgeType = "dali"

// Topics provides type-safe builders for the Gray Logic bus topic structure.
//
// Zero value is ready to use:
//
//	topic := mqtt.Topics{}.DeviceState("01010002DA0C8E5A6B21")
type Topics struct{}

// Health returns the bridge's health topic. Retained; also the Last Will
// target, so subscribers always see the current liveness.
func (Topics) Health() string {
	return fmt.Sprintf("graylogic/health/%s", bridgeType)
}

// DeviceState returns the retained canonical state topic for a device.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("graylogic/state/%s/%s", bridgeType, deviceID)
}

// DeviceEvent returns the event topic for a device. Events (button presses,
// motion) are moments, not state: never retained.
func (Topics) DeviceEvent(deviceID string) string {
	return fmt.Sprintf("graylogic/event/%s/%s", bridgeType, deviceID)
}

// DeviceAvailability returns the retained availability topic for a device.
func (Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("graylogic/availability/%s/%s", bridgeType, deviceID)
}

// GatewayAvailability returns the retained availability topic for a gateway
// link; every device behind the gateway inherits it.
func (Topics) GatewayAvailability(serialNumber string) string {
	return fmt.Sprintf("graylogic/availability/%s/gateway/%s", bridgeType, serialNumber)
}

// Discovery returns the retained discovery topic carrying the full device,
// group and scene inventory.
func (Topics) Discovery() string {
	return fmt.Sprintf("graylogic/discovery/%s", bridgeType)
}

// Command returns the command topic for a specific device.
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("graylogic/command/%s/%s", bridgeType, deviceID)
}

// AllCommands returns the wildcard the bridge subscribes to for device
// commands.
func (Topics) AllCommands() string {
	return fmt.Sprintf("graylogic/command/%s/+", bridgeType)
}

// Ack returns the acknowledgment topic for a device command. Never
// retained.
func (Topics) Ack(deviceID string) string {
	return fmt.Sprintf("graylogic/ack/%s/%s", bridgeType, deviceID)
}

// ScanProgress returns the event topic carrying bus scan progress for a
// gateway.
func (Topics) ScanProgress(serialNumber string) string {
	return fmt.Sprintf("graylogic/event/%s/scan/%s", bridgeType, serialNumber)
}

// Request returns the request topic for a named bridge operation (scan,
// discovery refresh).
func (Topics) Request(operation string) string {
	return fmt.Sprintf("graylogic/request/%s/%s", bridgeType, operation)
}

// AllRequests returns the wildcard the bridge subscribes to for operation
// requests.
func (Topics) AllRequests() string {
	return fmt.Sprintf("graylogic/request/%s/+", bridgeType)
}

// Response returns the response topic correlated to a request by its ID.
func (Topics) Response(requestID string) string {
	return fmt.Sprintf("graylogic/response/%s/%s", bridgeType, requestID)
}
