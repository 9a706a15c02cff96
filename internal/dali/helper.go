package dali

import (
	"fmt"
	"strconv"
	"strings"
)

// deviceIDMinLen is the shortest legal composite ID: four characters of type
// code, two of channel, two of address and at least one of gateway serial.
const deviceIDMinLen = 9

// DeviceID builds the composite device identifier the gateway uses in every
// report and command: type code, zero-padded channel, zero-padded short
// address, gateway serial.
//
// Parameters:
//   - devType: Four-character device type code
//   - channel: DALI bus channel (0-3)
//   - address: DALI short address (0-63)
//   - gatewaySN: Owning gateway serial number
//
// Returns:
//   - string: The composite identifier, e.g. "01010002DA0C8E5A6B21"
func DeviceID(devType string, channel, address int, gatewaySN string) string {
	return fmt.Sprintf("%s%02d%02d%s", devType, channel, address, gatewaySN)
}

// ParseDeviceID splits a composite identifier back into its parts.
//
// Returns:
//   - devType: Four-character type code
//   - channel: Bus channel
//   - address: Short address
//   - gatewaySN: Gateway serial
//   - error: ErrInvalidDeviceID if the identifier is malformed
func ParseDeviceID(id string) (devType string, channel, address int, gatewaySN string, err error) {
	if len(id) < deviceIDMinLen {
		return "", 0, 0, "", fmt.Errorf("%w: %q too short", ErrInvalidDeviceID, id)
	}

	devType = id[0:4]
	channel, err = strconv.Atoi(id[4:6])
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("%w: bad channel in %q", ErrInvalidDeviceID, id)
	}
	address, err = strconv.Atoi(id[6:8])
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("%w: bad address in %q", ErrInvalidDeviceID, id)
	}
	gatewaySN = id[8:]
	return devType, channel, address, gatewaySN, nil
}

// IsLightDevice reports whether the type code is in the light family.
func IsLightDevice(devType string) bool {
	return strings.HasPrefix(devType, "01")
}

// IsColorTempDevice reports whether the light supports colour temperature.
func IsColorTempDevice(devType string) bool {
	switch devType {
	case TypeTunableWhite, TypeRGBW, TypeRGBWA:
		return true
	}
	return false
}

// IsColorDevice reports whether the light supports HSV colour.
func IsColorDevice(devType string) bool {
	switch devType {
	case TypeRGB, TypeRGBW, TypeRGBWA:
		return true
	}
	return false
}

// IsMotionSensor reports whether the type code is a motion sensor.
func IsMotionSensor(devType string) bool {
	return devType == TypeMotionSensor
}

// IsIlluminanceSensor reports whether the type code is an illuminance sensor.
func IsIlluminanceSensor(devType string) bool {
	return devType == TypeIlluminanceSensor
}

// IsPanelDevice reports whether the type code is a control panel.
func IsPanelDevice(devType string) bool {
	return strings.HasPrefix(devType, "03")
}

// IsSensorDevice reports whether the type code is in the sensor family.
func IsSensorDevice(devType string) bool {
	return strings.HasPrefix(devType, "02")
}

// PanelConfig describes the buttons and actions a panel variant supports.
type PanelConfig struct {
	ButtonCount int
	Actions     []ButtonAction
}

// panelConfigs keys panel variants by type code. Button panels share the
// press/hold/double-press/release set; the rotary knob replaces hold and
// release with rotation.
var panelConfigs = map[string]PanelConfig{
	TypePanel2Button: {ButtonCount: 2, Actions: []ButtonAction{ActionPress, ActionHold, ActionDoublePress, ActionRelease}},
	TypePanel4Button: {ButtonCount: 4, Actions: []ButtonAction{ActionPress, ActionHold, ActionDoublePress, ActionRelease}},
	TypePanel6Button: {ButtonCount: 6, Actions: []ButtonAction{ActionPress, ActionHold, ActionDoublePress, ActionRelease}},
	TypePanel8Button: {ButtonCount: 8, Actions: []ButtonAction{ActionPress, ActionHold, ActionDoublePress, ActionRelease}},
	TypePanelRotary:  {ButtonCount: 1, Actions: []ButtonAction{ActionPress, ActionDoublePress, ActionRotate}},
}

// PanelConfigFor returns the button layout for a panel type code.
//
// Returns:
//   - PanelConfig: The layout
//   - bool: Whether the type code is a known panel variant
func PanelConfigFor(devType string) (PanelConfig, bool) {
	cfg, ok := panelConfigs[devType]
	return cfg, ok
}
