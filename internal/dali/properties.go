package dali

import (
	"fmt"
	"strconv"
)

// Light datapoint identifiers.
const (
	// DpidSwitch is the on/off state (bool).
	DpidSwitch = 20

	// DpidWhiteLevel is the white channel level, 0-255 (uint8).
	DpidWhiteLevel = 21

	// DpidBrightness is brightness in permille, 0-1000 (uint16).
	DpidBrightness = 22

	// DpidColorTemp is colour temperature in Kelvin, 1000-8000 (uint16).
	DpidColorTemp = 23

	// DpidColor is the HSV colour as a 12-character hex string; see
	// EncodeHSV.
	DpidColor = 24
)

// Panel datapoint identifiers: each datapoint is one button action, with the
// button number in the property's keyNo field.
const (
	dpidButtonPress       = 1
	dpidButtonHold        = 2
	dpidButtonDoublePress = 3
	dpidButtonRotate      = 4
	dpidButtonRelease     = 5
)

// Sensor datapoint identifiers.
const (
	// DpidMotionState is the occupancy state code (uint8); see
	// MotionStateFromCode.
	DpidMotionState = 1

	// DpidIlluminance is illuminance in lux (uint16).
	DpidIlluminance = 2
)

// Brightness and colour ranges.
const (
	BrightnessMax = 1000 // permille

	ColorTempMin = 1000 // Kelvin
	ColorTempMax = 8000

	// hueScale is the fixed-point multiplier for hue degrees on the wire.
	hueScale = 16

	hsvHexLen = 12
)

// buttonActions maps panel datapoints to actions.
var buttonActions = map[int]ButtonAction{
	dpidButtonPress:       ActionPress,
	dpidButtonHold:        ActionHold,
	dpidButtonDoublePress: ActionDoublePress,
	dpidButtonRotate:      ActionRotate,
	dpidButtonRelease:     ActionRelease,
}

// ButtonActionForDpid translates a panel datapoint identifier.
func ButtonActionForDpid(dpid int) (ButtonAction, bool) {
	action, ok := buttonActions[dpid]
	return action, ok
}

// BrightnessToPercent converts the gateway's permille brightness to percent.
func BrightnessToPercent(permille int) float64 {
	if permille < 0 {
		permille = 0
	}
	if permille > BrightnessMax {
		permille = BrightnessMax
	}
	return float64(permille) / 10
}

// PercentToBrightness converts percent to the gateway's permille scale.
func PercentToBrightness(percent float64) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return int(percent * 10)
}

// EncodeHSV packs a colour into the gateway's 12-character hex format: three
// 16-bit big-endian fields holding hue in sixteenths of a degree, then
// saturation and value in permille.
//
// Parameters:
//   - hue: Degrees, 0-360
//   - sat: 0-1
//   - val: 0-1
func EncodeHSV(hue, sat, val float64) string {
	hue = clamp(hue, 0, 360)
	sat = clamp(sat, 0, 1)
	val = clamp(val, 0, 1)
	return fmt.Sprintf("%04x%04x%04x",
		int(hue*hueScale),
		int(sat*1000),
		int(val*1000),
	)
}

// DecodeHSV unpacks a wire colour string produced by EncodeHSV.
//
// Returns:
//   - hue: Degrees, 0-360
//   - sat: 0-1
//   - val: 0-1
//   - error: Non-nil if the string is not 12 hex characters
func DecodeHSV(s string) (hue, sat, val float64, err error) {
	if len(s) != hsvHexLen {
		return 0, 0, 0, fmt.Errorf("hsv string %q: want %d hex chars", s, hsvHexLen)
	}

	h, err := strconv.ParseUint(s[0:4], 16, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("hsv hue %q: %w", s[0:4], err)
	}
	sv, err := strconv.ParseUint(s[4:8], 16, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("hsv saturation %q: %w", s[4:8], err)
	}
	vv, err := strconv.ParseUint(s[8:12], 16, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("hsv value %q: %w", s[8:12], err)
	}

	hue = clamp(float64(h)/hueScale, 0, 360)
	sat = clamp(float64(sv)/1000, 0, 1)
	val = clamp(float64(vv)/1000, 0, 1)
	return hue, sat, val, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SwitchProperty builds the on/off datapoint for a write command.
func SwitchProperty(on bool) Property {
	return Property{Dpid: DpidSwitch, DataType: "bool", Value: on}
}

// BrightnessProperty builds the brightness datapoint from a percentage.
func BrightnessProperty(percent float64) Property {
	return Property{Dpid: DpidBrightness, DataType: "uint16", Value: PercentToBrightness(percent)}
}

// ColorTempProperty builds the colour temperature datapoint, clamped to the
// gateway's supported range.
func ColorTempProperty(kelvin int) Property {
	if kelvin < ColorTempMin {
		kelvin = ColorTempMin
	}
	if kelvin > ColorTempMax {
		kelvin = ColorTempMax
	}
	return Property{Dpid: DpidColorTemp, DataType: "uint16", Value: kelvin}
}

// ColorProperty builds the HSV colour datapoint.
func ColorProperty(hue, sat, val float64) Property {
	return Property{Dpid: DpidColor, DataType: "string", Value: EncodeHSV(hue, sat, val)}
}

// WhiteLevelProperty builds the white channel datapoint, 0-255.
func WhiteLevelProperty(level int) Property {
	if level < 0 {
		level = 0
	}
	if level > 255 {
		level = 255
	}
	return Property{Dpid: DpidWhiteLevel, DataType: "uint8", Value: level}
}
