package dali

// Gateway hardware identity.
const (
	// Manufacturer of the DALI Center gateway line.
	Manufacturer = "Sunricher"

	// GatewayModel is the hardware model of the supported gateway.
	GatewayModel = "SR-GW-EDA"
)

// Device type codes as reported by the gateway. The first two characters
// select the family (01 lights, 02 sensors, 03 panels), the last two the
// variant.
const (
	TypeDimmer       = "0101" // DT6 dimmable ballast
	TypeTunableWhite = "0102" // DT8 colour temperature
	TypeRGB          = "0103" // DT8 RGB
	TypeRGBW         = "0104" // DT8 RGBW
	TypeRGBWA        = "0105" // DT8 RGBWA

	TypeMotionSensor      = "0201"
	TypeIlluminanceSensor = "0202"

	TypePanelRotary  = "0300"
	TypePanel2Button = "0302"
	TypePanel4Button = "0304"
	TypePanel6Button = "0306"
	TypePanel8Button = "0308"
)

// Device is one DALI bus device behind a gateway.
type Device struct {
	// ID is the composite identifier: type code, zero-padded channel and
	// short address, gateway serial. See DeviceID.
	ID string `json:"dev_id"`

	// Type is the four-character device type code.
	Type string `json:"dev_type"`

	// Channel is the DALI bus channel on the gateway (0-3).
	Channel int `json:"channel"`

	// Address is the DALI short address on the channel (0-63).
	Address int `json:"address"`

	// Name is the label assigned in the gateway's commissioning tool.
	Name string `json:"name"`

	// GatewaySN is the serial number of the owning gateway.
	GatewaySN string `json:"gw_sn"`

	// Online reports the device's bus presence as of the last gateway
	// report.
	Online bool `json:"status"`
}

// Group is a DALI group configured on one gateway channel.
type Group struct {
	// ID is the DALI group address (0-15).
	ID int `json:"group_id"`

	Channel   int    `json:"channel"`
	Name      string `json:"name"`
	GatewaySN string `json:"gw_sn"`
}

// Scene is a DALI scene configured on one gateway channel.
type Scene struct {
	// ID is the DALI scene number (0-15).
	ID int `json:"scene_id"`

	Channel   int    `json:"channel"`
	Name      string `json:"name"`
	GatewaySN string `json:"gw_sn"`
}

// Property is one datapoint in a device report or command. Reports echo the
// datapoint under either "dpid" or "id" depending on firmware; use Code to
// read it uniformly.
type Property struct {
	Dpid     int    `json:"dpid,omitempty"`
	AltID    int    `json:"id,omitempty"`
	DataType string `json:"dataType,omitempty"`

	// KeyNo is the button number on panel devices, zero otherwise.
	KeyNo int `json:"keyNo,omitempty"`

	Value any `json:"value"`
}

// Code returns the datapoint identifier regardless of which JSON key the
// firmware used.
func (p Property) Code() int {
	if p.Dpid != 0 {
		return p.Dpid
	}
	return p.AltID
}

// MotionState is the occupancy state reported by a motion sensor.
type MotionState string

// Motion sensor states, in the order the gateway numbers them.
const (
	MotionNoMotion  MotionState = "no_motion"
	MotionDetected  MotionState = "motion"
	MotionVacant    MotionState = "vacant"
	MotionPresence  MotionState = "presence"
	MotionOccupancy MotionState = "occupancy"
)

// motionStates maps the gateway's numeric state codes.
var motionStates = map[int]MotionState{
	0: MotionNoMotion,
	1: MotionDetected,
	2: MotionVacant,
	3: MotionPresence,
	4: MotionOccupancy,
}

// MotionStateFromCode translates a gateway state code; unknown codes map to
// no_motion.
func MotionStateFromCode(code int) MotionState {
	if s, ok := motionStates[code]; ok {
		return s
	}
	return MotionNoMotion
}

// ButtonAction is what happened to a panel button.
type ButtonAction string

// Panel button actions.
const (
	ActionPress       ButtonAction = "press"
	ActionHold        ButtonAction = "hold"
	ActionDoublePress ButtonAction = "double_press"
	ActionRelease     ButtonAction = "release"
	ActionRotate      ButtonAction = "rotate"
)

// ButtonEvent is a decoded panel interaction.
type ButtonEvent struct {
	// Key is the button number, starting at 1.
	Key int

	Action ButtonAction

	// RotateValue carries the signed rotation delta for rotary panels,
	// zero for plain button actions.
	RotateValue int
}

// ScanProgress is a bus scan status update.
type ScanProgress struct {
	// Percent is scan completion, 0-100.
	Percent int `json:"progress"`

	// Found is the number of devices discovered so far.
	Found int `json:"found"`

	// Done reports scan completion; the final report carries the full
	// device list via discovery.
	Done bool `json:"done"`
}
