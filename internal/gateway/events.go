package gateway

// EventType is a named event category listeners can register for.
type EventType string

// Event categories delivered to listeners.
//
// EventAvailability is emitted by the connection itself, exactly once per
// state transition. The remaining categories are emitted by the protocol
// layer as it decodes gateway reports.
const (
	// EventAvailability carries a bool: the gateway link became available
	// or unavailable.
	EventAvailability EventType = "availability"

	// EventOnlineStatus carries a bool: a device went online or offline.
	EventOnlineStatus EventType = "online_status"

	// EventDeviceStatus carries []dali.Property: a device property report.
	EventDeviceStatus EventType = "device_status"

	// EventEnergyReport carries a float64: cumulative energy in Wh.
	EventEnergyReport EventType = "energy_report"

	// EventMotionStatus carries a dali.MotionState.
	EventMotionStatus EventType = "motion_status"

	// EventIlluminanceStatus carries a float64: illuminance in lux.
	EventIlluminanceStatus EventType = "illuminance_status"

	// EventPanelButton carries a dali.ButtonEvent from a control panel.
	EventPanelButton EventType = "panel_button"

	// EventScanProgress carries a dali.ScanProgress update during bus scans.
	EventScanProgress EventType = "scan_progress"
)

// Event is a single notification delivered to registered listeners.
type Event struct {
	// Type is the event category.
	Type EventType

	// DeviceID identifies the originating device, or is empty for
	// gateway-level events (availability, scan progress).
	DeviceID string

	// GatewaySN is the serial of the gateway the event came from.
	GatewaySN string

	// Data is the category-specific payload; see the EventType constants
	// for the concrete type carried by each category.
	Data any
}

// Handler is a listener callback.
//
// When the connection was built with a dispatch loop (the default), handlers
// run on that loop: they may touch connection-owned state freely but must not
// block, and must not call Connect, Disconnect or Close synchronously (those
// wait on the loop the handler is occupying). In synchronous mode handlers
// run on the calling goroutine.
type Handler func(Event)
