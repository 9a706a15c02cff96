package dali

import "fmt"

// Topics builds the MQTT topics on a gateway's embedded broker.
//
// The gateway namespaces everything under its serial number: commands go
// down on one topic, command responses come back on a second, and
// unsolicited device reports arrive on a third.
type Topics struct {
	// SerialNumber of the gateway.
	SerialNumber string
}

// Command is the topic the gateway accepts command envelopes on.
func (t Topics) Command() string {
	return fmt.Sprintf("dali/%s/command", t.SerialNumber)
}

// Response is the topic command responses arrive on, correlated to the
// request by message ID.
func (t Topics) Response() string {
	return fmt.Sprintf("dali/%s/response", t.SerialNumber)
}

// Report is the topic for unsolicited device reports: status, online
// presence, energy, sensor readings, scan progress.
func (t Topics) Report() string {
	return fmt.Sprintf("dali/%s/report", t.SerialNumber)
}
