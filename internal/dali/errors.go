package dali

import "errors"

// Sentinel errors for the dali package.
var (
	// ErrInvalidDeviceID indicates a device identifier that does not match
	// the gateway's composite format.
	ErrInvalidDeviceID = errors.New("dali: invalid device identifier")

	// ErrRequestTimeout indicates the gateway did not answer a command
	// before the context expired.
	ErrRequestTimeout = errors.New("dali: request timed out")
)
