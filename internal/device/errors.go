package device

import "errors"

// Domain-specific errors for device persistence.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a device lookup fails.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose ID is taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a device record fails validation.
	ErrInvalidDevice = errors.New("device: invalid record")
)
