package gateway

import "errors"

// Domain-specific errors for gateway connection management.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a link
	// that is not in the connected state.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrConnectFailed is returned when the initial connection attempt
	// fails. Later failures never surface as errors; they drive state
	// transitions instead.
	ErrConnectFailed = errors.New("gateway: connection failed")

	// ErrAlreadyConnected is returned by Connect when the link is not in
	// the disconnected state.
	ErrAlreadyConnected = errors.New("gateway: connect requested while not disconnected")

	// ErrClosed is returned when the connection has been closed and can no
	// longer be used.
	ErrClosed = errors.New("gateway: connection closed")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("gateway: topic cannot be empty")
)
