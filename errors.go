package stdio

import "errors"

var (
	// ErrAllocation reports that an event-flag group or thread could not
	// be created. It is never a driver status.
	ErrAllocation = errors.New("stdio: resource allocation failed")

	// ErrStreamMisuse is returned for writes to stdin and reads from
	// stdout or stderr.
	ErrStreamMisuse = errors.New("stdio: invalid operation for stream")

	// ErrTransmit is returned when the driver refuses a direct send.
	ErrTransmit = errors.New("stdio: transmit failed")

	// ErrNotInitialized is returned by Start before a successful Initialize.
	ErrNotInitialized = errors.New("stdio: channel not initialized")
	// ErrNotStarted is returned by operations that need the pipelines.
	ErrNotStarted = errors.New("stdio: channel not started")
	// ErrClosed is returned by a reset interrupted by Close.
	ErrClosed = errors.New("stdio: channel closed")
)
