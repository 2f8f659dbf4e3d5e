package hrm

import "time"

// Monitor denotes a heart rate monitor client
type Monitor interface {

	// Start begins scanning for a heart rate sensor and connects to the first
	// acceptable one. A no-op if a session is already in progress
	Start()

	// Stop terminates any session, cancelling pending reconnection attempts
	// and releasing the sensor. Idempotent regardless of the current state
	Stop()

	// Reconnect manually triggers the recovery path, dropping any current
	// connection and scheduling a fresh connection attempt
	Reconnect()

	// ConnectionStatus returns the current connection status of the sensor
	ConnectionStatus() ConnectionStatus

	// AdapterState returns the current state of the bluetooth adapter
	AdapterState() AdapterState

	// AdapterAvailable returns if the bluetooth adapter is operational
	AdapterAvailable() bool

	// CurrentReading returns the most recent accepted reading, if any
	CurrentReading() (Reading, bool)

	// SmoothedBPM returns the exponentially smoothed heart rate (zero if no
	// reading has been accepted since the last reset)
	SmoothedBPM() float64

	// ConnectedTime returns the duration of the current connected session
	ConnectedTime() time.Duration

	// SetStateChangeHandler defines a handler function that is called upon state change
	SetStateChangeHandler(fn func(status ConnectionStatus))

	// SetStateChangeChannel defines a channel that is fed upon state change
	SetStateChangeChannel(ch chan ConnectionStatus)

	// SetReadingHandler defines a handler function that is called upon retrieval of data
	SetReadingHandler(fn func(r Reading))

	// SetReadingChannel defines a channel that is fed upon retrieval of data
	SetReadingChannel(ch chan Reading)

	// SetErrorHandler defines a handler function that is called upon errors
	SetErrorHandler(fn func(err *AdapterError))

	// SetErrorChannel defines a channel that is fed upon errors
	SetErrorChannel(ch chan *AdapterError)

	// Close terminates the connection to the device and releases the adapter
	Close() error
}
