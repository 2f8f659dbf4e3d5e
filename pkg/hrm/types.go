package hrm

import (
	"fmt"
	"time"
)

// State denotes a connection state
type State int

const (

	// StateDisconnected is active while no heart rate sensor is connected
	StateDisconnected State = iota

	// StateScanning is active while scanning for a heart rate sensor
	StateScanning

	// StateConnecting is active while establishing a connection to a sensor
	StateConnecting

	// StateConnected is active while being connected to the sensor with a
	// live measurement subscription
	StateConnected
)

// String fulfils the Stringer interface
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "invalid"
}

// ConnectionStatus denotes the current status of the bluetooth device
type ConnectionStatus struct {
	Error error
	State
}

// AdapterState denotes the availability of the local bluetooth adapter / radio
type AdapterState int

const (

	// AdapterUnknown denotes an undetermined adapter state
	AdapterUnknown AdapterState = iota

	// AdapterResetting is active while the adapter is restarting
	AdapterResetting

	// AdapterUnsupported denotes a host without BLE support
	AdapterUnsupported

	// AdapterUnauthorized denotes missing permission to use the adapter
	AdapterUnauthorized

	// AdapterPoweredOff denotes a disabled adapter
	AdapterPoweredOff

	// AdapterPoweredOn denotes a fully operational adapter
	AdapterPoweredOn
)

// String fulfils the Stringer interface
func (s AdapterState) String() string {
	switch s {
	case AdapterResetting:
		return "resetting"
	case AdapterUnsupported:
		return "unsupported"
	case AdapterUnauthorized:
		return "unauthorized"
	case AdapterPoweredOff:
		return "poweredOff"
	case AdapterPoweredOn:
		return "poweredOn"
	}
	return "unknown"
}

// Available returns if the adapter is operational
func (s AdapterState) Available() bool {
	return s == AdapterPoweredOn
}

// Reading denotes a validated heart rate measurement at a certain point in time.
// RRIntervalMS is only meaningful if HasRR is set (the sensor may omit the RR
// field, or it may have been dropped during validation)
type Reading struct {
	TimeStamp    time.Time
	BPM          int
	RRIntervalMS float64
	HasRR        bool
	Smoothed     float64
}

// String fulfils the Stringer interface
func (r Reading) String() string {
	if r.HasRR {
		return fmt.Sprintf("%d bpm (RR %.1f ms)", r.BPM, r.RRIntervalMS)
	}
	return fmt.Sprintf("%d bpm", r.BPM)
}

// Readings denotes a set of readings (usually part of a training session)
type Readings []Reading
