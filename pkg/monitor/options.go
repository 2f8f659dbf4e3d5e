package monitor

import (
	"time"

	"github.com/bluepulse/bthrm/pkg/hrm"
)

// WithDeviceID restricts connections to the sensor with the given ID
// (MAC on Linux, UUID on OS X)
func WithDeviceID(deviceID string) func(*Monitor) {
	return func(m *Monitor) {
		m.deviceID = deviceID
	}
}

// WithDeviceName restricts connections to sensors advertising the given name
func WithDeviceName(deviceName string) func(*Monitor) {
	return func(m *Monitor) {
		m.deviceName = deviceName
	}
}

// WithCentral sets the bluetooth central (radio abstraction)
func WithCentral(central Central) func(*Monitor) {
	return func(m *Monitor) {
		m.central = central
	}
}

// WithLogger sets a custom logger
func WithLogger(logger hrm.Logger) func(*Monitor) {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithSignalThreshold sets the weakest acceptable advertisement signal
// strength (dBm)
func WithSignalThreshold(rssi int) func(*Monitor) {
	return func(m *Monitor) {
		m.signalThreshold = rssi
	}
}

// WithStaleTimeout sets the maximum tolerated silence period before a
// connected sensor is treated as dead
func WithStaleTimeout(timeout time.Duration) func(*Monitor) {
	return func(m *Monitor) {
		m.staleTimeout = timeout
	}
}

// WithSmoothingFactor sets the weight of a new raw value in the exponential
// moving average over accepted BPM values
func WithSmoothingFactor(alpha float64) func(*Monitor) {
	return func(m *Monitor) {
		m.alpha = alpha
	}
}
