package hrm

import "fmt"

// ErrorKind classifies the error conditions surfaced by a monitor
type ErrorKind int

const (

	// ErrUnauthorized denotes missing permission to use the bluetooth adapter
	ErrUnauthorized ErrorKind = iota

	// ErrPoweredOff denotes a disabled bluetooth adapter
	ErrPoweredOff

	// ErrUnsupported denotes a host without BLE support
	ErrUnsupported

	// ErrServiceNotFound denotes a connected peripheral not exposing the
	// heart rate service
	ErrServiceNotFound

	// ErrCharacteristicNotFound denotes a heart rate service without the
	// measurement characteristic
	ErrCharacteristicNotFound

	// ErrServiceDiscoveryFailed denotes a failed service discovery
	ErrServiceDiscoveryFailed

	// ErrCharacteristicDiscoveryFailed denotes a failed characteristic
	// discovery (or a failure to enable measurement notifications)
	ErrCharacteristicDiscoveryFailed

	// ErrReadFailed denotes a transient notification delivery failure
	ErrReadFailed

	// ErrInvalidData denotes a decodable measurement that failed validation
	// (e.g. an implausible heart rate). Diagnostic only, the offending
	// reading is dropped
	ErrInvalidData
)

// String fulfils the Stringer interface
func (k ErrorKind) String() string {
	switch k {
	case ErrUnauthorized:
		return "unauthorized"
	case ErrPoweredOff:
		return "poweredOff"
	case ErrUnsupported:
		return "unsupported"
	case ErrServiceNotFound:
		return "serviceNotFound"
	case ErrCharacteristicNotFound:
		return "characteristicNotFound"
	case ErrServiceDiscoveryFailed:
		return "serviceDiscoveryFailed"
	case ErrCharacteristicDiscoveryFailed:
		return "characteristicDiscoveryFailed"
	case ErrReadFailed:
		return "readFailed"
	case ErrInvalidData:
		return "invalidData"
	}
	return "invalid"
}

// AdapterError denotes a classified error condition, optionally wrapping the
// underlying cause
type AdapterError struct {
	Kind   ErrorKind
	Reason error
}

// Error fulfils the error interface
func (e *AdapterError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return e.Kind.String()
}

// Unwrap provides access to the underlying cause, if any
func (e *AdapterError) Unwrap() error {
	return e.Reason
}

// UserActionable returns if resolving the condition requires user interaction
// (such as granting permission or enabling bluetooth) rather than an automatic
// retry
func (e *AdapterError) UserActionable() bool {
	switch e.Kind {
	case ErrUnauthorized, ErrPoweredOff, ErrUnsupported:
		return true
	}
	return false
}
