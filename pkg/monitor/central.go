package monitor

import (
	"errors"

	"github.com/bluepulse/bthrm/pkg/hrm"
)

// Standard Bluetooth SIG identifiers of the heart rate service and its
// measurement characteristic
const (
	heartRateService          = "180d"
	measurementCharacteristic = "2a37"
)

// ErrNotFound is returned by peripheral discovery when the discovery itself
// succeeded but the requested service / characteristic is not present
var ErrNotFound = errors.New("not found")

// CentralEvents bundles the callbacks delivered by a Central. Callbacks may be
// invoked from arbitrary goroutines, the monitor serializes them internally
type CentralEvents struct {
	AdapterStateChanged    func(state hrm.AdapterState)
	PeripheralDiscovered   func(p Peripheral, rssi int)
	PeripheralConnected    func(p Peripheral, err error)
	PeripheralDisconnected func(p Peripheral, err error)
}

// Peripheral represents a remote heart rate sensor
type Peripheral interface {

	// ID returns the platform identifier of the peripheral (MAC on Linux)
	ID() string

	// Name returns the advertised device name
	Name() string

	// DiscoverService locates the service with the given UUID on the
	// peripheral, returning ErrNotFound if it is not exposed
	DiscoverService(serviceUUID string) error

	// DiscoverCharacteristic locates the characteristic with the given UUID
	// within a previously discovered service, returning ErrNotFound if it is
	// not exposed
	DiscoverCharacteristic(serviceUUID, charUUID string) error

	// SetNotify enables measurement notifications on the previously
	// discovered characteristic, delivering payloads (or transient read
	// errors) to fn. A nil fn disables the subscription
	SetNotify(fn func(data []byte, err error)) error
}

// Central abstracts the local bluetooth radio so that the connection logic
// does not depend on a specific BLE binding
type Central interface {

	// Init registers the event callbacks and powers up the radio
	Init(events CentralEvents) error

	// State returns the current adapter state
	State() hrm.AdapterState

	// Scan starts discovery, filtered to peripherals advertising the given
	// service UUID
	Scan(serviceUUID string) error

	// StopScan terminates an ongoing discovery
	StopScan() error

	// Connect establishes a connection to a discovered peripheral
	Connect(p Peripheral) error

	// CancelConnection drops an established or pending connection
	CancelConnection(p Peripheral) error

	// Close releases the radio
	Close() error
}
