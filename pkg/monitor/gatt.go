package monitor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bluepulse/bthrm/pkg/hrm"
	"github.com/fako1024/gatt"
)

// gattCentral implements the Central interface on top of the gatt package
type gattCentral struct {
	device gatt.Device
	events CentralEvents

	mu    sync.RWMutex
	state hrm.AdapterState
}

func newGattCentral() (*gattCentral, error) {
	device, err := gatt.NewDevice(defaultBTClientOptions...)
	if err != nil {
		return nil, err
	}

	return &gattCentral{device: device}, nil
}

// Init registers the event callbacks and powers up the radio
func (c *gattCentral) Init(events CentralEvents) error {
	c.events = events

	c.device.Handle(
		gatt.AddPeripheralDiscovered(c.onPeriphDiscovered),
		gatt.AddPeripheralConnected(c.onPeriphConnected),
		gatt.AddPeripheralDisconnected(c.onPeriphDisconnected),
	)

	return c.device.Init(c.onStateChanged)
}

// State returns the current adapter state
func (c *gattCentral) State() hrm.AdapterState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Scan starts discovery, filtered to peripherals advertising the given
// service UUID
func (c *gattCentral) Scan(serviceUUID string) error {
	return c.device.Scan([]gatt.UUID{gatt.MustParseUUID(serviceUUID)}, false)
}

// StopScan terminates an ongoing discovery
func (c *gattCentral) StopScan() error {
	return c.device.StopScanning()
}

// Connect establishes a connection to a discovered peripheral
func (c *gattCentral) Connect(p Peripheral) error {
	gp, ok := p.(*gattPeripheral)
	if !ok {
		return fmt.Errorf("unexpected peripheral type %T", p)
	}
	return c.device.Connect(gp.p)
}

// CancelConnection drops an established or pending connection
func (c *gattCentral) CancelConnection(p Peripheral) error {
	gp, ok := p.(*gattPeripheral)
	if !ok {
		return fmt.Errorf("unexpected peripheral type %T", p)
	}
	return c.device.CancelConnection(gp.p)
}

// Close releases the radio
func (c *gattCentral) Close() error {
	_ = c.device.StopScanning()
	return c.device.RemoveAllServices()
}

////////////////////////////////////////////////////////////////////////////////

func (c *gattCentral) onStateChanged(d gatt.Device, s gatt.State) {
	state := adapterState(s)

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	if c.events.AdapterStateChanged != nil {
		c.events.AdapterStateChanged(state)
	}
}

func (c *gattCentral) onPeriphDiscovered(p gatt.Peripheral, _ *gatt.Advertisement, rssi int) {
	if c.events.PeripheralDiscovered != nil {
		c.events.PeripheralDiscovered(&gattPeripheral{p: p}, rssi)
	}
}

func (c *gattCentral) onPeriphConnected(p gatt.Peripheral, err error) {
	if c.events.PeripheralConnected != nil {
		c.events.PeripheralConnected(&gattPeripheral{p: p}, err)
	}
}

func (c *gattCentral) onPeriphDisconnected(p gatt.Peripheral, err error) {
	if c.events.PeripheralDisconnected != nil {
		c.events.PeripheralDisconnected(&gattPeripheral{p: p}, err)
	}
}

func adapterState(s gatt.State) hrm.AdapterState {
	switch s {
	case gatt.StatePoweredOn:
		return hrm.AdapterPoweredOn
	case gatt.StatePoweredOff:
		return hrm.AdapterPoweredOff
	case gatt.StateUnauthorized:
		return hrm.AdapterUnauthorized
	case gatt.StateUnsupported:
		return hrm.AdapterUnsupported
	case gatt.StateResetting:
		return hrm.AdapterResetting
	}
	return hrm.AdapterUnknown
}

////////////////////////////////////////////////////////////////////////////////

// gattPeripheral wraps a gatt peripheral together with the discovered heart
// rate service handles
type gattPeripheral struct {
	p    gatt.Peripheral
	svc  *gatt.Service
	char *gatt.Characteristic
}

// ID returns the platform identifier of the peripheral (MAC on Linux)
func (gp *gattPeripheral) ID() string {
	return gp.p.ID()
}

// Name returns the advertised device name
func (gp *gattPeripheral) Name() string {
	return gp.p.Name()
}

// DiscoverService locates the service with the given UUID on the peripheral
func (gp *gattPeripheral) DiscoverService(serviceUUID string) error {
	ss, err := gp.p.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("failed to discover services: %w", err)
	}

	for _, s := range ss {
		if strings.EqualFold(s.UUID().String(), serviceUUID) {
			gp.svc = s
			return nil
		}
	}

	return ErrNotFound
}

// DiscoverCharacteristic locates the characteristic with the given UUID
// within the previously discovered service
func (gp *gattPeripheral) DiscoverCharacteristic(serviceUUID, charUUID string) error {
	if gp.svc == nil || !strings.EqualFold(gp.svc.UUID().String(), serviceUUID) {
		return fmt.Errorf("service %s has not been discovered", serviceUUID)
	}

	cs, err := gp.p.DiscoverCharacteristics(nil, gp.svc)
	if err != nil {
		return fmt.Errorf("failed to discover characteristics: %w", err)
	}

	for _, c := range cs {
		if strings.EqualFold(c.UUID().String(), charUUID) {

			// Descriptor discovery is required before notifications can be
			// enabled on the characteristic
			if _, err := gp.p.DiscoverDescriptors(nil, c); err != nil {
				return fmt.Errorf("failed to discover descriptors: %w", err)
			}

			gp.char = c
			return nil
		}
	}

	return ErrNotFound
}

// SetNotify enables measurement notifications on the previously discovered
// characteristic. A nil fn disables the subscription
func (gp *gattPeripheral) SetNotify(fn func(data []byte, err error)) error {
	if gp.char == nil {
		return fmt.Errorf("characteristic has not been discovered")
	}

	if fn == nil {
		return gp.p.SetNotifyValue(gp.char, nil)
	}
	return gp.p.SetNotifyValue(gp.char, func(_ *gatt.Characteristic, data []byte, err error) {
		fn(data, err)
	})
}
