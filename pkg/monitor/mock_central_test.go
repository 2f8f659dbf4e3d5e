package monitor

import (
	"sync"

	"github.com/bluepulse/bthrm/pkg/hrm"
)

// mockPeripheral simulates a heart rate sensor
type mockPeripheral struct {
	mu sync.Mutex

	id   string
	name string

	missingService bool
	missingChar    bool
	serviceErr     error
	charErr        error
	notifyErr      error

	notifyFn func(data []byte, err error)
}

func newMockPeripheral(id, name string) *mockPeripheral {
	return &mockPeripheral{id: id, name: name}
}

func (p *mockPeripheral) ID() string {
	return p.id
}

func (p *mockPeripheral) Name() string {
	return p.name
}

func (p *mockPeripheral) DiscoverService(serviceUUID string) error {
	if p.serviceErr != nil {
		return p.serviceErr
	}
	if p.missingService {
		return ErrNotFound
	}
	return nil
}

func (p *mockPeripheral) DiscoverCharacteristic(serviceUUID, charUUID string) error {
	if p.charErr != nil {
		return p.charErr
	}
	if p.missingChar {
		return ErrNotFound
	}
	return nil
}

func (p *mockPeripheral) SetNotify(fn func(data []byte, err error)) error {
	if p.notifyErr != nil {
		return p.notifyErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifyFn = fn
	return nil
}

// SimulateNotification delivers a raw measurement payload to the subscriber
func (p *mockPeripheral) SimulateNotification(data []byte) {
	p.mu.Lock()
	fn := p.notifyFn
	p.mu.Unlock()

	if fn != nil {
		fn(data, nil)
	}
}

// SimulateReadError delivers a transient read failure to the subscriber
func (p *mockPeripheral) SimulateReadError(err error) {
	p.mu.Lock()
	fn := p.notifyFn
	p.mu.Unlock()

	if fn != nil {
		fn(nil, err)
	}
}

// subscribed returns if a notification subscription is currently enabled
func (p *mockPeripheral) subscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notifyFn != nil
}

// mockCentral simulates the local bluetooth radio
type mockCentral struct {
	mu sync.Mutex

	state  hrm.AdapterState
	events CentralEvents

	autoConnect  bool
	autoDiscover Peripheral
	autoRSSI     int
	connectErr   error

	scanning    bool
	scanCount   int
	cancelCount int

	pending Peripheral
}

func newMockCentral(state hrm.AdapterState) *mockCentral {
	return &mockCentral{state: state}
}

func (c *mockCentral) Init(events CentralEvents) error {
	c.mu.Lock()
	c.events = events
	state := c.state
	c.mu.Unlock()

	if events.AdapterStateChanged != nil {
		events.AdapterStateChanged(state)
	}
	return nil
}

func (c *mockCentral) State() hrm.AdapterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *mockCentral) Scan(serviceUUID string) error {
	c.mu.Lock()
	c.scanning = true
	c.scanCount++
	p, rssi := c.autoDiscover, c.autoRSSI
	events := c.events
	c.mu.Unlock()

	if p != nil && events.PeripheralDiscovered != nil {
		events.PeripheralDiscovered(p, rssi)
	}
	return nil
}

func (c *mockCentral) StopScan() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanning = false
	return nil
}

func (c *mockCentral) Connect(p Peripheral) error {
	c.mu.Lock()
	if c.connectErr != nil {
		defer c.mu.Unlock()
		return c.connectErr
	}
	c.pending = p
	auto := c.autoConnect
	events := c.events
	c.mu.Unlock()

	if auto && events.PeripheralConnected != nil {
		events.PeripheralConnected(p, nil)
	}
	return nil
}

func (c *mockCentral) CancelConnection(p Peripheral) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelCount++
	return nil
}

func (c *mockCentral) Close() error {
	return nil
}

// Discover delivers a discovery event for the given peripheral
func (c *mockCentral) Discover(p Peripheral, rssi int) {
	c.mu.Lock()
	events := c.events
	c.mu.Unlock()

	if events.PeripheralDiscovered != nil {
		events.PeripheralDiscovered(p, rssi)
	}
}

// FinishConnect completes a pending connection attempt
func (c *mockCentral) FinishConnect(err error) {
	c.mu.Lock()
	p := c.pending
	events := c.events
	c.mu.Unlock()

	if p != nil && events.PeripheralConnected != nil {
		events.PeripheralConnected(p, err)
	}
}

// Drop delivers an unexpected disconnect for the given peripheral
func (c *mockCentral) Drop(p Peripheral, err error) {
	c.mu.Lock()
	events := c.events
	c.mu.Unlock()

	if events.PeripheralDisconnected != nil {
		events.PeripheralDisconnected(p, err)
	}
}

// SetAdapterState switches the simulated adapter state, notifying the client
func (c *mockCentral) SetAdapterState(state hrm.AdapterState) {
	c.mu.Lock()
	c.state = state
	events := c.events
	c.mu.Unlock()

	if events.AdapterStateChanged != nil {
		events.AdapterStateChanged(state)
	}
}

func (c *mockCentral) isScanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanning
}

func (c *mockCentral) scans() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanCount
}

func (c *mockCentral) cancels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelCount
}
