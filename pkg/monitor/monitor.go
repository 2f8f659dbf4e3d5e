package monitor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bluepulse/bthrm/pkg/hrm"
	"github.com/fatih/stopwatch"
)

const (

	// defaultSignalThreshold is the weakest acceptable advertisement signal
	// strength (dBm). Candidates below it are ignored during scanning
	defaultSignalThreshold = -90

	// Surfacing bands, readings outside are dropped during validation
	minBPM         = 30
	maxBPM         = 250
	rrSurfaceMinMS = 200.
	rrSurfaceMaxMS = 2000.
)

// condNone marks the absence of a previously surfaced adapter condition
const condNone hrm.ErrorKind = -1

// errStale is attached to the disconnect forced by the freshness check
var errStale = errors.New("no measurement received within the staleness window")

// Monitor denotes a BLE heart rate monitor client. All connection state is
// owned by a single run loop goroutine; adapter events, timers and externally
// issued commands are serialized onto it, so the connection state, the sensor
// reference and the reconnection timer are never mutated concurrently
type Monitor struct {
	central Central
	logger  hrm.Logger

	deviceID   string
	deviceName string

	signalThreshold   int
	staleTimeout      time.Duration
	freshnessInterval time.Duration
	alpha             float64

	loopC     chan func()
	doneC     chan struct{}
	closeOnce sync.Once

	// State below is owned by the run loop and must not be touched elsewhere
	state          hrm.State
	started        bool
	peripheral     Peripheral
	lastCondition  hrm.ErrorKind
	attempts       int
	reconnectTimer *time.Timer
	lastSeen       time.Time
	smooth         *smoother
	uptime         *stopwatch.Stopwatch

	// Published snapshots, readable from any goroutine
	mu           sync.RWMutex
	status       hrm.ConnectionStatus
	adapterState hrm.AdapterState
	reading      hrm.Reading
	hasReading   bool
	smoothedBPM  float64

	stateChangeHandler func(status hrm.ConnectionStatus)
	stateChangeChan    chan hrm.ConnectionStatus
	readingHandler     func(r hrm.Reading)
	readingChan        chan hrm.Reading
	errorHandler       func(err *hrm.AdapterError)
	errorChan          chan *hrm.AdapterError
}

// New instantiates a new Monitor, executing functional options, if any
func New(options ...func(*Monitor)) (*Monitor, error) {

	// Initialize a new instance of a heart rate monitor client
	m := &Monitor{
		signalThreshold:   defaultSignalThreshold,
		staleTimeout:      defaultStaleTimeout,
		freshnessInterval: defaultFreshnessInterval,
		alpha:             defaultSmoothingFactor,
		loopC:             make(chan func(), 64),
		doneC:             make(chan struct{}),
		state:             hrm.StateDisconnected,
		lastCondition:     condNone,
		logger:            &hrm.NullLogger{},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(m)
	}

	m.smooth = newSmoother(m.alpha)

	// Initialize a new GATT central (if not provided as option)
	if m.central == nil {
		central, err := newGattCentral()
		if err != nil {
			return nil, err
		}
		m.central = central
	}

	go m.run()

	return m, m.subscribe()
}

// Start begins scanning for a heart rate sensor and connects to the first
// acceptable one. A no-op if a session is already in progress
func (m *Monitor) Start() {
	m.post(m.start)
}

// Stop terminates any session, cancelling pending reconnection attempts and
// releasing the sensor. Idempotent regardless of the current state
func (m *Monitor) Stop() {
	m.post(m.stop)
}

// Reconnect manually triggers the recovery path, dropping any current
// connection and scheduling a fresh connection attempt
func (m *Monitor) Reconnect() {
	m.post(m.forceReconnect)
}

// ConnectionStatus returns the current connection status of the sensor
func (m *Monitor) ConnectionStatus() hrm.ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// AdapterState returns the current state of the bluetooth adapter
func (m *Monitor) AdapterState() hrm.AdapterState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adapterState
}

// AdapterAvailable returns if the bluetooth adapter is operational
func (m *Monitor) AdapterAvailable() bool {
	return m.AdapterState().Available()
}

// CurrentReading returns the most recent accepted reading, if any
func (m *Monitor) CurrentReading() (hrm.Reading, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reading, m.hasReading
}

// SmoothedBPM returns the exponentially smoothed heart rate (zero if no
// reading has been accepted since the last reset)
func (m *Monitor) SmoothedBPM() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.smoothedBPM
}

// ConnectedTime returns the duration of the current connected session
func (m *Monitor) ConnectedTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.uptime == nil || m.status.State != hrm.StateConnected {
		return 0
	}
	return m.uptime.ElapsedTime()
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (m *Monitor) SetStateChangeHandler(fn func(status hrm.ConnectionStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that is fed upon state change
func (m *Monitor) SetStateChangeChannel(ch chan hrm.ConnectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateChangeChan = ch
}

// SetReadingHandler defines a handler function that is called upon retrieval of data
func (m *Monitor) SetReadingHandler(fn func(r hrm.Reading)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readingHandler = fn
}

// SetReadingChannel defines a channel that is fed upon retrieval of data
func (m *Monitor) SetReadingChannel(ch chan hrm.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readingChan = ch
}

// SetErrorHandler defines a handler function that is called upon errors
func (m *Monitor) SetErrorHandler(fn func(err *hrm.AdapterError)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorHandler = fn
}

// SetErrorChannel defines a channel that is fed upon errors
func (m *Monitor) SetErrorChannel(ch chan *hrm.AdapterError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorChan = ch
}

// Close terminates the connection to the device and releases the adapter
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		done := make(chan struct{})
		m.post(func() {
			m.stop()
			close(done)
		})
		<-done
		close(m.doneC)
	})

	return m.central.Close()
}

////////////////////////////////////////////////////////////////////////////////

func (m *Monitor) subscribe() error {
	return m.central.Init(CentralEvents{
		AdapterStateChanged: func(state hrm.AdapterState) {
			m.post(func() { m.onAdapterStateChanged(state) })
		},
		PeripheralDiscovered: func(p Peripheral, rssi int) {
			m.post(func() { m.onDiscovered(p, rssi) })
		},
		PeripheralConnected: func(p Peripheral, err error) {
			m.post(func() { m.onConnected(p, err) })
		},
		PeripheralDisconnected: func(p Peripheral, err error) {
			m.post(func() { m.onDisconnected(p, err) })
		},
	})
}

// run is the single execution context owning all connection state
func (m *Monitor) run() {
	ticker := time.NewTicker(m.freshnessInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-m.loopC:
			fn()
		case <-ticker.C:
			m.checkFreshness()
		case <-m.doneC:
			return
		}
	}
}

// post funnels fn onto the run loop (dropped once the monitor is closed)
func (m *Monitor) post(fn func()) {
	select {
	case m.loopC <- fn:
	case <-m.doneC:
	}
}

////////////////////////////////////////////////////////////////////////////////

func (m *Monitor) start() {
	m.started = true

	if m.state != hrm.StateDisconnected {
		return
	}

	if state := m.central.State(); !state.Available() {
		m.emitAdapterUnavailable(state)
		return
	}

	if err := m.central.Scan(heartRateService); err != nil {
		m.logger.Warnf("failed to start scanning: %s", err)
		m.scheduleReconnect()
		return
	}
	m.setState(hrm.StateScanning, nil)
}

func (m *Monitor) stop() {
	m.started = false
	m.attempts = 0
	m.cancelReconnectTimer()

	if m.state == hrm.StateScanning {
		if err := m.central.StopScan(); err != nil {
			m.logger.Warnf("failed to stop scanning: %s", err)
		}
	}
	m.teardownConnection()

	if m.state != hrm.StateDisconnected {
		m.setState(hrm.StateDisconnected, nil)
	}
}

func (m *Monitor) forceReconnect() {
	if !m.started {
		return
	}

	m.logger.Infof("manual reconnect requested")
	m.dropConnection(nil)
}

func (m *Monitor) onAdapterStateChanged(state hrm.AdapterState) {
	m.logger.Debugf("adapter state changed to `%s`", state)

	m.mu.Lock()
	m.adapterState = state
	m.mu.Unlock()

	if state.Available() {
		m.lastCondition = condNone
		if m.started && m.state == hrm.StateDisconnected {
			m.start()
		}
		return
	}

	// Any unavailable adapter state forces a disconnect, but only a
	// user-actionable condition within an active session is surfaced as an
	// error
	m.cancelReconnectTimer()
	m.teardownConnection()
	if m.state != hrm.StateDisconnected {
		m.setState(hrm.StateDisconnected, nil)
	}
	if m.started {
		m.emitAdapterUnavailable(state)
	}
}

func (m *Monitor) onDiscovered(p Peripheral, rssi int) {
	if m.state != hrm.StateScanning {
		return
	}

	m.logger.Debugf("discovered device `%s/%s` (%d dBm)", p.Name(), p.ID(), rssi)

	if rssi < m.signalThreshold {
		m.logger.Debugf("ignoring device `%s/%s`, signal too weak", p.Name(), p.ID())
		return
	}
	if !m.thisDevice(p) {
		return
	}

	// Stop scanning once we've got the peripheral we're looking for
	if err := m.central.StopScan(); err != nil {
		m.logger.Warnf("failed to stop scanning: %s", err)
	}

	m.peripheral = p
	m.setState(hrm.StateConnecting, nil)
	if err := m.central.Connect(p); err != nil {
		m.logger.Errorf("failed to connect device `%s/%s`: %s", p.Name(), p.ID(), err)
		m.dropConnection(err)
	}
}

func (m *Monitor) onConnected(p Peripheral, connErr error) {
	if m.state != hrm.StateConnecting || m.peripheral == nil || p.ID() != m.peripheral.ID() {
		return
	}

	if connErr != nil {
		m.logger.Errorf("connection to device `%s/%s` failed: %s", p.Name(), p.ID(), connErr)
		m.dropConnection(connErr)
		return
	}

	m.logger.Debugf("connected peripheral `%s/%s`", p.Name(), p.ID())

	// Adopt the connected peripheral instance, it carries the live handles
	m.peripheral = p

	// A successful connect resets the reconnection counter, even if the
	// subsequent discovery steps fail
	m.attempts = 0

	// Discover service -> characteristic -> enable notifications, each step
	// independently failable
	if err := p.DiscoverService(heartRateService); err != nil {
		m.abandonAttempt(discoveryError(err, hrm.ErrServiceNotFound, hrm.ErrServiceDiscoveryFailed))
		return
	}
	if err := p.DiscoverCharacteristic(heartRateService, measurementCharacteristic); err != nil {
		m.abandonAttempt(discoveryError(err, hrm.ErrCharacteristicNotFound, hrm.ErrCharacteristicDiscoveryFailed))
		return
	}
	if err := p.SetNotify(m.handleNotification); err != nil {
		m.abandonAttempt(&hrm.AdapterError{
			Kind:   hrm.ErrCharacteristicDiscoveryFailed,
			Reason: fmt.Errorf("failed to enable notifications: %w", err),
		})
		return
	}

	m.lastSeen = time.Now()
	m.smooth.reset()
	m.startUptime()
	m.setState(hrm.StateConnected, nil)
}

func (m *Monitor) onDisconnected(p Peripheral, err error) {
	if m.peripheral == nil || p.ID() != m.peripheral.ID() {
		return
	}

	m.logger.Debugf("disconnected peripheral `%s/%s`", p.Name(), p.ID())
	m.dropConnection(err)
}

// handleNotification is invoked by the central on its own goroutine and is
// funneled onto the run loop
func (m *Monitor) handleNotification(data []byte, err error) {
	m.post(func() { m.onNotification(data, err) })
}

func (m *Monitor) onNotification(data []byte, err error) {
	if m.state != hrm.StateConnected {
		return
	}

	if err != nil {
		// Transient I/O failure, surfaced but not fatal to the connection
		m.emitError(&hrm.AdapterError{Kind: hrm.ErrReadFailed, Reason: err})
		return
	}

	if len(data) < minMeasurementLen {
		return
	}

	bpm, rrMS, hasRR := parseMeasurement(data)
	if bpm < minBPM || bpm > maxBPM {
		m.emitError(&hrm.AdapterError{
			Kind:   hrm.ErrInvalidData,
			Reason: fmt.Errorf("heart rate %d bpm outside plausible range", bpm),
		})
		return
	}
	if hasRR && (rrMS < rrSurfaceMinMS || rrMS > rrSurfaceMaxMS) {
		rrMS, hasRR = 0, false
	}

	m.lastSeen = time.Now()
	smoothed := m.smooth.update(float64(bpm))

	reading := hrm.Reading{
		TimeStamp:    time.Now(),
		BPM:          bpm,
		RRIntervalMS: rrMS,
		HasRR:        hasRR,
		Smoothed:     smoothed,
	}
	m.publishReading(reading)
	m.emitReading(reading)
}

// checkFreshness runs on the 1s cadence and forces a reconnection cycle if
// the sensor has been silent for longer than the staleness window. Leaving
// the connected state guarantees the cycle triggers exactly once
func (m *Monitor) checkFreshness() {
	if m.state != hrm.StateConnected {
		return
	}
	if time.Since(m.lastSeen) <= m.staleTimeout {
		return
	}

	m.logger.Warnf("no measurement for more than %v, forcing reconnect", m.staleTimeout)
	m.dropConnection(errStale)
}

////////////////////////////////////////////////////////////////////////////////

// dropConnection tears down the current connection attempt / session,
// transitions to disconnected and invokes the reconnection policy (unless an
// explicit stop is in effect)
func (m *Monitor) dropConnection(err error) {
	if m.state == hrm.StateScanning {
		if serr := m.central.StopScan(); serr != nil {
			m.logger.Warnf("failed to stop scanning: %s", serr)
		}
	}
	m.teardownConnection()
	if m.state != hrm.StateDisconnected {
		m.setState(hrm.StateDisconnected, err)
	}
	m.scheduleReconnect()
}

// abandonAttempt surfaces a discovery error and abandons the current
// connection attempt, recovery only via the normal reconnection policy
func (m *Monitor) abandonAttempt(adapterErr *hrm.AdapterError) {
	m.emitError(adapterErr)
	m.dropConnection(adapterErr)
}

// teardownConnection disables the notification subscription, cancels the
// connection and releases the sensor reference. Smoothing state and the
// current reading are zeroed on any transition away from connected
func (m *Monitor) teardownConnection() {
	if m.peripheral != nil {
		if err := m.peripheral.SetNotify(nil); err != nil {
			m.logger.Debugf("failed to disable notifications: %s", err)
		}
		if err := m.central.CancelConnection(m.peripheral); err != nil {
			m.logger.Debugf("failed to cancel connection: %s", err)
		}
		m.peripheral = nil
	}

	m.smooth.reset()
	m.stopUptime()
	m.clearReading()
}

func (m *Monitor) scheduleReconnect() {
	if !m.started {
		return
	}
	if state := m.central.State(); !state.Available() {
		// Resolution depends on an external adapter state change, which will
		// re-trigger start()
		return
	}

	delay := backoffDelay(m.attempts)
	m.attempts++

	// Never more than one outstanding timer, replace-on-schedule
	m.cancelReconnectTimer()

	m.logger.Infof("scheduling reconnection attempt %d in %v", m.attempts, delay)
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.post(func() {
			m.reconnectTimer = nil
			if m.started && m.state == hrm.StateDisconnected {
				m.start()
			}
		})
	})
}

func (m *Monitor) cancelReconnectTimer() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Monitor) emitAdapterUnavailable(state hrm.AdapterState) {

	var kind hrm.ErrorKind
	switch state {
	case hrm.AdapterPoweredOff:
		kind = hrm.ErrPoweredOff
	case hrm.AdapterUnauthorized:
		kind = hrm.ErrUnauthorized
	case hrm.AdapterUnsupported:
		kind = hrm.ErrUnsupported
	default:
		return
	}

	// Surfaced once per transition into the condition
	if kind == m.lastCondition {
		return
	}
	m.lastCondition = kind

	m.emitError(&hrm.AdapterError{Kind: kind})
}

func (m *Monitor) thisDevice(p Peripheral) bool {

	// Check if name and / or device ID have been overridden
	if m.deviceID != "" {
		return strings.EqualFold(p.ID(), m.deviceID)
	}
	if m.deviceName != "" {
		return strings.EqualFold(p.Name(), m.deviceName)
	}

	// Scanning is already filtered to the heart rate service, any
	// sufficiently strong candidate is acceptable
	return true
}

////////////////////////////////////////////////////////////////////////////////

func (m *Monitor) setState(state hrm.State, err error) {
	m.state = state

	m.mu.Lock()
	m.status = hrm.ConnectionStatus{
		State: state,
		Error: err,
	}
	status := m.status
	fn, ch := m.stateChangeHandler, m.stateChangeChan
	m.mu.Unlock()

	m.logger.Infof("connection state changed to `%s`", state)

	// Call handler function, if any
	if fn != nil {
		fn(status)
	}

	// Put state change on channel, if any
	if ch != nil {
		select {
		case ch <- status:
		default:
		}
	}
}

func (m *Monitor) emitReading(reading hrm.Reading) {
	m.mu.RLock()
	fn, ch := m.readingHandler, m.readingChan
	m.mu.RUnlock()

	// Call handler function, if any
	if fn != nil {
		fn(reading)
	}

	// Put reading on channel, if any (never block the run loop)
	if ch != nil {
		select {
		case ch <- reading:
		default:
			m.logger.Warnf("reading channel full, dropping reading")
		}
	}
}

func (m *Monitor) emitError(err *hrm.AdapterError) {
	m.logger.Warnf("surfacing error: %s", err)

	m.mu.RLock()
	fn, ch := m.errorHandler, m.errorChan
	m.mu.RUnlock()

	// Call handler function, if any
	if fn != nil {
		fn(err)
	}

	// Put error on channel, if any
	if ch != nil {
		select {
		case ch <- err:
		default:
		}
	}
}

func (m *Monitor) publishReading(reading hrm.Reading) {
	m.mu.Lock()
	m.reading = reading
	m.hasReading = true
	m.smoothedBPM = reading.Smoothed
	m.mu.Unlock()
}

func (m *Monitor) clearReading() {
	m.mu.Lock()
	m.reading = hrm.Reading{}
	m.hasReading = false
	m.smoothedBPM = 0.
	m.mu.Unlock()
}

func (m *Monitor) startUptime() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uptime == nil {
		m.uptime = stopwatch.Start(0)
		return
	}
	m.uptime.Reset()
	m.uptime.Start(0)
}

func (m *Monitor) stopUptime() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uptime != nil {
		m.uptime.Stop()
	}
}

// discoveryError maps a discovery failure to the proper taxonomy entry,
// distinguishing "discovery worked but the target is missing" from "the
// discovery itself failed"
func discoveryError(err error, notFound, failed hrm.ErrorKind) *hrm.AdapterError {
	if errors.Is(err, ErrNotFound) {
		return &hrm.AdapterError{Kind: notFound}
	}
	return &hrm.AdapterError{Kind: failed, Reason: err}
}
