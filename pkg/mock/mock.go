// Package mock provides a heart rate monitor generating synthetic readings,
// allowing consumers (API, command line tools, tests) to run without a
// physical sensor or bluetooth adapter.
package mock

import (
	"math/rand"
	"sync"
	"time"

	"github.com/bluepulse/bthrm/pkg/hrm"
	"github.com/fatih/stopwatch"
)

const (
	defaultInterval = time.Second
	smoothingFactor = 0.35

	baseBPM = 75
	minBPM  = 55
	maxBPM  = 175
)

// Mock denotes a simulated heart rate monitor
type Mock struct {
	mu sync.RWMutex

	status       hrm.ConnectionStatus
	adapterState hrm.AdapterState
	reading      hrm.Reading
	hasReading   bool
	smoothed     float64
	seeded       bool
	bpm          int

	timer *stopwatch.Stopwatch
	rng   *rand.Rand
	stopC chan struct{}

	interval time.Duration

	stateChangeHandler func(status hrm.ConnectionStatus)
	stateChangeChan    chan hrm.ConnectionStatus
	readingHandler     func(r hrm.Reading)
	readingChan        chan hrm.Reading
	errorHandler       func(err *hrm.AdapterError)
	errorChan          chan *hrm.AdapterError
}

// New instantiates a new Mock monitor
func New() (*Mock, error) {
	return &Mock{
		adapterState: hrm.AdapterPoweredOn,
		bpm:          baseBPM,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		interval:     defaultInterval,
	}, nil
}

// Start begins emitting synthetic readings at a fixed cadence
func (m *Mock) Start() {
	m.mu.Lock()
	if m.stopC != nil {
		m.mu.Unlock()
		return
	}
	stopC := make(chan struct{})
	m.stopC = stopC
	m.mu.Unlock()

	m.setStatus(hrm.StateScanning, nil)
	m.setStatus(hrm.StateConnecting, nil)

	m.mu.Lock()
	if m.timer == nil {
		m.timer = stopwatch.Start(0)
	} else {
		m.timer.Reset()
		m.timer.Start(0)
	}
	m.mu.Unlock()

	m.setStatus(hrm.StateConnected, nil)

	go m.generate(stopC)
}

// Stop terminates the simulated session. Idempotent
func (m *Mock) Stop() {
	m.mu.Lock()
	if m.stopC == nil {
		m.mu.Unlock()
		return
	}
	close(m.stopC)
	m.stopC = nil
	m.reading = hrm.Reading{}
	m.hasReading = false
	m.smoothed = 0.
	m.seeded = false
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()

	m.setStatus(hrm.StateDisconnected, nil)
}

// Reconnect restarts the simulated session
func (m *Mock) Reconnect() {
	m.Stop()
	m.Start()
}

// ConnectionStatus returns the current status of the simulated device
func (m *Mock) ConnectionStatus() hrm.ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// AdapterState returns the simulated adapter state
func (m *Mock) AdapterState() hrm.AdapterState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adapterState
}

// AdapterAvailable returns if the simulated adapter is operational
func (m *Mock) AdapterAvailable() bool {
	return m.AdapterState().Available()
}

// CurrentReading returns the most recent synthetic reading, if any
func (m *Mock) CurrentReading() (hrm.Reading, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reading, m.hasReading
}

// SmoothedBPM returns the exponentially smoothed synthetic heart rate
func (m *Mock) SmoothedBPM() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.smoothed
}

// ConnectedTime returns the duration of the current simulated session
func (m *Mock) ConnectedTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.timer == nil || m.status.State != hrm.StateConnected {
		return 0
	}
	return m.timer.ElapsedTime()
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (m *Mock) SetStateChangeHandler(fn func(status hrm.ConnectionStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that is fed upon state change
func (m *Mock) SetStateChangeChannel(ch chan hrm.ConnectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateChangeChan = ch
}

// SetReadingHandler defines a handler function that is called upon retrieval of data
func (m *Mock) SetReadingHandler(fn func(r hrm.Reading)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readingHandler = fn
}

// SetReadingChannel defines a channel that is fed upon retrieval of data
func (m *Mock) SetReadingChannel(ch chan hrm.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readingChan = ch
}

// SetErrorHandler defines a handler function that is called upon errors
func (m *Mock) SetErrorHandler(fn func(err *hrm.AdapterError)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorHandler = fn
}

// SetErrorChannel defines a channel that is fed upon errors
func (m *Mock) SetErrorChannel(ch chan *hrm.AdapterError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorChan = ch
}

// Close terminates the simulated session
func (m *Mock) Close() error {
	m.Stop()
	return nil
}

////////////////////////////////////////////////////////////////////////////////

func (m *Mock) generate(stopC chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopC:
			return
		case <-ticker.C:
			if reading, ok := m.nextReading(); ok {
				m.emit(reading)
			}
		}
	}
}

// nextReading performs a bounded random walk around a plausible resting
// heart rate, deriving the RR interval from the simulated beat frequency.
// Returns false if the session has been stopped in the meantime
func (m *Mock) nextReading() (hrm.Reading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopC == nil {
		return hrm.Reading{}, false
	}

	m.bpm += m.rng.Intn(7) - 3
	if m.bpm < minBPM {
		m.bpm = minBPM
	}
	if m.bpm > maxBPM {
		m.bpm = maxBPM
	}

	if !m.seeded {
		m.smoothed = float64(m.bpm)
		m.seeded = true
	} else {
		m.smoothed = m.smoothed*(1.-smoothingFactor) + float64(m.bpm)*smoothingFactor
	}

	reading := hrm.Reading{
		TimeStamp:    time.Now(),
		BPM:          m.bpm,
		RRIntervalMS: 60000. / float64(m.bpm),
		HasRR:        true,
		Smoothed:     m.smoothed,
	}
	m.reading = reading
	m.hasReading = true

	return reading, true
}

func (m *Mock) emit(reading hrm.Reading) {
	m.mu.RLock()
	fn, ch := m.readingHandler, m.readingChan
	m.mu.RUnlock()

	// Call handler function, if any
	if fn != nil {
		fn(reading)
	}

	// Put reading on channel, if any
	if ch != nil {
		select {
		case ch <- reading:
		default:
		}
	}
}

func (m *Mock) setStatus(state hrm.State, err error) {
	m.mu.Lock()
	m.status = hrm.ConnectionStatus{
		State: state,
		Error: err,
	}
	status := m.status
	fn, ch := m.stateChangeHandler, m.stateChangeChan
	m.mu.Unlock()

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
