package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluepulse/bthrm/pkg/hrm"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// stubMonitor is a canned hrm.Monitor for handler tests
type stubMonitor struct {
	status     hrm.ConnectionStatus
	reading    hrm.Reading
	hasReading bool

	starts     int32
	stops      int32
	reconnects int32
}

func (s *stubMonitor) Start()     { atomic.AddInt32(&s.starts, 1) }
func (s *stubMonitor) Stop()      { atomic.AddInt32(&s.stops, 1) }
func (s *stubMonitor) Reconnect() { atomic.AddInt32(&s.reconnects, 1) }

func (s *stubMonitor) ConnectionStatus() hrm.ConnectionStatus { return s.status }
func (s *stubMonitor) AdapterState() hrm.AdapterState         { return hrm.AdapterPoweredOn }
func (s *stubMonitor) AdapterAvailable() bool                 { return true }
func (s *stubMonitor) CurrentReading() (hrm.Reading, bool)    { return s.reading, s.hasReading }
func (s *stubMonitor) SmoothedBPM() float64                   { return s.reading.Smoothed }
func (s *stubMonitor) ConnectedTime() time.Duration           { return 42 * time.Second }

func (s *stubMonitor) SetStateChangeHandler(fn func(status hrm.ConnectionStatus)) {}
func (s *stubMonitor) SetStateChangeChannel(ch chan hrm.ConnectionStatus)         {}
func (s *stubMonitor) SetReadingHandler(fn func(r hrm.Reading))                   {}
func (s *stubMonitor) SetReadingChannel(ch chan hrm.Reading)                      {}
func (s *stubMonitor) SetErrorHandler(fn func(err *hrm.AdapterError))             {}
func (s *stubMonitor) SetErrorChannel(ch chan *hrm.AdapterError)                  {}

func (s *stubMonitor) Close() error { return nil }

func newTestAPI(m hrm.Monitor) *API {
	api := &API{
		monitor: m,
		router:  fiber.New(),
	}
	api.setupRoutes()
	return api
}

func TestStatusEndpoint(t *testing.T) {
	m := &stubMonitor{
		status: hrm.ConnectionStatus{State: hrm.StateConnected},
	}
	api := newTestAPI(m)

	resp, err := api.router.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "connected", body["state"])
	require.Equal(t, "poweredOn", body["adapter_state"])
	require.Equal(t, true, body["adapter_available"])
	require.Equal(t, 42., body["connected_time"])
	require.NotContains(t, body, "error")
}

func TestReadingEndpoint(t *testing.T) {
	m := &stubMonitor{}
	api := newTestAPI(m)

	// Without a reading the endpoint reports not found
	resp, err := api.router.Test(httptest.NewRequest(http.MethodGet, "/reading", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	m.reading = hrm.Reading{
		TimeStamp:    time.Now(),
		BPM:          75,
		RRIntervalMS: 800.,
		HasRR:        true,
		Smoothed:     76.5,
	}
	m.hasReading = true

	resp, err = api.router.Test(httptest.NewRequest(http.MethodGet, "/reading", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 75., body["bpm"])
	require.Equal(t, 800., body["rr_ms"])
	require.Equal(t, 76.5, body["smoothed_bpm"])
}

func TestReadingEndpointOmitsDroppedRR(t *testing.T) {
	m := &stubMonitor{
		reading:    hrm.Reading{TimeStamp: time.Now(), BPM: 75, Smoothed: 75.},
		hasReading: true,
	}
	api := newTestAPI(m)

	resp, err := api.router.Test(httptest.NewRequest(http.MethodGet, "/reading", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotContains(t, body, "rr_ms")
}

func TestCommandEndpoints(t *testing.T) {
	m := &stubMonitor{}
	api := newTestAPI(m)

	for _, route := range []string{"/start", "/stop", "/reconnect"} {
		resp, err := api.router.Test(httptest.NewRequest(http.MethodPost, route, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	require.Equal(t, int32(1), atomic.LoadInt32(&m.starts))
	require.Equal(t, int32(1), atomic.LoadInt32(&m.stops))
	require.Equal(t, int32(1), atomic.LoadInt32(&m.reconnects))
}
