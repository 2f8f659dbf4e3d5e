package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffSchedule(t *testing.T) {

	// From a freshly reset counter the delay sequence is fixed, capped at
	// the last entry
	expected := []time.Duration{
		0,
		2 * time.Second,
		5 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}

	for attempt, want := range expected {
		require.Equal(t, want, backoffDelay(attempt), "attempt %d", attempt)
	}
}

func TestBackoffNegativeAttempt(t *testing.T) {
	require.Equal(t, time.Duration(0), backoffDelay(-1))
}
