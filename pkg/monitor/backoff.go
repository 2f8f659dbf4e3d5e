package monitor

import "time"

// reconnectSchedule holds the backoff delays indexed by the consecutive
// attempt counter. Attempts beyond the last entry repeat it (capped)
var reconnectSchedule = []time.Duration{
	0,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// backoffDelay returns the reconnection delay for the given consecutive
// attempt
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(reconnectSchedule) {
		return reconnectSchedule[len(reconnectSchedule)-1]
	}
	return reconnectSchedule[attempt]
}
