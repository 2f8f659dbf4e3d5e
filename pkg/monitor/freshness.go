package monitor

import "time"

const (

	// defaultSmoothingFactor is the weight of a new raw value in the
	// exponential moving average over accepted BPM values
	defaultSmoothingFactor = 0.35

	// defaultStaleTimeout is the maximum tolerated silence period before a
	// connected sensor is treated as dead
	defaultStaleTimeout = 5 * time.Second

	// defaultFreshnessInterval is the cadence of the staleness check
	defaultFreshnessInterval = time.Second
)

// smoother maintains an exponential moving average over accepted BPM values,
// seeded with the first raw value seen after a reset
type smoother struct {
	alpha  float64
	value  float64
	seeded bool
}

func newSmoother(alpha float64) *smoother {
	return &smoother{alpha: alpha}
}

// update feeds a raw BPM value and returns the new smoothed value
func (s *smoother) update(raw float64) float64 {
	if !s.seeded {
		s.value = raw
		s.seeded = true
		return s.value
	}

	s.value = s.value*(1.-s.alpha) + raw*s.alpha
	return s.value
}

// current returns the smoothed value (zero if unseeded)
func (s *smoother) current() float64 {
	return s.value
}

// reset clears the smoothing state, the next update seeds anew
func (s *smoother) reset() {
	s.value = 0.
	s.seeded = false
}
