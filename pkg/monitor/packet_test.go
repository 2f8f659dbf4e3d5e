package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMeasurement(t *testing.T) {
	var testCases = []struct {
		name string
		data []byte

		bpm   int
		rrMS  float64
		hasRR bool
	}{
		{name: "empty buffer", data: nil},
		{name: "flags only", data: []byte{0x00}},
		{name: "plain 8-bit bpm", data: []byte{0x00, 72}, bpm: 72},
		{name: "16-bit bpm", data: []byte{0x01, 0x2C, 0x01}, bpm: 300},
		{name: "16-bit bpm truncated", data: []byte{0x01, 0x48}},
		{name: "energy expended skipped", data: []byte{0x08, 68, 0x10, 0x27}, bpm: 68},
		{name: "energy expended truncated", data: []byte{0x08, 68, 0x10}, bpm: 68},
		{name: "rr interval", data: []byte{0x10, 75, 0x00, 0x03}, bpm: 75, rrMS: 750., hasRR: true},
		{name: "rr interval truncated", data: []byte{0x10, 75, 0x00}, bpm: 75},
		{name: "energy expended and rr", data: []byte{0x18, 75, 0x34, 0x12, 0x00, 0x04}, bpm: 75, rrMS: 1000., hasRR: true},
		{name: "only first rr extracted", data: []byte{0x10, 75, 0x00, 0x03, 0x00, 0x04}, bpm: 75, rrMS: 750., hasRR: true},
		{name: "rr below sanity band", data: []byte{0x10, 75, 0x50, 0x00}, bpm: 75},
		{name: "rr above sanity band", data: []byte{0x10, 75, 0xFF, 0xFF}, bpm: 75},
		{name: "rr at spec example", data: []byte{0x10, 0x4B, 0x78, 0x00}, bpm: 75, rrMS: 117.1875, hasRR: true},
		{name: "16-bit bpm with rr", data: []byte{0x11, 0x50, 0x00, 0x00, 0x02}, bpm: 80, rrMS: 500., hasRR: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			bpm, rrMS, hasRR := parseMeasurement(testCase.data)

			require.Equal(t, testCase.bpm, bpm)
			require.Equal(t, testCase.hasRR, hasRR)
			if testCase.hasRR {
				require.InDelta(t, testCase.rrMS, rrMS, 1e-9)
			} else {
				require.Zero(t, rrMS)
			}
		})
	}
}

func TestParseMeasurementIsIdempotent(t *testing.T) {
	data := []byte{0x10, 75, 0x00, 0x03}

	bpm1, rr1, has1 := parseMeasurement(data)
	bpm2, rr2, has2 := parseMeasurement(data)

	require.Equal(t, bpm1, bpm2)
	require.Equal(t, rr1, rr2)
	require.Equal(t, has1, has2)

	// Input must remain untouched
	require.Equal(t, []byte{0x10, 75, 0x00, 0x03}, data)
}

func TestParseMeasurementNeverReadsOutOfBounds(t *testing.T) {

	// Exhaustive sweep over all flag combinations and truncation lengths, an
	// out-of-bounds access would panic
	payload := []byte{0x00, 75, 0x34, 0x12, 0x00, 0x03, 0x00, 0x04}
	for flags := 0; flags < 256; flags++ {
		for length := 0; length <= len(payload); length++ {
			data := make([]byte, length)
			copy(data, payload[:length])
			if length > 0 {
				data[0] = byte(flags)
			}

			require.NotPanics(t, func() {
				parseMeasurement(data)
			})

			if length < minMeasurementLen {
				bpm, rrMS, hasRR := parseMeasurement(data)
				require.Zero(t, bpm)
				require.Zero(t, rrMS)
				require.False(t, hasRR)
			}
		}
	}
}
