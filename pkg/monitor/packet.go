package monitor

import "encoding/binary"

// Flag bits of the heart rate measurement characteristic (GATT 0x2a37), see
// https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
const (
	flagBPM16          = 0x01
	flagEnergyExpended = 0x08
	flagRRPresent      = 0x10
)

// Sanity band applied to RR intervals at parse time (milliseconds). Values
// outside are discarded while the BPM value is retained
const (
	rrSanityMinMS = 100.
	rrSanityMaxMS = 3000.
)

// minMeasurementLen is the shortest decodable notification (flags + 8-bit BPM)
const minMeasurementLen = 2

// parseMeasurement decodes a single heart rate measurement notification into
// its BPM value and (if present) the first RR interval in milliseconds.
//
// Decoding is best-effort and never fails: a buffer too short for a declared
// field is truncated gracefully, returning whatever was already decoded. An
// undecodable buffer yields (0, 0, false)
func parseMeasurement(data []byte) (bpm int, rrMS float64, hasRR bool) {

	if len(data) < minMeasurementLen {
		return 0, 0, false
	}

	flags := data[0]
	offset := 1

	if flags&flagBPM16 != 0 {
		if len(data) < offset+2 {
			return 0, 0, false
		}
		bpm = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	} else {
		bpm = int(data[offset])
		offset++
	}

	// Skip the energy expended field (if declared)
	if flags&flagEnergyExpended != 0 {
		if len(data) < offset+2 {
			return bpm, 0, false
		}
		offset += 2
	}

	// Only the first RR interval is extracted (unit 1/1024 s)
	if flags&flagRRPresent != 0 {
		if len(data) < offset+2 {
			return bpm, 0, false
		}
		rrMS = float64(binary.LittleEndian.Uint16(data[offset:])) * 1000. / 1024.
		if rrMS < rrSanityMinMS || rrMS > rrSanityMaxMS {
			return bpm, 0, false
		}
		hasRR = true
	}

	return bpm, rrMS, hasRR
}
