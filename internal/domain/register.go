package domain

import (
	"strconv"
	"strings"
)

// ArrivalRecord is one row of the register table: the P/S arrival pair
// a single station reported for one event. Immutable once built; the
// store owns it after insertion.
type ArrivalRecord struct {
	Code      string
	Station   string
	PTime     string // time of day, exactly as reported
	STime     string
	Amplitude float64
	Magnitude float64
}

// BuildRegisters converts validated pairs into register rows for one
// event. An empty pair list yields zero rows, which the caller treats
// as "no registers for this event", not as an error.
func BuildRegisters(code string, pairs []PhasePair) []ArrivalRecord {
	records := make([]ArrivalRecord, 0, len(pairs))
	for _, pair := range pairs {
		records = append(records, ArrivalRecord{
			Code:      code,
			Station:   pair.P.field(colStation),
			PTime:     pair.P.field(colPArrival),
			STime:     pair.S.field(colSArrival),
			Amplitude: parseFloatOrZero(pair.S.field(colSAmplitude)),
			Magnitude: parseFloatOrZero(pair.S.field(colSMagnitude)),
		})
	}
	return records
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
