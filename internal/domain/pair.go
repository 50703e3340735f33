package domain

import (
	"errors"
	"fmt"
)

// ErrInterleavedStations reports a phase table whose rows are not
// grouped by station. The pairing scan assumes pairable rows are
// adjacent; interleaved input would mis-pair silently, so it fails the
// whole event instead.
var ErrInterleavedStations = errors.New("phase lines are not grouped by station")

// PhasePair is a P row and the S row for the same station.
type PhasePair struct {
	P PhaseLine
	S PhaseLine
}

// PairPhases groups adjacent equal-station rows into pairs with a
// single forward scan: a match emits a pair and advances two rows, a
// mismatch discards the current row and advances one. Rows without an
// adjacent partner are dropped, never buffered for a later match.
func PairPhases(lines []PhaseLine) ([]PhasePair, error) {
	if err := checkStationGrouping(lines); err != nil {
		return nil, err
	}

	var pairs []PhasePair
	i := 0
	for i < len(lines)-1 {
		if lines[i].Station() == lines[i+1].Station() {
			pairs = append(pairs, PhasePair{P: lines[i], S: lines[i+1]})
			i += 2
		} else {
			i++
		}
	}
	return pairs, nil
}

// checkStationGrouping verifies that every station's rows form one
// contiguous run. Blank rows are ignored; they separate nothing.
func checkStationGrouping(lines []PhaseLine) error {
	closed := make(map[string]bool)
	prev := ""
	for _, line := range lines {
		sta := line.Station()
		if sta == "" {
			continue
		}
		if sta == prev {
			continue
		}
		if closed[sta] {
			return fmt.Errorf("%w: station %s reappears", ErrInterleavedStations, sta)
		}
		closed[sta] = true
		prev = sta
	}
	return nil
}

// ValidPair reports whether a pair is a plain, complete P/S pair:
// exact "P" and "S" phase letters (excludes depth phases) and the full
// field counts of a complete station report.
func ValidPair(pair PhasePair) bool {
	return pair.P.Phase() == "P" && pair.S.Phase() == "S" &&
		len(pair.P) == pLineFields && len(pair.S) == sLineFields
}

// FilterPairs keeps only valid pairs. Rejected pairs are expected
// report noise and are dropped without error.
func FilterPairs(pairs []PhasePair) []PhasePair {
	filtered := make([]PhasePair, 0, len(pairs))
	for _, pair := range pairs {
		if ValidPair(pair) {
			filtered = append(filtered, pair)
		}
	}
	return filtered
}
