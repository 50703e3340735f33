package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPLine = "EPOB 10:00:00.000 0.52 P 58.3 279.5 12.1 2.1"
	testSLine = "EPOB 0.52 121.3 S 10:00:05.000 -0.1 58.3 12.7 2.3 ML 1.2 i"
)

// makeReport wraps phase table rows in the surrounding GSE document
// text: a preamble, the "Sta" header, and two trailer lines.
func makeReport(rows ...string) string {
	doc := []string{
		"BEGIN GSE2.0",
		"MSG_TYPE DATA",
		"Event 20210814100000",
		"Sta     Dist  EvAz Phase      Time     TRes",
	}
	doc = append(doc, rows...)
	doc = append(doc, "", "STOP")
	return strings.Join(doc, "\r\n")
}

func TestParseReport(t *testing.T) {
	t.Run("extracts rows between header and trailers", func(t *testing.T) {
		table, err := ParseReport(makeReport(testPLine, testSLine))

		require.NoError(t, err)
		require.Len(t, table, 2)
		assert.Equal(t, "EPOB", table[0].Station())
		assert.Equal(t, "P", table[0].Phase())
		assert.Len(t, table[0], 8)
		assert.Equal(t, "S", table[1].Phase())
		assert.Len(t, table[1], 12)
	})

	t.Run("drops empty tokens from column padding", func(t *testing.T) {
		table, err := ParseReport(makeReport("EPOB    10:00:00.000   0.52  P"))

		require.NoError(t, err)
		require.Len(t, table, 1)
		assert.Equal(t, PhaseLine{"EPOB", "10:00:00.000", "0.52", "P"}, table[0])
	})

	t.Run("no header is a distinct outcome", func(t *testing.T) {
		_, err := ParseReport("BEGIN GSE2.0\r\nno table here\r\nSTOP")

		require.ErrorIs(t, err, ErrNoPhaseTable)
	})

	t.Run("present but empty table is not an error", func(t *testing.T) {
		table, err := ParseReport(makeReport())

		require.NoError(t, err)
		assert.Empty(t, table)
	})

	t.Run("uses the last header line", func(t *testing.T) {
		text := strings.Join([]string{
			"Station summary",
			"Sta count: 4",
			"Sta     Dist  EvAz Phase",
			testPLine,
			testSLine,
			"",
			"STOP",
		}, "\r\n")

		table, err := ParseReport(text)
		require.NoError(t, err)
		assert.Len(t, table, 2)
	})
}

func TestPairPhases(t *testing.T) {
	line := func(sta string, rest ...string) PhaseLine {
		return PhaseLine(append([]string{sta}, rest...))
	}

	t.Run("adjacent equal stations pair up", func(t *testing.T) {
		lines := []PhaseLine{
			line("EPOB", "a", "b", "P"),
			line("EPOB", "a", "b", "S"),
			line("CAVN", "a", "b", "P"),
			line("CAVN", "a", "b", "S"),
		}

		pairs, err := PairPhases(lines)
		require.NoError(t, err)
		require.Len(t, pairs, 2)
		assert.Equal(t, "EPOB", pairs[0].P.Station())
		assert.Equal(t, "EPOB", pairs[0].S.Station())
		assert.Equal(t, "CAVN", pairs[1].P.Station())
	})

	t.Run("unpaired line is discarded, not buffered", func(t *testing.T) {
		lines := []PhaseLine{
			line("CSOR", "a", "b", "P"),
			line("EPOB", "a", "b", "P"),
			line("EPOB", "a", "b", "S"),
		}

		pairs, err := PairPhases(lines)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "EPOB", pairs[0].P.Station())
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		pairs, err := PairPhases(nil)
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})

	t.Run("interleaved stations fail the event", func(t *testing.T) {
		lines := []PhaseLine{
			line("EPOB", "a", "b", "P"),
			line("CAVN", "a", "b", "P"),
			line("EPOB", "a", "b", "S"),
		}

		_, err := PairPhases(lines)
		require.ErrorIs(t, err, ErrInterleavedStations)
	})

	t.Run("blank rows do not break grouping", func(t *testing.T) {
		lines := []PhaseLine{
			line("EPOB", "a", "b", "P"),
			{},
			line("EPOB", "a", "b", "S"),
			{},
		}

		_, err := PairPhases(lines)
		require.NoError(t, err)
	})
}

func TestValidPair(t *testing.T) {
	pad := func(sta, phase string, n int) PhaseLine {
		l := make(PhaseLine, n)
		for i := range l {
			l[i] = "x"
		}
		l[colStation] = sta
		l[colPhase] = phase
		return l
	}

	tests := []struct {
		name  string
		p     PhaseLine
		s     PhaseLine
		valid bool
	}{
		{"complete plain pair", pad("EPOB", "P", 8), pad("EPOB", "S", 12), true},
		{"depth phase on P", pad("EPOB", "Pn", 8), pad("EPOB", "S", 12), false},
		{"depth phase on S", pad("EPOB", "P", 8), pad("EPOB", "Sg", 12), false},
		{"short P line", pad("EPOB", "P", 7), pad("EPOB", "S", 12), false},
		{"long P line", pad("EPOB", "P", 9), pad("EPOB", "S", 12), false},
		{"short S line", pad("EPOB", "P", 8), pad("EPOB", "S", 11), false},
		{"swapped letters", pad("EPOB", "S", 8), pad("EPOB", "P", 12), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidPair(PhasePair{P: tt.p, S: tt.s}))
		})
	}
}

func TestBuildRegisters(t *testing.T) {
	t.Run("maps report fields by position", func(t *testing.T) {
		table, err := ParseReport(makeReport(testPLine, testSLine))
		require.NoError(t, err)
		pairs, err := PairPhases(table)
		require.NoError(t, err)
		pairs = FilterPairs(pairs)
		require.Len(t, pairs, 1)

		records := BuildRegisters("10500", pairs)

		require.Len(t, records, 1)
		assert.Equal(t, ArrivalRecord{
			Code:      "10500",
			Station:   "EPOB",
			PTime:     "10:00:00.000",
			STime:     "10:00:05.000",
			Amplitude: 12.7,
			Magnitude: 2.3,
		}, records[0])
	})

	t.Run("empty pair list yields zero records", func(t *testing.T) {
		assert.Empty(t, BuildRegisters("10500", nil))
	})

	t.Run("non-numeric amplitude parses to zero", func(t *testing.T) {
		s := PhaseLine{"EPOB", "x", "x", "S", "10:00:05.0", "x", "x", "n/a", "2.3", "x", "x", "x"}
		p := PhaseLine{"EPOB", "10:00:00.0", "x", "P", "x", "x", "x", "x"}

		records := BuildRegisters("10500", []PhasePair{{P: p, S: s}})

		require.Len(t, records, 1)
		assert.Zero(t, records[0].Amplitude)
		assert.Equal(t, 2.3, records[0].Magnitude)
	})
}

// TestReportChain walks the spec's end-to-end scenario: one report with
// one complete station pair becomes exactly one register row.
func TestReportChain(t *testing.T) {
	table, err := ParseReport(makeReport(testPLine, testSLine))
	require.NoError(t, err)
	require.Len(t, table, 2)

	pairs, err := PairPhases(table)
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	valid := FilterPairs(pairs)
	require.Len(t, valid, 1)

	records := BuildRegisters("10500", valid)
	require.Len(t, records, 1)
	assert.Equal(t, "EPOB", records[0].Station)
}
