package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNoPhaseTable reports a GSE document without a station phase
	// table. Distinct from an empty table: the caller skips the event
	// instead of treating it as "zero pairs found".
	ErrNoPhaseTable = errors.New("gse report has no phase table")

	// ErrReportNotFound reports that the catalog service has no GSE
	// document for the requested event code.
	ErrReportNotFound = errors.New("gse report not found")
)

// Column offsets within a GSE phase line. The table is positional and
// unversioned; every downstream field access goes through this block so
// a layout change touches exactly one place.
const (
	colStation    = 0
	colPhase      = 3
	colPArrival   = 1
	colSArrival   = 4
	colSAmplitude = 7
	colSMagnitude = 8

	pLineFields = 8
	sLineFields = 12
)

// tableMarker begins the phase table header row.
const tableMarker = "Sta"

// trailerLines is the number of summary lines closing every report.
const trailerLines = 2

// PhaseLine is one row of a GSE phase table, split into fields.
type PhaseLine []string

// Station returns the station code field.
func (l PhaseLine) Station() string { return l.field(colStation) }

// Phase returns the phase letter field ("P", "S", or a depth-phase code).
func (l PhaseLine) Phase() string { return l.field(colPhase) }

func (l PhaseLine) field(i int) string {
	if i >= len(l) {
		return ""
	}
	return l[i]
}

// ParseReport extracts the phase table from a raw GSE report document.
// It returns the rows strictly between the last "Sta" header line and
// the two trailer lines, each split on spaces with empty fields dropped.
// A document without a header line yields ErrNoPhaseTable; a present
// but empty table yields an empty slice and no error.
func ParseReport(text string) ([]PhaseLine, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	headerAt := -1
	for i, line := range lines {
		if strings.HasPrefix(line, tableMarker) {
			headerAt = i
		}
	}
	if headerAt == -1 {
		return nil, ErrNoPhaseTable
	}

	body := lines[headerAt+1:]
	if len(body) <= trailerLines {
		return []PhaseLine{}, nil
	}
	body = body[:len(body)-trailerLines]

	table := make([]PhaseLine, 0, len(body))
	for _, line := range body {
		table = append(table, PhaseLine(splitFields(line)))
	}
	return table, nil
}

// splitFields splits on single spaces and drops the empty tokens left
// by the report's column padding.
func splitFields(line string) []string {
	parts := strings.Split(line, " ")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}
