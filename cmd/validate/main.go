// Command validate checks GSE phase-report files offline: it runs the
// full report chain (table extraction, P/S pairing, validation,
// register mapping) and verifies that every surviving register fits the
// configured slice window. Useful for vetting a report before running
// the batch against the live catalog service.
//
// Usage:
//
//	go run ./cmd/validate -code 10500 report.gse [more.gse ...]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/seismocat/seismic-etl/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	code := flag.String("code", "00000", "event code stamped on the derived registers")
	date := flag.String("date", "2021-08-14", "event date used for window feasibility checks")
	width := flag.Duration("width", 5*time.Minute, "slice window width")
	guard := flag.Duration("guard", 2*time.Second, "P-S guard inside the slice window")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	failed := false
	for _, path := range flag.Args() {
		if !validateFile(path, *code, *date, *width, *guard) {
			failed = true
		}
	}
	if failed {
		fmt.Println("\nValidation FAILED.")
		os.Exit(1)
	}
	fmt.Println("\nAll reports passed.")
}

func validateFile(path, code, date string, width, guard time.Duration) bool {
	fmt.Printf("=== %s ===\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read report: %v\n", err)
		return false
	}

	phases, registers := runChain(string(data), code, date, width, guard)

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-38s %s\n", p.name, status)
	}
	fmt.Printf("  registers derived: %d\n", len(registers))
	for _, r := range registers {
		fmt.Printf("    %s  P=%s  S=%s  amp=%g  mag=%g\n",
			r.Station, r.PTime, r.STime, r.Amplitude, r.Magnitude)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}
	return allPassed
}

// runChain executes the report chain phase by phase, collecting errors
// instead of stopping at the first one.
func runChain(report, code, date string, width, guard time.Duration) ([]*phase, []domain.ArrivalRecord) {
	extract := &phase{name: "Phase 1: Table extraction"}
	pairing := &phase{name: "Phase 2: P/S pairing"}
	validation := &phase{name: "Phase 3: Pair validation"}
	feasibility := &phase{name: "Phase 4: Window feasibility"}
	phases := []*phase{extract, pairing, validation, feasibility}

	lines, err := domain.ParseReport(report)
	if err != nil {
		extract.errorf("%v", err)
		return phases, nil
	}
	if len(lines) == 0 {
		extract.errorf("phase table is empty")
		return phases, nil
	}

	pairs, err := domain.PairPhases(lines)
	if err != nil {
		if errors.Is(err, domain.ErrInterleavedStations) {
			pairing.errorf("station rows are not grouped: %v", err)
		} else {
			pairing.errorf("%v", err)
		}
		return phases, nil
	}
	if len(pairs) == 0 {
		pairing.errorf("no adjacent same-station pairs found in %d lines", len(lines))
	}

	valid := domain.FilterPairs(pairs)
	if dropped := len(pairs) - len(valid); dropped > 0 {
		validation.errorf("%d of %d pairs dropped (depth phases or short lines)", dropped, len(pairs))
	}

	registers := domain.BuildRegisters(code, valid)
	for _, r := range registers {
		p, err := domain.CombinePick(date, r.PTime)
		if err != nil {
			feasibility.errorf("%s: bad P pick %q: %v", r.Station, r.PTime, err)
			continue
		}
		s, err := domain.CombinePick(date, r.STime)
		if err != nil {
			feasibility.errorf("%s: bad S pick %q: %v", r.Station, r.STime, err)
			continue
		}
		if s.Sub(p)+2*guard > width {
			feasibility.errorf("%s: P-S gap %s plus guards exceeds slice width %s",
				r.Station, s.Sub(p), width)
		}
	}
	return phases, registers
}
