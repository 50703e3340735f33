// Command genmock generates a synthetic GSE phase report and matching
// SLIST waveform files for development and fixtures. The report parses
// through the real chain, and each waveform contains a crude earthquake
// signature (a burst at the P pick, a stronger one at the S pick) so
// filtered traces and spectrograms look plausible.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -code 10500 -stations EPOB,CSOR
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/slist"
)

const (
	sampleRate   = 100.0
	channelCodes = "ZNE"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the report and waveform files")
	code := flag.String("code", "10500", "event code")
	date := flag.String("date", "2021-08-14", "event date")
	stations := flag.String("stations", "EPOB,CSOR", "comma-separated station codes")
	window := flag.Duration("window", 10*time.Minute, "waveform width around the P pick")
	seed := flag.Int64("seed", 1, "random seed for pick offsets and noise")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	base, err := time.Parse("2006-01-02T15:04:05", *date+"T10:00:00")
	if err != nil {
		return fmt.Errorf("bad -date: %w", err)
	}

	var lines []string
	lines = append(lines, "BEGIN GSE2.0")
	lines = append(lines, "Sta       Dist  EvAz     Phase      Date       Time")

	for i, station := range strings.Split(*stations, ",") {
		station = strings.TrimSpace(station)
		if station == "" {
			continue
		}

		// Each station picks P a little later than the last, with a
		// 3-8 s S-P gap.
		p := base.Add(time.Duration(i) * 1500 * time.Millisecond)
		s := p.Add(time.Duration(3000+rng.Intn(5000)) * time.Millisecond)

		lines = append(lines, reportLines(station, p, s, rng)...)

		for _, ch := range channelCodes {
			wf := mockWaveform(station, string(ch), p, s, *window, rng)
			name := fmt.Sprintf("%s_%s_%s.slist", *code, station, string(ch))
			if err := writeWaveform(filepath.Join(*out, name), wf); err != nil {
				return err
			}
		}
		log.Printf("%s: P=%s S=%s", station, pick(p), pick(s))
	}

	lines = append(lines, "", "STOP", "")
	reportPath := filepath.Join(*out, *code+".gse")
	if err := os.WriteFile(reportPath, []byte(strings.Join(lines, "\r\n")), 0o644); err != nil {
		return err
	}
	log.Printf("wrote report: %s", reportPath)

	// Sanity-check through the real chain.
	report, err := os.ReadFile(reportPath)
	if err != nil {
		return err
	}
	parsed, err := domain.ParseReport(string(report))
	if err != nil {
		return fmt.Errorf("generated report does not parse: %w", err)
	}
	pairs, err := domain.PairPhases(parsed)
	if err != nil {
		return fmt.Errorf("generated report does not pair: %w", err)
	}
	registers := domain.BuildRegisters(*code, domain.FilterPairs(pairs))
	log.Printf("chain check: %d lines, %d pairs, %d registers",
		len(parsed), len(pairs), len(registers))
	return nil
}

// reportLines renders one station's P and S rows in the positional GSE
// layout the parser expects: 8 fields for P, 12 for S.
func reportLines(station string, p, s time.Time, rng *rand.Rand) []string {
	dist := 40 + rng.Float64()*80
	azimuth := rng.Float64() * 360
	amplitude := 5 + rng.Float64()*20
	magnitude := 1.5 + rng.Float64()*1.5

	pLine := fmt.Sprintf("%s %s %.2f P %.1f %.1f %.1f %.1f",
		station, pick(p), dist/111, dist, azimuth, amplitude*0.6, magnitude)
	sLine := fmt.Sprintf("%s %.2f %.1f S %s %.1f %.1f %.1f %.1f ML %.1f i",
		station, dist/111, azimuth, pick(s), -0.1, dist, amplitude, magnitude,
		magnitude-0.9)
	return []string{pLine, sLine}
}

func pick(t time.Time) string {
	return t.Format("15:04:05.000")
}

// mockWaveform builds background noise with tapered bursts at the P and
// S arrivals.
func mockWaveform(station, component string, p, s time.Time, window time.Duration, rng *rand.Rand) domain.Waveform {
	start := p.Add(-window / 2)
	n := int(window.Seconds() * sampleRate)

	samples := make([]float64, n)
	for i := range samples {
		samples[i] = rng.NormFloat64() * 10
	}
	addBurst(samples, start, p, 300, 3*time.Second, rng)
	addBurst(samples, start, s, 800, 8*time.Second, rng)

	return domain.Waveform{
		Network:    "CA",
		Station:    station,
		Channel:    "HH" + component,
		Start:      start,
		SampleRate: sampleRate,
		Samples:    samples,
	}
}

func addBurst(samples []float64, start, at time.Time, amplitude float64, length time.Duration, rng *rand.Rand) {
	from := int(at.Sub(start).Seconds() * sampleRate)
	count := int(length.Seconds() * sampleRate)
	for i := 0; i < count && from+i < len(samples); i++ {
		if from+i < 0 {
			continue
		}
		decay := math.Exp(-3 * float64(i) / float64(count))
		samples[from+i] += rng.NormFloat64() * amplitude * decay
	}
}

func writeWaveform(path string, wf domain.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := slist.Encode(f, wf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
