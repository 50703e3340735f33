// Package slist reads and writes waveforms in the SLIST ASCII
// time-series format: a single TIMESERIES header line followed by the
// sample values.
//
// Header shape:
//
//	TIMESERIES CA_EPOB__HHZ, 30000 samples, 100 sps, 2021-08-14T10:00:00.000000, SLIST, FLOAT, COUNTS
//
// A file or response body may concatenate several blocks, one per
// channel.
package slist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/seismocat/seismic-etl/internal/domain"
)

const headerPrefix = "TIMESERIES"

// samplesPerLine keeps encoded files diff-friendly.
const samplesPerLine = 6

// ErrNoTimeseries reports input with no TIMESERIES block at all.
var ErrNoTimeseries = errors.New("slist: no TIMESERIES block found")

// Decode reads every TIMESERIES block from r.
func Decode(r io.Reader) ([]domain.Waveform, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var waveforms []domain.Waveform
	var current *domain.Waveform
	var want int

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, headerPrefix) {
			if current != nil && len(current.Samples) != want {
				return nil, fmt.Errorf("slist: %s: got %d of %d samples",
					current.SourceID(), len(current.Samples), want)
			}
			wf, n, err := parseHeader(line)
			if err != nil {
				return nil, err
			}
			waveforms = append(waveforms, wf)
			current = &waveforms[len(waveforms)-1]
			want = n
			current.Samples = make([]float64, 0, n)
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("slist: samples before header: %q", line)
		}
		for _, tok := range strings.Fields(line) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("slist: bad sample %q: %w", tok, err)
			}
			current.Samples = append(current.Samples, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("slist: read: %w", err)
	}
	if current == nil {
		return nil, ErrNoTimeseries
	}
	if len(current.Samples) != want {
		return nil, fmt.Errorf("slist: %s: got %d of %d samples",
			current.SourceID(), len(current.Samples), want)
	}
	return waveforms, nil
}

// parseHeader splits a TIMESERIES line into waveform metadata and the
// declared sample count.
func parseHeader(line string) (domain.Waveform, int, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, headerPrefix))
	parts := strings.Split(rest, ",")
	if len(parts) < 6 {
		return domain.Waveform{}, 0, fmt.Errorf("slist: short header: %q", line)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	id := strings.Split(parts[0], "_")
	if len(id) != 4 {
		return domain.Waveform{}, 0, fmt.Errorf("slist: bad source id %q", parts[0])
	}

	count, err := strconv.Atoi(strings.TrimSuffix(parts[1], " samples"))
	if err != nil {
		return domain.Waveform{}, 0, fmt.Errorf("slist: bad sample count %q", parts[1])
	}
	rate, err := strconv.ParseFloat(strings.TrimSuffix(parts[2], " sps"), 64)
	if err != nil || rate <= 0 {
		return domain.Waveform{}, 0, fmt.Errorf("slist: bad sample rate %q", parts[2])
	}
	start, err := time.Parse(domain.PickParseLayout, parts[3])
	if err != nil {
		return domain.Waveform{}, 0, fmt.Errorf("slist: bad start time %q: %w", parts[3], err)
	}
	if parts[4] != "SLIST" {
		return domain.Waveform{}, 0, fmt.Errorf("slist: unsupported format %q", parts[4])
	}

	return domain.Waveform{
		Network:    id[0],
		Station:    id[1],
		Location:   id[2],
		Channel:    id[3],
		Start:      start,
		SampleRate: rate,
	}, count, nil
}

// Encode writes one waveform as a TIMESERIES block.
func Encode(w io.Writer, wf domain.Waveform) error {
	_, err := fmt.Fprintf(w, "%s %s, %d samples, %g sps, %s, SLIST, FLOAT, COUNTS\n",
		headerPrefix, wf.SourceID(), len(wf.Samples), wf.SampleRate,
		wf.Start.Format(domain.StoreTimeLayout))
	if err != nil {
		return fmt.Errorf("slist: write header: %w", err)
	}

	bw := bufio.NewWriter(w)
	for i, v := range wf.Samples {
		if i > 0 {
			if i%samplesPerLine == 0 {
				bw.WriteByte('\n')
			} else {
				bw.WriteByte('\t')
			}
		}
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	if len(wf.Samples) > 0 {
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("slist: write samples: %w", err)
	}
	return nil
}
