package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Timestamp layouts at the storage and collaborator boundaries.
const (
	// StoreTimeLayout is the persistent-store encoding. Fractional
	// seconds are always written zero-padded to microseconds.
	StoreTimeLayout = "2006-01-02T15:04:05.000000"

	// PickParseLayout accepts the shorter fractional seconds found in
	// reports and store rows written by other tools.
	PickParseLayout = "2006-01-02T15:04:05.999999"

	// WindowTimeLayout is the bulk-download request encoding, truncated
	// to minute resolution by the fetch collaborator's API.
	WindowTimeLayout = "2006-01-02T15:04"

	// EngineTimeLayout is the slicing-engine encoding: the store
	// encoding with an explicit zone marker.
	EngineTimeLayout = "2006-01-02T15:04:05.999999Z07:00"
)

// ErrWindowTooNarrow reports a slice width too small for the P-S
// separation plus guards. This is a configuration error, not a data
// error: the window and guard constants are misconfigured.
var ErrWindowTooNarrow = errors.New("slice window narrower than P-S separation plus guards")

// CombinePick joins an event date (2006-01-02) with a register pick
// time of day into an absolute instant.
func CombinePick(date, pick string) (time.Time, error) {
	t, err := time.Parse(PickParseLayout, date+"T"+pick)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine pick %q %q: %w", date, pick, err)
	}
	return t, nil
}

// DownloadWindow is the absolute bulk-download bounds for one register.
// Ephemeral; computed on demand, never stored.
type DownloadWindow struct {
	Start time.Time
	Final time.Time
}

// DeriveDownloadWindow centers a window of the given width on the P
// pick. The width must be generous enough to contain any slice window
// plus the true arrivals with margin for velocity-model uncertainty.
func DeriveDownloadWindow(p time.Time, width time.Duration) DownloadWindow {
	half := width / 2
	return DownloadWindow{Start: p.Add(-half), Final: p.Add(half)}
}

// RequestBounds formats the window at the fetch collaborator's minute
// resolution.
func (w DownloadWindow) RequestBounds() (start, final string) {
	return w.Start.Format(WindowTimeLayout), w.Final.Format(WindowTimeLayout)
}

// SliceConfig holds the randomized slice-window constants.
type SliceConfig struct {
	Width time.Duration // full slice window width
	Guard time.Duration // P-S margin kept inside the window
}

// SliceWindow carries one randomized sub-window in both boundary
// encodings. Store and engine strings describe the same instants; the
// slicing engine just wants a literal zone suffix the store rejects.
type SliceWindow struct {
	Start time.Time
	Final time.Time

	StartStore  string
	FinalStore  string
	StartEngine string
	FinalEngine string
}

// Slice selects a window of cfg.Width uniformly at random, at
// millisecond granularity, such that [p-guard, s+guard] always lies
// inside it. The draw range is [s+guard-width, p-guard] inclusive on
// both ends; an empty range is ErrWindowTooNarrow.
func Slice(p, s time.Time, cfg SliceConfig, rng *rand.Rand) (SliceWindow, error) {
	earliest := s.Add(cfg.Guard).Add(-cfg.Width) // S stays off the back edge
	latest := p.Add(-cfg.Guard)                  // P stays off the front edge
	if earliest.After(latest) {
		return SliceWindow{}, fmt.Errorf("%w: p=%s s=%s width=%s guard=%s",
			ErrWindowTooNarrow,
			p.Format(StoreTimeLayout), s.Format(StoreTimeLayout),
			cfg.Width, cfg.Guard)
	}

	periodMs := latest.Sub(earliest).Milliseconds()
	shift := rng.Int63n(periodMs + 1)
	start := earliest.Add(time.Duration(shift) * time.Millisecond)
	final := start.Add(cfg.Width)

	startStore := start.Format(StoreTimeLayout)
	finalStore := final.Format(StoreTimeLayout)
	return SliceWindow{
		Start:       start,
		Final:       final,
		StartStore:  startStore,
		FinalStore:  finalStore,
		StartEngine: startStore + "Z",
		FinalEngine: finalStore + "Z",
	}, nil
}
