package domain

import (
	"errors"
	"time"
)

// ErrNoWaveform reports a waveform request window with no recorded
// data.
var ErrNoWaveform = errors.New("no waveform data for window")

// Waveform is one continuous single-channel trace segment.
type Waveform struct {
	Network    string
	Station    string
	Location   string
	Channel    string
	Start      time.Time
	SampleRate float64
	Samples    []float64
}

// Component is the single-letter orientation code, the last character
// of the channel (e.g. "HHZ" -> "Z").
func (w Waveform) Component() string {
	if w.Channel == "" {
		return ""
	}
	return w.Channel[len(w.Channel)-1:]
}

// Final is the instant just past the last sample.
func (w Waveform) Final() time.Time {
	if w.SampleRate == 0 {
		return w.Start
	}
	d := time.Duration(float64(len(w.Samples)) / w.SampleRate * float64(time.Second))
	return w.Start.Add(d)
}

// SourceID is the NET_STA_LOC_CHA identifier used in file headers.
func (w Waveform) SourceID() string {
	return w.Network + "_" + w.Station + "_" + w.Location + "_" + w.Channel
}

// Trace types index the derivation chain stored in the trace table.
const (
	TraceRaw         = 0
	TraceFiltered    = 1
	TraceSpectrogram = 2
	TraceRecord      = 3
)

// TraceRow mirrors the trace table schema: one stored artifact derived
// from one (event, station, component) trace.
type TraceRow struct {
	Code      string
	Station   string
	Component string
	Start     string // store encoding
	Final     string
	Type      int
	Location  string
}

// PendingRegister is a register joined with its event date, queued for
// raw-trace download.
type PendingRegister struct {
	Code    string
	Station string
	Date    string // 2006-01-02
	PTime   string // time of day
	STime   string
}

// SpectrogramRegister is a spectrogram trace row joined with its
// register picks, queued for label derivation.
type SpectrogramRegister struct {
	Code      string
	Station   string
	Component string
	Start     string // store encoding, bounds of the rendered window
	Final     string
	PTime     string // time of day
	STime     string
	Location  string
}

// RecordRow mirrors the record table schema: one labeled spectrogram
// assigned to the train (0) or test (1) split.
type RecordRow struct {
	Code       string
	Station    string
	Component  string
	Type       int
	PPixel     int
	SPixel     int
	EventStart int
	EventFinal int
	Split      int
	Location   string
}
