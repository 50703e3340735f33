// Package dsp holds the waveform processing engine: window slicing,
// frequency-domain filtering, resampling, and spectrogram rendering.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/seismocat/seismic-etl/internal/domain"
)

// ErrOutsideTrace reports a slice window that does not overlap the
// trace at all.
var ErrOutsideTrace = errors.New("dsp: window outside trace bounds")

// Slice cuts the sub-window bounded by two engine-encoded instants out
// of a waveform. Bounds are clamped to the trace; a window entirely
// outside the trace is ErrOutsideTrace.
func Slice(wf domain.Waveform, startEngine, finalEngine string) (domain.Waveform, error) {
	start, err := time.Parse(domain.EngineTimeLayout, startEngine)
	if err != nil {
		return domain.Waveform{}, fmt.Errorf("dsp: parse window start %q: %w", startEngine, err)
	}
	final, err := time.Parse(domain.EngineTimeLayout, finalEngine)
	if err != nil {
		return domain.Waveform{}, fmt.Errorf("dsp: parse window final %q: %w", finalEngine, err)
	}

	i := sampleIndex(wf, start)
	j := sampleIndex(wf, final)
	if i < 0 {
		start = wf.Start
		i = 0
	}
	if j > len(wf.Samples) {
		j = len(wf.Samples)
	}
	if i >= len(wf.Samples) || j <= 0 || i >= j {
		return domain.Waveform{}, fmt.Errorf("%w: %s [%s, %s]",
			ErrOutsideTrace, wf.SourceID(), startEngine, finalEngine)
	}

	out := wf
	out.Start = wf.Start.Add(time.Duration(float64(i) / wf.SampleRate * float64(time.Second)))
	out.Samples = append([]float64(nil), wf.Samples[i:j]...)
	return out, nil
}

func sampleIndex(wf domain.Waveform, t time.Time) int {
	offset := t.Sub(wf.Start).Seconds()
	return int(math.Round(offset * wf.SampleRate))
}

// Apply runs a zero-phase frequency-domain filter over the waveform and
// normalizes the result to unit peak amplitude. Band kinds use both
// corners; lowpass and highpass use freqMin as the single corner.
func Apply(wf domain.Waveform, kind string, freqMin, freqMax float64) (domain.Waveform, error) {
	n := len(wf.Samples)
	if n == 0 {
		return wf, nil
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, wf.Samples)

	// Bin k sits at k * rate / n Hz.
	binHz := wf.SampleRate / float64(n)
	for k := range coeffs {
		f := float64(k) * binHz
		var keep bool
		switch kind {
		case "bandpass":
			keep = f >= freqMin && f <= freqMax
		case "bandstop":
			keep = f < freqMin || f > freqMax
		case "lowpass":
			keep = f <= freqMin
		case "highpass":
			keep = f >= freqMin
		default:
			return domain.Waveform{}, fmt.Errorf("dsp: unsupported filter kind %q", kind)
		}
		if !keep {
			coeffs[k] = 0
		}
	}

	out := wf
	out.Samples = fft.Sequence(nil, coeffs)
	// Sequence is unnormalized; undo the length scaling.
	for i := range out.Samples {
		out.Samples[i] /= float64(n)
	}
	normalize(out.Samples)
	return out, nil
}

// normalize scales samples to a peak absolute amplitude of 1. An
// all-zero trace is left untouched.
func normalize(samples []float64) {
	var peak float64
	for _, v := range samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	for i := range samples {
		samples[i] /= peak
	}
}

// Resample converts the waveform to the target rate with the Fourier
// method: transform, truncate or zero-pad the spectrum, inverse
// transform at the new length.
func Resample(wf domain.Waveform, rate float64) (domain.Waveform, error) {
	if rate <= 0 {
		return domain.Waveform{}, fmt.Errorf("dsp: invalid target rate %g", rate)
	}
	n := len(wf.Samples)
	if n == 0 || rate == wf.SampleRate {
		out := wf
		out.SampleRate = rate
		return out, nil
	}

	m := int(math.Round(float64(n) * rate / wf.SampleRate))
	if m < 1 {
		return domain.Waveform{}, fmt.Errorf("dsp: trace too short to resample to %g sps", rate)
	}

	fwd := fourier.NewFFT(n)
	coeffs := fwd.Coefficients(nil, wf.Samples)

	resized := make([]complex128, m/2+1)
	copy(resized, coeffs[:min(len(coeffs), len(resized))])

	inv := fourier.NewFFT(m)
	samples := inv.Sequence(nil, resized)
	for i := range samples {
		samples[i] /= float64(n)
	}

	out := wf
	out.SampleRate = rate
	out.Samples = samples
	return out, nil
}
