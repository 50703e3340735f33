package dsp

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/seismocat/seismic-etl/internal/domain"
)

// Spectrogram frame geometry. Frames overlap by half the FFT length.
const (
	spectrogramNFFT = 256
	spectrogramHop  = spectrogramNFFT / 2
)

// Spectrogram renders the waveform as a grayscale power spectrogram.
// Columns are time frames, rows are frequency bins with the lowest
// frequency at the bottom. Power is log-scaled and stretched over the
// full gray range.
func Spectrogram(wf domain.Waveform) (*image.Gray, error) {
	if len(wf.Samples) < spectrogramNFFT {
		return nil, fmt.Errorf("dsp: trace %s too short for a %d-point spectrogram",
			wf.SourceID(), spectrogramNFFT)
	}

	frames := 1 + (len(wf.Samples)-spectrogramNFFT)/spectrogramHop
	bins := spectrogramNFFT/2 + 1

	window := hann(spectrogramNFFT)
	fft := fourier.NewFFT(spectrogramNFFT)
	segment := make([]float64, spectrogramNFFT)

	power := make([][]float64, frames)
	minDB, maxDB := math.Inf(1), math.Inf(-1)
	for f := 0; f < frames; f++ {
		off := f * spectrogramHop
		for i := range segment {
			segment[i] = wf.Samples[off+i] * window[i]
		}
		coeffs := fft.Coefficients(nil, segment)

		col := make([]float64, bins)
		for k, c := range coeffs {
			p := real(c)*real(c) + imag(c)*imag(c)
			db := 10 * math.Log10(p+1e-20)
			col[k] = db
			if db < minDB {
				minDB = db
			}
			if db > maxDB {
				maxDB = db
			}
		}
		power[f] = col
	}

	span := maxDB - minDB
	if span == 0 {
		span = 1
	}
	img := image.NewGray(image.Rect(0, 0, frames, bins))
	for f, col := range power {
		for k, db := range col {
			shade := uint8(math.Round((db - minDB) / span * 255))
			img.SetGray(f, bins-1-k, color.Gray{Y: shade})
		}
	}
	return img, nil
}

// EncodePNG writes the rendered spectrogram to w.
func EncodePNG(w io.Writer, img *image.Gray) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("dsp: encode png: %w", err)
	}
	return nil
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
