package domain

import (
	"math"
	"time"
)

// PixelConfig holds the earthquake-signal margins applied around the
// picks when boxing a spectrogram.
type PixelConfig struct {
	PMargin time.Duration // ahead of the P onset
	SMargin time.Duration // behind the S onset, covers the coda
}

// SpectrogramBox is the pixel-space bounds of the earthquake signal in
// one rendered spectrogram. Derived, never persisted as-is.
type SpectrogramBox struct {
	File       string
	PPixel     int
	SPixel     int
	EventStart int
	EventFinal int
}

// MapPixels locates the picks and the margined earthquake signal inside
// a rendered spectrogram of the given pixel width. start and final are
// the absolute bounds of the rendered window. Pick pixels round down;
// margin pixels round up. EventFinal is clamped to the image width;
// EventStart is left unclamped and can go negative for picks close to
// the window start.
func MapPixels(start, final, p, s time.Time, imageWidth int, cfg PixelConfig) SpectrogramBox {
	windowMs := float64(final.Sub(start).Milliseconds())
	ppms := float64(imageWidth) / windowMs // pixels per millisecond

	pPixel := int(math.Floor(float64(p.Sub(start).Milliseconds()) * ppms))
	sPixel := int(math.Floor(float64(s.Sub(start).Milliseconds()) * ppms))

	eventStart := pPixel - int(math.Ceil(float64(cfg.PMargin.Milliseconds())*ppms))
	eventFinal := sPixel + int(math.Ceil(float64(cfg.SMargin.Milliseconds())*ppms))
	if eventFinal > imageWidth {
		eventFinal = imageWidth
	}

	return SpectrogramBox{
		PPixel:     pPixel,
		SPixel:     sPixel,
		EventStart: eventStart,
		EventFinal: eventFinal,
	}
}

// BoundingBox is a normalized single-class detector label.
type BoundingBox struct {
	XMin  float64 `json:"xmin"`
	XMax  float64 `json:"xmax"`
	YMin  float64 `json:"ymin"`
	YMax  float64 `json:"ymax"`
	Class string  `json:"class"`
	Label int     `json:"label"`
}

// NormalizedBox scales the pixel bounds to [0,1] image coordinates
// with full vertical extent and the single "earthquake" class.
func (b SpectrogramBox) NormalizedBox(imageWidth int) BoundingBox {
	w := float64(imageWidth)
	return BoundingBox{
		XMin:  float64(b.EventStart) / w,
		XMax:  float64(b.EventFinal) / w,
		YMin:  0,
		YMax:  1,
		Class: "earthquake",
		Label: 1,
	}
}

// LabelEvent is the exported training label for one spectrogram,
// published to the label sink and written to the label files.
type LabelEvent struct {
	Code      string      `json:"code"`
	Station   string      `json:"station"`
	Component string      `json:"component"`
	File      string      `json:"file"`
	Split     string      `json:"split"` // "train" or "test"
	Box       BoundingBox `json:"box"`
}
