// Package domain models ICGC seismic catalog data: GSE phase reports,
// arrival registers, trace windows, and spectrogram labels.
//
// # Data Sources
//
// Earthquake events come from the ICGC earthquake catalog CSV exports.
// Per-event phase arrival reports come from the catalog's GSE document
// endpoint; continuous waveforms come from the FDSN dataselect service
// of the CA network.
//
// # GSE Phase Tables
//
// A GSE report is a plain-text document. The station phase table starts
// after the last header line beginning with "Sta" and ends before the
// two trailing summary lines. Each table row is a whitespace-separated
// positional record:
//
//	P rows carry 8 fields, S rows carry 12.
//	Field 0 is the station code, field 3 the phase letter.
//	The P arrival sits at field 1; the S arrival at field 4, with the
//	trace amplitude and station magnitude at fields 7 and 8.
//
// Rows for the same station are adjacent: a P row immediately followed
// by an S row for the same station forms one register pair. Phase codes
// other than a plain "P" or "S" mark depth phases and are excluded, as
// are rows with a non-standard field count (incomplete station reports).
// Both conditions are common in real reports and are dropped silently.
//
// # Time Windows
//
// Pick times are stored as time-of-day strings exactly as reported and
// combined with the event date when an absolute instant is needed.
// Three timestamp encodings appear at the boundaries:
//
//	store:    2006-01-02T15:04:05.000000  (microseconds, zero padded)
//	engine:   store encoding + literal "Z" (waveform slicing collaborator)
//	download: 2006-01-02T15:04            (bulk fetch, minute resolution)
//
// The bulk-download window is BIG_WINDOW_WIDTH wide and centered on the
// P pick. The training slice window is narrower and placed at random,
// constrained so the interval [P-guard, S+guard] always stays inside it.
//
// # Spectrogram Labels
//
// Rendered spectrograms are pixel-indexed by time. Picks map to pixel
// columns through the pixels-per-millisecond scale of the rendered
// window; the earthquake signal bounds stretch a small margin ahead of
// the P onset and a large one behind the S onset (coda). Only the upper
// bound is clamped to the image width — a pick very close to the window
// start can produce a negative lower bound, which downstream tooling
// tolerates.
package domain
