package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// FailureLog is the append-only CSV of (code, station) pairs whose
// waveform download failed. Logged pairs are skipped on later runs so a
// station that was down does not stall the batch forever.
type FailureLog struct {
	mu   sync.Mutex
	path string
}

// NewFailureLog tracks failures in the CSV at path. The file is created
// on first append.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Append records one failed download.
func (l *FailureLog) Append(code, station string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open failure log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{code, station}); err != nil {
		return fmt.Errorf("append failure: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush failure log: %w", err)
	}
	return nil
}

// Pairs loads every logged (code, station) pair. A missing file is an
// empty log.
func (l *FailureLog) Pairs() (map[[2]string]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[[2]string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read failure log: %w", err)
	}

	pairs := make(map[[2]string]bool, len(rows))
	for _, row := range rows {
		pairs[[2]string{row[0], row[1]}] = true
	}
	return pairs, nil
}
