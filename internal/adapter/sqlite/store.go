// Package sqlite persists catalog, register, trace, and record rows in
// an embedded sqlite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/seismocat/seismic-etl/internal/domain"
)

// Store wraps the sqlite database behind the pipeline's persistence
// operations.
type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// Serializes writers; sqlite allows one at a time.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS earthquake (
		code      TEXT PRIMARY KEY,
		date      TEXT NOT NULL,
		time      TEXT NOT NULL,
		lat       REAL,
		lon       REAL,
		depth     REAL,
		magnitude REAL
	)`,
	`CREATE TABLE IF NOT EXISTS station (
		name     TEXT PRIMARY KEY,
		network  TEXT NOT NULL,
		lat      REAL,
		lon      REAL,
		altitude INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS register (
		code      TEXT NOT NULL,
		station   TEXT NOT NULL,
		p_time    TEXT NOT NULL,
		s_time    TEXT NOT NULL,
		amplitude REAL,
		magnitude REAL,
		PRIMARY KEY (code, station)
	)`,
	`CREATE TABLE IF NOT EXISTS trace (
		code      TEXT NOT NULL,
		station   TEXT NOT NULL,
		component TEXT NOT NULL,
		start     TEXT NOT NULL,
		final     TEXT NOT NULL,
		type      INTEGER NOT NULL,
		location  TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (code, station, component, type)
	)`,
	`CREATE TABLE IF NOT EXISTS crisis (
		start TEXT NOT NULL,
		final TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS record (
		code        TEXT NOT NULL,
		station     TEXT NOT NULL,
		component   TEXT NOT NULL,
		type        INTEGER NOT NULL,
		p_pixel     INTEGER NOT NULL,
		s_pixel     INTEGER NOT NULL,
		event_start INTEGER NOT NULL,
		event_final INTEGER NOT NULL,
		split       INTEGER NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (code, station, component)
	)`,
}

// EnsureSchema creates any missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertEarthquakes stores catalog events, ignoring codes already
// present.
func (s *Store) InsertEarthquakes(ctx context.Context, quakes []domain.Earthquake) error {
	return s.batch(ctx, `INSERT OR IGNORE INTO earthquake
		(code, date, time, lat, lon, depth, magnitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(quakes), func(i int) []any {
			q := quakes[i]
			return []any{q.Code, q.Date, q.Time, q.Lat, q.Lon, q.Depth, q.Magnitude}
		})
}

// InsertStations stores inventory rows, ignoring names already present.
func (s *Store) InsertStations(ctx context.Context, stations []domain.Station) error {
	return s.batch(ctx, `INSERT OR IGNORE INTO station
		(name, network, lat, lon, altitude)
		VALUES (?, ?, ?, ?, ?)`,
		len(stations), func(i int) []any {
			st := stations[i]
			return []any{st.Name, st.Network, st.Lat, st.Lon, st.Altitude}
		})
}

// InsertRegisters stores the arrival records of one event.
func (s *Store) InsertRegisters(ctx context.Context, records []domain.ArrivalRecord) error {
	return s.batch(ctx, `INSERT OR IGNORE INTO register
		(code, station, p_time, s_time, amplitude, magnitude)
		VALUES (?, ?, ?, ?, ?, ?)`,
		len(records), func(i int) []any {
			r := records[i]
			return []any{r.Code, r.Station, r.PTime, r.STime, r.Amplitude, r.Magnitude}
		})
}

// InsertTraces stores artifact rows for sliced or derived traces.
func (s *Store) InsertTraces(ctx context.Context, rows []domain.TraceRow) error {
	return s.batch(ctx, `INSERT OR IGNORE INTO trace
		(code, station, component, start, final, type, location)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			t := rows[i]
			return []any{t.Code, t.Station, t.Component, t.Start, t.Final, t.Type, t.Location}
		})
}

// InsertRecords stores labeled spectrogram rows.
func (s *Store) InsertRecords(ctx context.Context, rows []domain.RecordRow) error {
	return s.batch(ctx, `INSERT OR IGNORE INTO record
		(code, station, component, type, p_pixel, s_pixel, event_start, event_final, split, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.Code, r.Station, r.Component, r.Type,
				r.PPixel, r.SPixel, r.EventStart, r.EventFinal, r.Split, r.Location}
		})
}

// InsertCrisis stores one crisis interval; events dated inside it are
// excluded from trace download.
func (s *Store) InsertCrisis(ctx context.Context, start, final string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crisis (start, final) VALUES (?, ?)`, start, final)
	if err != nil {
		return fmt.Errorf("insert crisis: %w", err)
	}
	return nil
}

func (s *Store) batch(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("exec row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CodesWithoutRegisters lists catalog events that have no arrival
// records yet, oldest code first.
func (s *Store) CodesWithoutRegisters(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.code FROM earthquake e
		WHERE NOT EXISTS (SELECT 1 FROM register r WHERE r.code = e.code)
		ORDER BY e.code`)
	if err != nil {
		return nil, fmt.Errorf("codes without registers: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// PendingRegisters lists registers that still lack a raw trace,
// excluding events dated inside a crisis interval.
func (s *Store) PendingRegisters(ctx context.Context) ([]domain.PendingRegister, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.code, r.station, e.date, r.p_time, r.s_time
		FROM register r
		JOIN earthquake e ON e.code = r.code
		WHERE NOT EXISTS (
			SELECT 1 FROM trace t
			WHERE t.code = r.code AND t.station = r.station AND t.type = ?
		)
		AND NOT EXISTS (
			SELECT 1 FROM crisis c
			WHERE e.date >= c.start AND e.date <= c.final
		)
		ORDER BY r.code, r.station`, domain.TraceRaw)
	if err != nil {
		return nil, fmt.Errorf("pending registers: %w", err)
	}
	defer rows.Close()

	var pending []domain.PendingRegister
	for rows.Next() {
		var p domain.PendingRegister
		if err := rows.Scan(&p.Code, &p.Station, &p.Date, &p.PTime, &p.STime); err != nil {
			return nil, fmt.Errorf("scan pending register: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// PendingTraces lists traces of one type that have no counterpart of
// the derived type yet.
func (s *Store) PendingTraces(ctx context.Context, have, want int) ([]domain.TraceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.code, t.station, t.component, t.start, t.final, t.type, t.location
		FROM trace t
		WHERE t.type = ?
		AND NOT EXISTS (
			SELECT 1 FROM trace u
			WHERE u.code = t.code AND u.station = t.station
			AND u.component = t.component AND u.type = ?
		)
		ORDER BY t.code, t.station, t.component`, have, want)
	if err != nil {
		return nil, fmt.Errorf("pending traces %d->%d: %w", have, want, err)
	}
	defer rows.Close()

	var pending []domain.TraceRow
	for rows.Next() {
		var t domain.TraceRow
		if err := rows.Scan(&t.Code, &t.Station, &t.Component,
			&t.Start, &t.Final, &t.Type, &t.Location); err != nil {
			return nil, fmt.Errorf("scan pending trace: %w", err)
		}
		pending = append(pending, t)
	}
	return pending, rows.Err()
}

// SpectrogramRegisters lists rendered spectrograms joined with their
// register picks, skipping ones already labeled.
func (s *Store) SpectrogramRegisters(ctx context.Context) ([]domain.SpectrogramRegister, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.code, t.station, t.component, t.start, t.final,
		       r.p_time, r.s_time, t.location
		FROM trace t
		JOIN register r ON r.code = t.code AND r.station = t.station
		WHERE t.type = ?
		AND NOT EXISTS (
			SELECT 1 FROM record d
			WHERE d.code = t.code AND d.station = t.station AND d.component = t.component
		)
		ORDER BY t.code, t.station, t.component`, domain.TraceSpectrogram)
	if err != nil {
		return nil, fmt.Errorf("spectrogram registers: %w", err)
	}
	defer rows.Close()

	var regs []domain.SpectrogramRegister
	for rows.Next() {
		var sr domain.SpectrogramRegister
		if err := rows.Scan(&sr.Code, &sr.Station, &sr.Component,
			&sr.Start, &sr.Final, &sr.PTime, &sr.STime, &sr.Location); err != nil {
			return nil, fmt.Errorf("scan spectrogram register: %w", err)
		}
		regs = append(regs, sr)
	}
	return regs, rows.Err()
}
