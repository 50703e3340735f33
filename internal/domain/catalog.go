package domain

import "strings"

// Earthquake is one catalog event row. Events are supplied by the
// catalog export; this pipeline never creates them from scratch.
type Earthquake struct {
	Code      string
	Date      string // 2006-01-02
	Time      string
	Lat       float64
	Lon       float64
	Depth     float64
	Magnitude float64
}

// Station is one seismic station inventory row.
type Station struct {
	Name     string
	Network  string
	Lat      float64
	Lon      float64
	Altitude int
}

// Catalog CSV column offsets. The export carries twelve columns whose
// headers depend on the download language, so rows are addressed by
// position after the header is stripped.
const (
	catCode      = 0
	catDate      = 1
	catTime      = 2
	catLat       = 3
	catLon       = 4
	catDepth     = 5
	catMagnitude = 6
	catArea      = 9
	catSource    = 10

	catMinFields = 11
)

// ParseCatalogRows filters header-stripped catalog CSV rows into
// earthquake rows: local events sourced by the ICGC, with codes not
// already seen in earlier files. seen is updated in place so the same
// map can be threaded through every catalog file.
func ParseCatalogRows(rows [][]string, seen map[string]bool) []Earthquake {
	var quakes []Earthquake
	for _, row := range rows {
		if len(row) < catMinFields {
			continue
		}
		code := strings.TrimSpace(row[catCode])
		if code == "" || seen[code] {
			continue
		}
		if row[catArea] != "Local" || row[catSource] != "ICGC" {
			continue
		}
		seen[code] = true
		quakes = append(quakes, Earthquake{
			Code:      code,
			Date:      row[catDate],
			Time:      row[catTime],
			Lat:       parseFloatOrZero(row[catLat]),
			Lon:       parseFloatOrZero(row[catLon]),
			Depth:     parseFloatOrZero(row[catDepth]),
			Magnitude: parseFloatOrZero(row[catMagnitude]),
		})
	}
	return quakes
}

// Station inventory kinds kept by ParseStations. Only broadband
// velocimeter sites record the full waveform this pipeline windows.
const (
	kindBroadband      = "Broadband velocimeter"
	kindBroadbandAccel = "Broadband velocimeter and Accelerometer"
)

// ParseStations parses the station inventory text: header-stripped
// three-line blocks of "NETWORK.NAME", a display line, and a
// tab-separated data line (latitude, longitude, altitude, instrument
// kind). Blocks for other instrument kinds are skipped.
func ParseStations(lines []string) []Station {
	var stations []Station
	for len(lines) >= 3 {
		block := lines[:3]
		lines = lines[3:]

		network, name, ok := strings.Cut(strings.TrimSpace(block[0]), ".")
		if !ok {
			continue
		}
		fields := strings.Split(block[2], "\t")
		if len(fields) < 5 {
			continue
		}
		kind := strings.TrimSpace(fields[4])
		if kind != kindBroadband && kind != kindBroadbandAccel {
			continue
		}
		stations = append(stations, Station{
			Name:     name,
			Network:  network,
			Lat:      parseFloatOrZero(fields[1]),
			Lon:      parseFloatOrZero(fields[2]),
			Altitude: int(parseFloatOrZero(fields[3])),
		})
	}
	return stations
}
