package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

// Hour24Policy decides which calendar day the "24h" reading lands on.
type Hour24Policy string

const (
	// SameDay maps "24h" of day D to D 00:00.
	SameDay Hour24Policy = "same-day"
	// NextDay maps "24h" of day D to D+1 00:00.
	NextDay Hour24Policy = "next-day"
)

func ParseHour24Policy(s string) (Hour24Policy, error) {
	switch p := Hour24Policy(s); p {
	case SameDay, NextDay:
		return p, nil
	case "":
		return SameDay, nil
	default:
		return "", fmt.Errorf("unknown hour-24 policy %q", s)
	}
}

// droppedColumns never reach an Observation's Attrs.
var droppedColumns = map[string]bool{
	ColDate:   true,
	ColGeoRef: true,
	ColCounty: true,
}

// MeltStats describes one Melt call.
type MeltStats struct {
	Records int
	// Rows is the number of long rows before missing values are dropped.
	Rows    int
	Missing int
}

// Kept is the number of observations returned.
func (s MeltStats) Kept() int { return s.Rows - s.Missing }

// HourLabel converts a column label such as "07h" or "24h" to the two-digit
// hour used in timestamps; "24" becomes "00".
func HourLabel(column string) string {
	hour := strings.TrimSuffix(column, "h")
	if hour == "24" {
		return "00"
	}
	return hour
}

// Melt reshapes wide station-day records into one observation per
// (record, hour), ordered by record then hour. Every timestamp is parsed
// before missing readings are dropped, so a malformed DATA cell fails the
// whole call even when its readings are empty.
func Melt(records []models.RawRecord, policy Hour24Policy) ([]models.Observation, MeltStats, error) {
	stats := MeltStats{Records: len(records)}
	out := make([]models.Observation, 0, len(records)*len(HourColumns))

	for i, rec := range records {
		base, err := baseObservation(rec.Attrs)
		if err != nil {
			return nil, stats, fmt.Errorf("%s: %w", recordPosition(rec, i), err)
		}
		date := rec.Attrs[ColDate]
		for h, col := range HourColumns {
			ts, err := ParseTimestamp(date, HourLabel(col))
			if err != nil {
				return nil, stats, fmt.Errorf("%s: %w", recordPosition(rec, i), err)
			}
			if col == "24h" && policy == NextDay {
				ts = ts.AddDate(0, 0, 1)
			}
			stats.Rows++
			if rec.Hourly[h] == nil {
				stats.Missing++
				continue
			}
			obs := base
			obs.TS = ts
			obs.Value = *rec.Hourly[h]
			out = append(out, obs)
		}
	}
	return out, stats, nil
}

// recordPosition names a record by its CSV line, or by its index when the
// record was not read from a file.
func recordPosition(rec models.RawRecord, i int) string {
	if rec.Line > 0 {
		return fmt.Sprintf("line %d", rec.Line)
	}
	return fmt.Sprintf("record %d", i)
}

// baseObservation maps the id columns of a record onto the typed
// Observation fields shared by its 24 rows.
func baseObservation(attrs map[string]string) (models.Observation, error) {
	obs := models.Observation{
		StationCode: attrs[ColStationCode],
		StationName: attrs[ColStationName],
		Pollutant:   attrs[ColPollutant],
		AreaType:    attrs[ColArea],
		StationType: attrs[ColStationType],
		Attrs:       make(map[string]string, len(attrs)),
	}
	for k, v := range attrs {
		if !droppedColumns[k] {
			obs.Attrs[k] = v
		}
	}

	var err error
	if obs.Altitude, err = parseNumber(attrs[ColAltitude]); err != nil {
		return obs, fmt.Errorf("column %s: %w", ColAltitude, err)
	}
	if obs.Longitude, err = parseNumber(attrs[ColLongitude]); err != nil {
		return obs, fmt.Errorf("column %s: %w", ColLongitude, err)
	}
	if obs.Latitude, err = parseNumber(attrs[ColLatitude]); err != nil {
		return obs, fmt.Errorf("column %s: %w", ColLatitude, err)
	}

	if math.IsNaN(obs.Longitude) || math.IsNaN(obs.Latitude) {
		if lon, lat, ok := pointFromWKT(attrs[ColGeoRef]); ok {
			if math.IsNaN(obs.Longitude) {
				obs.Longitude = lon
			}
			if math.IsNaN(obs.Latitude) {
				obs.Latitude = lat
			}
		}
	}
	return obs, nil
}

// pointFromWKT reads a GEOREFERENCIA cell such as "POINT (2.15 41.38)".
func pointFromWKT(s string) (lon, lat float64, ok bool) {
	if strings.TrimSpace(s) == "" {
		return 0, 0, false
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return 0, 0, false
	}
	p, isPoint := g.(*geom.Point)
	if !isPoint || len(p.FlatCoords()) < 2 {
		return 0, 0, false
	}
	return p.X(), p.Y(), true
}
