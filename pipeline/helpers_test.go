package pipeline

import (
	"fmt"
	"strings"
)

type wideRow struct {
	code      string
	date      string
	pollutant string
	altitude  string
	lon       string
	lat       string
	area      string
	kind      string
	georef    string
	// values holds the 24 hourly cells; shorter slices are padded with value(h).
	values []string
}

var testHeader = []string{
	ColStationCode, ColStationName, ColDate, ColPollutant, ColAltitude, ColLongitude,
	ColLatitude, ColArea, ColStationType, ColGeoRef, ColCounty,
}

// value is the default reading for hour column h (0-based).
func value(h int) string { return fmt.Sprintf("%d", h+1) }

func wideCSV(rows ...wideRow) string {
	var b strings.Builder
	header := append([]string(nil), testHeader...)
	for _, c := range HourColumns {
		header = append(header, c)
	}
	b.WriteString(strings.Join(header, ","))
	b.WriteString("\n")
	for _, r := range rows {
		if r.pollutant == "" {
			r.pollutant = "O3"
		}
		cells := []string{
			r.code, "Station " + r.code, r.date, r.pollutant, r.altitude, r.lon, r.lat,
			r.area, r.kind, quote(r.georef), "Barcelones",
		}
		for h := range HourColumns {
			if h < len(r.values) {
				cells = append(cells, r.values[h])
			} else {
				cells = append(cells, value(h))
			}
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return ""
	}
	return `"` + s + `"`
}

func station(code, date string) wideRow {
	return wideRow{
		code:     code,
		date:     date,
		altitude: "7",
		lon:      "2.15",
		lat:      "41.38",
		area:     "urban",
		kind:     "traffic",
		georef:   "POINT (2.15 41.38)",
	}
}
