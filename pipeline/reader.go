package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

// Column names of the network's open-data export.
const (
	ColPollutant   = "CONTAMINANT"
	ColDate        = "DATA"
	ColGeoRef      = "GEOREFERENCIA"
	ColCounty      = "NOM COMARCA"
	ColAltitude    = "ALTITUD"
	ColLongitude   = "LONGITUD"
	ColLatitude    = "LATITUD"
	ColArea        = "AREA URBANA"
	ColStationType = "TIPUS ESTACIO"
	ColStationCode = "CODI EUROPEU"
	ColStationName = "NOM ESTACIO"
)

// HourColumns are the 24 value columns, "01h" through "24h".
var HourColumns = func() [24]string {
	var cols [24]string
	for i := range cols {
		cols[i] = fmt.Sprintf("%02dh", i+1)
	}
	return cols
}()

// ReadOptions controls ReadWide. An empty Pollutant keeps every row.
type ReadOptions struct {
	Pollutant string
	Comma     rune
}

func DefaultReadOptions() ReadOptions {
	return ReadOptions{Pollutant: "O3", Comma: ','}
}

// WideTable holds the station-day records that survived the pollutant filter.
type WideTable struct {
	IDColumns []string
	Records   []models.RawRecord
	// RowsRead counts data rows before filtering.
	RowsRead int
}

func ReadWideFile(path string, opts ReadOptions) (*WideTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWide(f, opts)
}

// ReadWide parses the wide CSV. The id columns are every header not named
// in HourColumns. Empty, NA and NaN cells in hourly columns become nil;
// any other non-numeric hourly cell is an error.
func ReadWide(r io.Reader, opts ReadOptions) (*WideTable, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty CSV: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	hourIdx := [24]int{}
	for i := range hourIdx {
		hourIdx[i] = -1
	}
	hourPos := make(map[string]int, 24)
	for i, col := range HourColumns {
		hourPos[col] = i
	}

	table := &WideTable{}
	idIdx := make([]int, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if pos, ok := hourPos[h]; ok {
			hourIdx[pos] = i
			continue
		}
		idIdx = append(idIdx, i)
		table.IDColumns = append(table.IDColumns, h)
	}

	var missing []string
	for i, idx := range hourIdx {
		if idx < 0 {
			missing = append(missing, HourColumns[i])
		}
	}
	for _, col := range []string{ColPollutant, ColDate} {
		if !slices.Contains(table.IDColumns, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		table.RowsRead++
		start, _ := reader.FieldPos(0)

		attrs := make(map[string]string, len(idIdx))
		for _, i := range idIdx {
			attrs[header[i]] = strings.TrimSpace(record[i])
		}
		if opts.Pollutant != "" && attrs[ColPollutant] != opts.Pollutant {
			continue
		}

		raw := models.RawRecord{Line: start, Attrs: attrs}
		for h, i := range hourIdx {
			v, err := parseCell(record[i])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, HourColumns[h], err)
			}
			raw.Hourly[h] = v
		}
		table.Records = append(table.Records, raw)
	}
	return table, nil
}

// parseCell returns nil for missing readings.
func parseCell(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

// parseNumber parses an attribute cell, NaN when missing.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func isMissing(s string) bool {
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return true
	}
	return false
}
