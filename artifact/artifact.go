// Package artifact serializes tool results and delivers them to sinks.
package artifact

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
)

type Format string

const (
	FormatGob     Format = "gob"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatGob, FormatJSON, FormatParquet:
		return f, nil
	case "":
		return FormatGob, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

func (f Format) Extension() string { return "." + string(f) }

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

// OutputPath picks the artifact location: <name><ext> in the working
// directory in local mode, resultPath otherwise.
func OutputPath(local bool, name string, f Format, resultPath string) string {
	if local {
		return name + f.Extension()
	}
	return resultPath
}

// EncodeForecast writes t in format f.
func EncodeForecast(w io.Writer, f Format, t models.ForecastTable) error {
	switch f {
	case FormatGob:
		return gob.NewEncoder(w).Encode(t)
	case FormatJSON:
		return json.NewEncoder(w).Encode(forecastJSON(t))
	case FormatParquet:
		rows := make([]forecastRow, len(t.Rows))
		for i, r := range t.Rows {
			rows[i] = newForecastRow(r)
		}
		return writeParquet(w, new(forecastRow), rows)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// EncodeSeries writes an aggregated series. Gob and JSON carry the
// one-dimensional array of means; parquet keeps timestamp and count too.
func EncodeSeries(w io.Writer, f Format, points []pipeline.Point) error {
	switch f {
	case FormatGob:
		return gob.NewEncoder(w).Encode(pipeline.Means(points))
	case FormatJSON:
		return json.NewEncoder(w).Encode(pipeline.Means(points))
	case FormatParquet:
		rows := make([]seriesRow, len(points))
		for i, p := range points {
			rows[i] = seriesRow{Datetime: p.TS.UnixMilli(), Mean: p.Mean, Count: int64(p.Count)}
		}
		return writeParquet(w, new(seriesRow), rows)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// forecastJSON flattens a table so each row carries the prediction under
// "<pollutant>_forecast".
func forecastJSON(t models.ForecastTable) map[string]any {
	valueKey := t.Pollutant + "_forecast"
	rows := make([]map[string]any, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = map[string]any{
			"datetime":      r.TS.Format(time.RFC3339),
			"hour":          r.Hour,
			"day":           r.Day,
			"weekday":       r.Weekday,
			"month":         r.Month,
			"year":          r.Year,
			"ALTITUD":       r.Altitude,
			"LONGITUD":      r.Longitude,
			"LATITUD":       r.Latitude,
			"AREA URBANA":   r.AreaCode,
			"TIPUS ESTACIO": r.TypeCode,
			valueKey:        r.Value,
		}
	}
	return map[string]any{
		"run_id":      t.RunID,
		"pollutant":   t.Pollutant,
		"granularity": t.Granularity,
		"score":       t.Score,
		"rows":        rows,
	}
}

type forecastRow struct {
	Datetime     int64   `parquet:"name=datetime, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Pollutant    string  `parquet:"name=pollutant, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Granularity  string  `parquet:"name=granularity, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Hour         int32   `parquet:"name=hour, type=INT32"`
	Day          int32   `parquet:"name=day, type=INT32"`
	Weekday      int32   `parquet:"name=weekday, type=INT32"`
	Month        int32   `parquet:"name=month, type=INT32"`
	Year         int32   `parquet:"name=year, type=INT32"`
	Altitude     float64 `parquet:"name=altitude, type=DOUBLE"`
	Longitude    float64 `parquet:"name=longitude, type=DOUBLE"`
	Latitude     float64 `parquet:"name=latitude, type=DOUBLE"`
	AreaCode     int32   `parquet:"name=area_code, type=INT32"`
	TypeCode     int32   `parquet:"name=station_type_code, type=INT32"`
	Forecast     float64 `parquet:"name=forecast, type=DOUBLE"`
	RunID        string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ModelVersion string  `parquet:"name=model_version, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

func newForecastRow(r models.Forecast) forecastRow {
	return forecastRow{
		Datetime:     r.TS.UnixMilli(),
		Pollutant:    r.Pollutant,
		Granularity:  r.Granularity,
		Hour:         int32(r.Hour),
		Day:          int32(r.Day),
		Weekday:      int32(r.Weekday),
		Month:        int32(r.Month),
		Year:         int32(r.Year),
		Altitude:     r.Altitude,
		Longitude:    r.Longitude,
		Latitude:     r.Latitude,
		AreaCode:     int32(r.AreaCode),
		TypeCode:     int32(r.TypeCode),
		Forecast:     r.Value,
		RunID:        r.RunID,
		ModelVersion: r.ModelVersion,
	}
}

const parquetParallelism = 4

type seriesRow struct {
	Datetime int64   `parquet:"name=datetime, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Mean     float64 `parquet:"name=mean, type=DOUBLE"`
	Count    int64   `parquet:"name=count, type=INT64"`
}

// writeParquet writes rows as one snappy-compressed row group. The
// library panics on some schema errors; those are returned as errors.
func writeParquet[T any](w io.Writer, prototype *T, rows []T) (err error) {
	defer recoverParquet(&err)

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, prototype, parquetParallelism)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func recoverParquet(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("parquet writer panicked: %v", r)
	}
}
