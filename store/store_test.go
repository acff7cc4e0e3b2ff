package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

type fakeDB struct {
	execs   []string
	args    [][]any
	failOn  func(sql string, args []any) error
	copied  [][]any
	table   pgx.Identifier
	columns []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failOn != nil {
		if err := f.failOn(sql, args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	f.table = table
	f.columns = columns
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copied = append(f.copied, values)
		n++
	}
	return n, src.Err()
}

func forecastRows() []models.Forecast {
	ts := time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC)
	rows := make([]models.Forecast, 3)
	for i := range rows {
		rows[i] = models.Forecast{
			TS:          ts.Add(time.Duration(i) * time.Hour),
			Pollutant:   "O3",
			Granularity: models.GranularityHourly,
			Hour:        i,
			Value:       float64(40 + i),
			RunID:       "run-1",
		}
	}
	return rows
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, New(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, 5)
	assert.Contains(t, db.execs[0], "aqi_observations")
	assert.Contains(t, db.execs[1], "UNLOGGED")
}

func TestEnsureSchemaError(t *testing.T) {
	db := &fakeDB{failOn: func(string, []any) error { return errors.New("permission denied") }}
	err := New(db).EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSaveForecasts(t *testing.T) {
	db := &fakeDB{}
	stored, failed := New(db).SaveForecasts(context.Background(), forecastRows())
	assert.Equal(t, 3, stored)
	assert.Equal(t, 0, failed)
	require.Len(t, db.args, 3)
	assert.Len(t, db.args[0], 16)
	assert.Equal(t, "O3", db.args[0][1])
	assert.Equal(t, 41.0, db.args[1][13])
}

func TestSaveForecastsCountsFailures(t *testing.T) {
	db := &fakeDB{failOn: func(_ string, args []any) error {
		if args[3] == 1 {
			return errors.New("duplicate")
		}
		return nil
	}}
	stored, failed := New(db).SaveForecasts(context.Background(), forecastRows())
	assert.Equal(t, 2, stored)
	assert.Equal(t, 1, failed)
}

func TestSaveAggregates(t *testing.T) {
	db := &fakeDB{}
	rows := []models.Aggregate{
		{TS: time.Date(2019, 1, 31, 0, 0, 0, 0, time.UTC), Pollutant: "O3", Granularity: models.GranularityMonthly, Value: 12.5, Count: 744},
	}
	stored, failed := New(db).SaveAggregates(context.Background(), rows)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 744, db.args[0][4])
}

func TestUpsertStations(t *testing.T) {
	alt := 120.0
	db := &fakeDB{}
	n, err := New(db).UpsertStations(context.Background(), []models.Station{
		{Code: "ES0001A", Name: "Gracia", Altitude: &alt},
		{Code: "ES0002A", Name: "Vic"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	db.failOn = func(string, []any) error { return errors.New("boom") }
	_, err = New(db).UpsertStations(context.Background(), []models.Station{{Code: "ES0003A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ES0003A")
}

func TestCopyObservations(t *testing.T) {
	db := &fakeDB{}
	obs := []models.Observation{
		{TS: time.Date(2019, 1, 1, 1, 0, 0, 0, time.UTC), StationCode: "ES0001A", Pollutant: "O3", Value: 10},
		{TS: time.Date(2019, 1, 1, 2, 0, 0, 0, time.UTC), StationCode: "ES0001A", Pollutant: "O3", Value: 11},
	}
	n, err := New(db).CopyObservations(context.Background(), obs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, pgx.Identifier{"aqi_observations_staging"}, db.table)
	assert.Equal(t, observationColumns, db.columns)
	require.Len(t, db.copied, 2)
	assert.Equal(t, 11.0, db.copied[1][9])

	require.Len(t, db.execs, 2)
	assert.True(t, strings.HasPrefix(db.execs[0], "TRUNCATE"))
	assert.Contains(t, db.execs[1], "ON CONFLICT")
}

func TestCopyObservationsEmpty(t *testing.T) {
	db := &fakeDB{}
	n, err := New(db).CopyObservations(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, db.execs)
}
