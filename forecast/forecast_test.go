package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
	"github.com/wetdog/AQI-Catalonia-Challenge/regression"
)

var threshold = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

func hourlyConfig(kind string) Config {
	opts := regression.DefaultOptions()
	opts.MaxIter = 100
	return Config{
		RunID:        "run-1",
		Pollutant:    "O3",
		Threshold:    threshold,
		Start:        time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		ModelKind:    kind,
		ModelVersion: "test-v1",
		Model:        opts,
	}
}

// diurnalRows builds hourly observations for two stations whose value is
// 10 + hour, from Dec 1 2018 to Jan 5 2019.
func diurnalRows(t *testing.T) []models.FeatureRow {
	t.Helper()
	var obs []models.Observation
	start := time.Date(2018, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 6, 0, 0, 0, 0, time.UTC)
	for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
		obs = append(obs,
			models.Observation{TS: ts, AreaType: "urban", StationType: "traffic", Altitude: 10, Longitude: 2.1, Latitude: 41.3, Value: 10 + float64(ts.Hour())},
			models.Observation{TS: ts, AreaType: "rural", StationType: "traffic", Altitude: 30, Longitude: 2.3, Latitude: 41.5, Value: 10 + float64(ts.Hour())},
		)
	}
	rows, dropped := pipeline.BuildFeatures(obs, pipeline.NewEncoding())
	require.Zero(t, dropped)
	return rows
}

func TestHourly(t *testing.T) {
	rows := diurnalRows(t)
	res, err := Hourly(rows, hourlyConfig(regression.KindGBM))
	require.NoError(t, err)

	assert.Equal(t, 31*24*2, res.TrainRows)
	// 2019-01-01 00:00 sits on the threshold and is excluded.
	assert.Equal(t, (5*24-1)*2, res.TestRows)
	assert.Greater(t, res.Score, 0.95)
	require.NotNil(t, res.Table.Score)
	assert.Equal(t, res.Score, *res.Table.Score)

	table := res.Table
	assert.Equal(t, "run-1", table.RunID)
	assert.Equal(t, models.GranularityHourly, table.Granularity)
	require.Len(t, table.Rows, 313)

	first, last := table.Rows[0], table.Rows[len(table.Rows)-1]
	assert.Equal(t, time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC), first.TS)
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), last.TS)
	assert.Equal(t, 2023, first.Year)
	assert.Equal(t, 2, first.Weekday, "2023-02-15 is a Wednesday")

	for _, r := range table.Rows {
		assert.Equal(t, 20.0, r.Altitude)
		assert.Equal(t, 2.2, math.Round(r.Longitude*10)/10)
		assert.Equal(t, 0, r.AreaCode, "ties go to the smaller code")
		assert.Equal(t, "test-v1", r.ModelVersion)
		assert.InDelta(t, 10+float64(r.Hour), r.Value, 1.0, "hour %d", r.Hour)
	}
}

func TestHourlyLinear(t *testing.T) {
	res, err := Hourly(diurnalRows(t), hourlyConfig(regression.KindLinear))
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 313)
	for _, r := range res.Table.Rows {
		assert.False(t, math.IsNaN(r.Value))
	}
}

func TestHourlyNoTrainingData(t *testing.T) {
	rows := []models.FeatureRow{{Observation: models.Observation{TS: threshold.Add(time.Hour), Value: 1}}}
	_, err := Hourly(rows, hourlyConfig(regression.KindGBM))
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestHourlyEmptyTestSplit(t *testing.T) {
	var rows []models.FeatureRow
	for _, r := range diurnalRows(t) {
		if r.TS.Before(threshold) {
			rows = append(rows, r)
		}
	}
	res, err := Hourly(rows, hourlyConfig(regression.KindGBM))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Score))
	assert.Nil(t, res.Table.Score)
	assert.Zero(t, res.TestRows)
}

// monthlyObs has one observation per month from 2015 to 2020 with value
// 2*(year-2015) + month.
func monthlyObs() []models.Observation {
	var obs []models.Observation
	for year := 2015; year <= 2020; year++ {
		for month := time.January; month <= time.December; month++ {
			v := 2*float64(year-2015) + float64(month)
			obs = append(obs,
				models.Observation{TS: time.Date(year, month, 10, 3, 0, 0, 0, time.UTC), Value: v - 1},
				models.Observation{TS: time.Date(year, month, 20, 15, 0, 0, 0, time.UTC), Value: v + 1},
			)
		}
	}
	return obs
}

func monthlyConfig(kind string) Config {
	cfg := hourlyConfig(kind)
	cfg.Start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.End = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	return cfg
}

func TestMonthly(t *testing.T) {
	res, err := Monthly(monthlyObs(), monthlyConfig(regression.KindGBM))
	require.NoError(t, err)

	assert.Len(t, res.Series, 72)
	assert.Equal(t, 48, res.TrainRows)
	assert.Equal(t, 24, res.TestRows)
	assert.Equal(t, models.GranularityMonthly, res.Table.Granularity)

	rows := res.Table.Rows
	require.Len(t, rows, 24)
	assert.Equal(t, time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), rows[0].TS)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), rows[23].TS)
	for _, r := range rows {
		assert.Equal(t, r.TS.Year(), r.Year)
		assert.Equal(t, int(r.TS.Month()), r.Month)
		assert.Equal(t, -1, r.AreaCode)
		assert.False(t, math.IsNaN(r.Value))
	}
}

func TestMonthlyLinearUsesYear(t *testing.T) {
	res, err := Monthly(monthlyObs(), monthlyConfig(regression.KindLinear))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Score, 1e-9)

	rows := res.Table.Rows
	require.Len(t, rows, 24)
	// January 2023: 2*8 + 1
	assert.InDelta(t, 17.0, rows[0].Value, 1e-6)
	// December 2024: 2*9 + 12
	assert.InDelta(t, 30.0, rows[23].Value, 1e-6)
}

func TestValueColumn(t *testing.T) {
	assert.Equal(t, "O3_forecast", ValueColumn("O3"))
}
