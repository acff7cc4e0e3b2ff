// Package forecast trains a regressor on the observations before a date
// threshold, scores it on those after, and predicts a synthetic horizon.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
	"github.com/wetdog/AQI-Catalonia-Challenge/regression"
)

var ErrNoTrainingData = errors.New("no training rows before the split threshold")

type Config struct {
	RunID        string
	Pollutant    string
	Threshold    time.Time
	Start        time.Time
	End          time.Time
	ModelKind    string
	ModelVersion string
	Model        regression.Options
}

type Result struct {
	Table     models.ForecastTable
	Score     float64
	TrainRows int
	TestRows  int
	// Series is the monthly mean series the monthly model was trained on.
	Series []pipeline.Point
}

// ValueColumn names the prediction column in tabular exports, e.g. "O3_forecast".
func ValueColumn(pollutant string) string {
	return pollutant + "_forecast"
}

// Hourly fits on the hourly feature rows and forecasts every hour in
// [cfg.Start, cfg.End]. Forecast rows carry the median altitude,
// longitude and latitude of rows and their most frequent category codes.
func Hourly(rows []models.FeatureRow, cfg Config) (*Result, error) {
	train, test := pipeline.Split(rows, func(r models.FeatureRow) time.Time { return r.TS }, cfg.Threshold)
	if len(train) == 0 {
		return nil, ErrNoTrainingData
	}

	opts := cfg.Model
	opts.Categorical = pipeline.HourlyCategorical
	model, err := regression.New(cfg.ModelKind, opts)
	if err != nil {
		return nil, err
	}

	X, y := hourlyMatrix(train)
	if err := model.Fit(X, y); err != nil {
		return nil, fmt.Errorf("fit hourly model: %w", err)
	}
	testX, testY := hourlyMatrix(test)
	score, err := regression.Score(model, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("score hourly model: %w", err)
	}

	fill := pipeline.FillValues(rows)
	horizon := pipeline.HourlyRange(cfg.Start, cfg.End)
	out := make([]models.Forecast, len(horizon))
	futureX := make([][]float64, len(horizon))
	for i, ts := range horizon {
		cal := pipeline.CalendarOf(ts)
		out[i] = models.Forecast{
			TS:           ts,
			Pollutant:    cfg.Pollutant,
			Granularity:  models.GranularityHourly,
			Hour:         cal.Hour,
			Day:          cal.Day,
			Weekday:      cal.Weekday,
			Month:        cal.Month,
			Year:         cal.Year,
			Altitude:     fill.Altitude,
			Longitude:    fill.Longitude,
			Latitude:     fill.Latitude,
			AreaCode:     fill.AreaCode,
			TypeCode:     fill.TypeCode,
			RunID:        cfg.RunID,
			ModelVersion: cfg.ModelVersion,
		}
		futureX[i] = pipeline.Vector(models.FeatureRow{
			Observation: models.Observation{Altitude: fill.Altitude, Longitude: fill.Longitude, Latitude: fill.Latitude},
			Hour:        cal.Hour,
			Day:         cal.Day,
			Weekday:     cal.Weekday,
			Month:       cal.Month,
			Year:        cal.Year,
		})
	}
	if err := predictInto(model, futureX, out); err != nil {
		return nil, err
	}

	return &Result{
		Table:     newTable(cfg, models.GranularityHourly, score, out),
		Score:     score,
		TrainRows: len(train),
		TestRows:  len(test),
	}, nil
}

// Monthly averages obs per calendar month, fits on (month, year) and
// forecasts every month end in [cfg.Start, cfg.End].
func Monthly(obs []models.Observation, cfg Config) (*Result, error) {
	series, err := pipeline.Aggregate(obs, models.GranularityMonthly)
	if err != nil {
		return nil, err
	}
	train, test := pipeline.Split(series, func(p pipeline.Point) time.Time { return p.TS }, cfg.Threshold)
	if len(train) == 0 {
		return nil, ErrNoTrainingData
	}

	opts := cfg.Model
	opts.Categorical = nil
	model, err := regression.New(cfg.ModelKind, opts)
	if err != nil {
		return nil, err
	}

	X, y := monthlyMatrix(train)
	if err := model.Fit(X, y); err != nil {
		return nil, fmt.Errorf("fit monthly model: %w", err)
	}
	testX, testY := monthlyMatrix(test)
	score, err := regression.Score(model, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("score monthly model: %w", err)
	}

	horizon := pipeline.MonthEndRange(cfg.Start, cfg.End)
	out := make([]models.Forecast, len(horizon))
	futureX := make([][]float64, len(horizon))
	for i, ts := range horizon {
		cal := pipeline.CalendarOf(ts)
		out[i] = models.Forecast{
			TS:           ts,
			Pollutant:    cfg.Pollutant,
			Granularity:  models.GranularityMonthly,
			Hour:         cal.Hour,
			Day:          cal.Day,
			Weekday:      cal.Weekday,
			Month:        cal.Month,
			Year:         cal.Year,
			AreaCode:     -1,
			TypeCode:     -1,
			RunID:        cfg.RunID,
			ModelVersion: cfg.ModelVersion,
		}
		futureX[i] = pipeline.MonthlyVector(ts)
	}
	if err := predictInto(model, futureX, out); err != nil {
		return nil, err
	}

	return &Result{
		Table:     newTable(cfg, models.GranularityMonthly, score, out),
		Score:     score,
		TrainRows: len(train),
		TestRows:  len(test),
		Series:    series,
	}, nil
}

func hourlyMatrix(rows []models.FeatureRow) ([][]float64, []float64) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = pipeline.Vector(r)
		y[i] = r.Value
	}
	return X, y
}

func monthlyMatrix(points []pipeline.Point) ([][]float64, []float64) {
	X := make([][]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		X[i] = pipeline.MonthlyVector(p.TS)
		y[i] = p.Mean
	}
	return X, y
}

func predictInto(model regression.Regressor, X [][]float64, out []models.Forecast) error {
	if len(X) == 0 {
		return nil
	}
	pred, err := model.Predict(X)
	if err != nil {
		return fmt.Errorf("predict horizon: %w", err)
	}
	for i := range out {
		out[i].Value = pred[i]
	}
	return nil
}

func newTable(cfg Config, granularity string, score float64, rows []models.Forecast) models.ForecastTable {
	t := models.ForecastTable{
		RunID:       cfg.RunID,
		Pollutant:   cfg.Pollutant,
		Granularity: granularity,
		Rows:        rows,
	}
	if !math.IsNaN(score) && !math.IsInf(score, 0) {
		s := score
		t.Score = &s
	}
	return t
}
