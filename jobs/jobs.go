package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wetdog/AQI-Catalonia-Challenge/artifact"
	"github.com/wetdog/AQI-Catalonia-Challenge/chart"
	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/forecast"
	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
	"github.com/wetdog/AQI-Catalonia-Challenge/regression"
)

const (
	ToolForecastHourly  = "forecast-hourly"
	ToolForecastMonthly = "forecast-monthly"
	ToolAggregate       = "month-agg"
	ToolPlot            = "plot-pollutant"
	ToolIngest          = "ingest"
)

// Artifact base names used in local mode.
const (
	hourlyArtifact    = "forecastH"
	monthlyArtifact   = "forecastM"
	aggregateArtifact = "aggregation"
)

var ErrNoDatabase = errors.New("no database configured (set DB_DSN)")

// Job runs one pass of a tool and describes what it produced.
type Job func(ctx context.Context, env *Env) (*models.RunSummary, error)

func ForecastHourly(ctx context.Context, env *Env) (*models.RunSummary, error) {
	cfg := env.Config
	in, err := load(env)
	if err != nil {
		return nil, err
	}

	enc, err := pipeline.LoadEncoding(cfg.Job.EncodingPath)
	if err != nil {
		return nil, err
	}
	rows, dropped := pipeline.BuildFeatures(in.Observations, enc)
	if dropped > 0 {
		log.Printf("dropped %d observations with missing station coordinates", dropped)
	}

	runID := uuid.NewString()
	res, err := forecast.Hourly(rows, forecastConfig(cfg, runID, cfg.Job.HourlyStart, cfg.Job.HourlyEnd))
	if err != nil {
		return nil, err
	}
	if err := enc.Save(cfg.Job.EncodingPath); err != nil {
		return nil, err
	}

	summary := in.summary(env, runID)
	summary.RowsDropped += dropped
	if err := finishForecast(ctx, env, res, hourlyArtifact, summary); err != nil {
		return nil, err
	}
	if env.Store != nil {
		upsertStations(ctx, env, in.Observations)
	}
	return summary, nil
}

func ForecastMonthly(ctx context.Context, env *Env) (*models.RunSummary, error) {
	cfg := env.Config
	in, err := load(env)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	res, err := forecast.Monthly(in.Observations, forecastConfig(cfg, runID, cfg.Job.MonthlyStart, cfg.Job.MonthlyEnd))
	if err != nil {
		return nil, err
	}

	summary := in.summary(env, runID)
	if err := finishForecast(ctx, env, res, monthlyArtifact, summary); err != nil {
		return nil, err
	}
	if env.Store != nil {
		storeAggregates(ctx, env, res.Series, models.GranularityMonthly, runID)
	}
	return summary, nil
}

// Aggregate writes the mean concentration per timestamp, or per month when
// AGG_GRANULARITY is monthly.
func Aggregate(ctx context.Context, env *Env) (*models.RunSummary, error) {
	cfg := env.Config
	in, err := load(env)
	if err != nil {
		return nil, err
	}
	points, err := pipeline.Aggregate(in.Observations, cfg.Job.AggGranularity)
	if err != nil {
		return nil, err
	}
	env.Metrics.ResultsGenerated.Add(float64(len(points)))
	log.Printf("mean %s aggregation: %d points", cfg.Job.AggGranularity, len(points))

	format, err := artifact.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	path, err := writeArtifact(ctx, env, aggregateArtifact, format, func(w io.Writer) error {
		return artifact.EncodeSeries(w, format, points)
	})
	if err != nil {
		return nil, err
	}
	if env.Store != nil {
		storeAggregates(ctx, env, points, cfg.Job.AggGranularity, runID)
	}

	summary := in.summary(env, runID)
	summary.Results = len(points)
	summary.Output = path
	return summary, nil
}

// Plot renders the hourly mean series to PLOT_PATH.
func Plot(ctx context.Context, env *Env) (*models.RunSummary, error) {
	cfg := env.Config
	in, err := load(env)
	if err != nil {
		return nil, err
	}
	points, err := pipeline.Aggregate(in.Observations, models.GranularityHourly)
	if err != nil {
		return nil, err
	}
	if err := chart.SaveMeanSeries(points, cfg.Job.Pollutant, cfg.Job.PlotPath); err != nil {
		return nil, err
	}
	env.Metrics.ResultsGenerated.Add(float64(len(points)))
	log.Printf("data plotting success for %d observations, chart in %s", len(in.Observations), cfg.Job.PlotPath)

	if env.Uploads != nil {
		data, err := os.ReadFile(cfg.Job.PlotPath)
		if err != nil {
			return nil, err
		}
		contentType := mime.TypeByExtension(filepath.Ext(cfg.Job.PlotPath))
		if err := env.Uploads.Put(ctx, cfg.Job.PlotPath, data, contentType); err != nil {
			log.Printf("chart upload failed: %v", err)
		}
	}

	summary := in.summary(env, uuid.NewString())
	summary.Results = len(points)
	summary.Output = cfg.Job.PlotPath
	return summary, nil
}

// Ingest loads the long observations and their stations into the database.
func Ingest(ctx context.Context, env *Env) (*models.RunSummary, error) {
	if env.Store == nil {
		return nil, ErrNoDatabase
	}
	in, err := load(env)
	if err != nil {
		return nil, err
	}

	stations := pipeline.Stations(in.Observations, time.Now().UTC())
	if _, err := env.Store.UpsertStations(ctx, stations); err != nil {
		return nil, err
	}
	copied, err := env.Store.CopyObservations(ctx, in.Observations)
	if err != nil {
		env.Metrics.StoreFailures.Add(float64(len(in.Observations)))
		return nil, err
	}
	env.Metrics.ResultsGenerated.Add(float64(copied))
	env.Metrics.ResultsStored.Add(float64(copied))
	log.Printf("ingested %d observations from %d stations", copied, len(stations))

	summary := in.summary(env, uuid.NewString())
	summary.Results = int(copied)
	summary.Output = "aqi_observations"
	return summary, nil
}

func forecastConfig(cfg *config.Config, runID string, start, end time.Time) forecast.Config {
	opts := regression.DefaultOptions()
	opts.LearningRate = cfg.Model.LearningRate
	opts.MaxIter = cfg.Model.MaxIter
	opts.ValidationFraction = cfg.Model.ValidationFraction
	opts.MaxLeafNodes = cfg.Model.MaxLeafNodes
	opts.MinSamplesLeaf = cfg.Model.MinSamplesLeaf
	opts.MaxBins = cfg.Model.MaxBins
	opts.L2Regularization = cfg.Model.L2Regularization
	opts.EarlyStopping = cfg.Model.EarlyStopping
	opts.Seed = int64(cfg.Model.Seed)

	return forecast.Config{
		RunID:        runID,
		Pollutant:    cfg.Job.Pollutant,
		Threshold:    cfg.Job.SplitThreshold,
		Start:        start,
		End:          end,
		ModelKind:    cfg.Model.Kind,
		ModelVersion: cfg.Model.Version,
		Model:        opts,
	}
}

// finishForecast records the score, writes the forecast artifact and stores
// the rows when a database is configured.
func finishForecast(ctx context.Context, env *Env, res *forecast.Result, name string, summary *models.RunSummary) error {
	cfg := env.Config
	if math.IsNaN(res.Score) {
		log.Printf("empty evaluation split (train=%d test=%d), score is undefined", res.TrainRows, res.TestRows)
	} else {
		env.Metrics.ModelScore.Set(res.Score)
		log.Printf("%s model score R2=%.4f (train=%d test=%d)", cfg.Model.Kind, res.Score, res.TrainRows, res.TestRows)
	}
	env.Metrics.ResultsGenerated.Add(float64(len(res.Table.Rows)))

	format, err := artifact.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	path, err := writeArtifact(ctx, env, name, format, func(w io.Writer) error {
		return artifact.EncodeForecast(w, format, res.Table)
	})
	if err != nil {
		return err
	}

	if env.Store != nil {
		stored, failed := env.Store.SaveForecasts(ctx, res.Table.Rows)
		env.Metrics.ResultsStored.Add(float64(stored))
		env.Metrics.StoreFailures.Add(float64(failed))
	}

	summary.Results = len(res.Table.Rows)
	summary.Score = res.Table.Score
	summary.Output = path
	return nil
}

// writeArtifact encodes the result, writes it to its local path and copies
// it to object storage when configured. Upload failures are only logged.
func writeArtifact(ctx context.Context, env *Env, name string, format artifact.Format, encode func(io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return "", fmt.Errorf("encode %s: %w", format, err)
	}
	path := artifact.OutputPath(env.Config.Job.Local, name, format, env.Config.Output.ResultPath)
	if err := (artifact.FileSink{}).Put(ctx, path, buf.Bytes(), format.ContentType()); err != nil {
		return "", err
	}
	log.Printf("results written to %s", path)

	if env.Uploads != nil {
		if err := env.Uploads.Put(ctx, path, buf.Bytes(), format.ContentType()); err != nil {
			log.Printf("artifact upload failed: %v", err)
		}
	}
	return path, nil
}

func storeAggregates(ctx context.Context, env *Env, points []pipeline.Point, granularity, runID string) {
	rows := make([]models.Aggregate, len(points))
	for i, p := range points {
		rows[i] = models.Aggregate{
			TS:          p.TS,
			Pollutant:   env.Config.Job.Pollutant,
			Granularity: granularity,
			Value:       p.Mean,
			Count:       p.Count,
			RunID:       runID,
		}
	}
	stored, failed := env.Store.SaveAggregates(ctx, rows)
	env.Metrics.ResultsStored.Add(float64(stored))
	env.Metrics.StoreFailures.Add(float64(failed))
}

func upsertStations(ctx context.Context, env *Env, obs []models.Observation) {
	stations := pipeline.Stations(obs, time.Now().UTC())
	if _, err := env.Store.UpsertStations(ctx, stations); err != nil {
		log.Printf("station upsert failed: %v", err)
	}
}
