package jobs

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
)

var header = []string{
	"CODI EUROPEU", "NOM ESTACIO", "DATA", "CONTAMINANT", "ALTITUD", "LONGITUD", "LATITUD",
	"AREA URBANA", "TIPUS ESTACIO", "GEOREFERENCIA", "NOM COMARCA",
}

type site struct {
	code, name, area, kind string
	alt, lon, lat          float64
}

var (
	gracia = site{"ES1438A", "Barcelona (Gracia)", "urban", "traffic", 57, 2.1534, 41.3987}
	vic    = site{"ES1910A", "Vic", "suburban", "background", 498, 2.2379, 41.9276}
)

// writeCSV writes one O3 row per site and day in [from, to] plus a PM10 row
// per day that the pollutant filter must drop.
func writeCSV(t *testing.T, path string, from, to time.Time, sites ...site) int {
	t.Helper()
	var b strings.Builder
	cols := append([]string(nil), header...)
	cols = append(cols, pipeline.HourColumns[:]...)
	b.WriteString(strings.Join(cols, ",") + "\n")

	rows := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for i, s := range sites {
			for _, pollutant := range []string{"O3", "PM10"} {
				cells := []string{
					s.code, s.name, day.Format("02/01/2006"), pollutant,
					fmt.Sprint(s.alt), fmt.Sprint(s.lon), fmt.Sprint(s.lat), s.area, s.kind,
					fmt.Sprintf(`"POINT (%v %v)"`, s.lon, s.lat), "Osona",
				}
				for h := 0; h < 24; h++ {
					v := 20 + float64(h) + float64(10*i) + float64(day.Day()%7)
					cells = append(cells, fmt.Sprint(v))
				}
				b.WriteString(strings.Join(cells, ",") + "\n")
				rows++
			}
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return rows
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Job: config.JobConfig{
			LocalFile:      "aqi_data.csv",
			InputsDir:      filepath.Join(dir, "inputs"),
			Pollutant:      "O3",
			SplitThreshold: date(2019, 1, 1),
			Hour24Policy:   "same-day",
			AggGranularity: "hourly",
			EncodingPath:   filepath.Join(dir, "encoding.json"),
			PlotPath:       filepath.Join(dir, "plots", "mean.png"),
			HourlyStart:    date(2023, 2, 15),
			HourlyEnd:      date(2023, 2, 28),
			MonthlyStart:   date(2023, 1, 1),
			MonthlyEnd:     date(2024, 12, 31),
		},
		Model: config.ModelConfig{
			Kind:               "gbm",
			Version:            "test",
			LearningRate:       0.1,
			MaxIter:            10,
			ValidationFraction: 0.15,
			MaxLeafNodes:       31,
			MinSamplesLeaf:     20,
			MaxBins:            255,
			EarlyStopping:      "auto",
			Seed:               1,
		},
		Output: config.OutputConfig{
			Format:     "gob",
			ResultPath: filepath.Join(dir, "outputs", "result"),
		},
	}
}

// ── Aggregate ──

func TestAggregateFromAsset(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Job.DIDs = `["did-1", "did-2"]`
	cfg.Output.Format = "json"
	written := writeCSV(t, filepath.Join(cfg.Job.InputsDir, "did-1", "0"), date(2019, 3, 1), date(2019, 3, 3), gracia, vic)

	summary, err := Aggregate(context.Background(), NewEnv(cfg, ToolAggregate))
	require.NoError(t, err)

	assert.Equal(t, written, summary.RowsRead)
	assert.Equal(t, 3*2*24, summary.RowsLong)
	assert.Equal(t, 72, summary.Results)
	assert.Equal(t, cfg.Output.ResultPath, summary.Output)

	data, err := os.ReadFile(cfg.Output.ResultPath)
	require.NoError(t, err)
	var means []float64
	require.NoError(t, json.Unmarshal(data, &means))
	require.Len(t, means, 72)
	// the "24h" reading lands on 00:00 of the same day: 20+23+day%7, averaged with Vic's +10
	assert.InDelta(t, 20+23+1+5, means[0], 1e-9)
	assert.InDelta(t, 20+0+1+5, means[1], 1e-9)
}

func TestAggregateMonthlyMultiAsset(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Job.DIDs = `["a", "b"]`
	cfg.Job.MultiAsset = true
	cfg.Job.AggGranularity = "monthly"
	writeCSV(t, filepath.Join(cfg.Job.InputsDir, "a", "0"), date(2019, 1, 30), date(2019, 2, 2), gracia)
	writeCSV(t, filepath.Join(cfg.Job.InputsDir, "b", "0"), date(2019, 3, 1), date(2019, 3, 1), vic)

	summary, err := Aggregate(context.Background(), NewEnv(cfg, ToolAggregate))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Results)
	assert.Equal(t, 5*24, summary.RowsLong)

	f, err := os.Open(cfg.Output.ResultPath)
	require.NoError(t, err)
	defer f.Close()
	var means []float64
	require.NoError(t, gob.NewDecoder(f).Decode(&means))
	assert.Len(t, means, 3)
}

func TestNoInputWritesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	for name, job := range map[string]Job{
		ToolAggregate:       Aggregate,
		ToolForecastHourly:  ForecastHourly,
		ToolForecastMonthly: ForecastMonthly,
		ToolPlot:            Plot,
	} {
		t.Run(name, func(t *testing.T) {
			env := NewEnv(cfg, name)
			err := Run(context.Background(), env, job)
			assert.ErrorIs(t, err, pipeline.ErrNoInput)
			assert.NoFileExists(t, cfg.Output.ResultPath)
			assert.NoFileExists(t, cfg.Job.PlotPath)
		})
	}
}

func TestMissingInputFileFails(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Job.DIDs = `["absent"]`
	_, err := Aggregate(context.Background(), NewEnv(cfg, ToolAggregate))
	require.Error(t, err)
	assert.False(t, errors.Is(err, pipeline.ErrNoInput))
}

// ── Forecasts ──

func TestForecastHourlyLocal(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := testConfig(dir)
	cfg.Job.Local = true
	writeCSV(t, filepath.Join(dir, "aqi_data.csv"), date(2018, 12, 1), date(2019, 1, 10), gracia, vic)

	summary, err := ForecastHourly(context.Background(), NewEnv(cfg, ToolForecastHourly))
	require.NoError(t, err)
	assert.Equal(t, 313, summary.Results)
	assert.Equal(t, "forecastH.gob", summary.Output)
	assert.NotEmpty(t, summary.RunID)

	f, err := os.Open(filepath.Join(dir, "forecastH.gob"))
	require.NoError(t, err)
	defer f.Close()
	var table models.ForecastTable
	require.NoError(t, gob.NewDecoder(f).Decode(&table))
	require.Len(t, table.Rows, 313)
	assert.Equal(t, summary.RunID, table.RunID)
	assert.Equal(t, date(2023, 2, 15), table.Rows[0].TS)
	assert.Equal(t, date(2023, 2, 28), table.Rows[312].TS)

	enc, err := pipeline.LoadEncoding(cfg.Job.EncodingPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"suburban", "urban"}, enc.Categories(pipeline.ColArea))
	assert.Equal(t, []string{"background", "traffic"}, enc.Categories(pipeline.ColStationType))
}

func TestForecastMonthlyJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Job.DIDs = `["did-1"]`
	cfg.Output.Format = "json"
	writeCSV(t, filepath.Join(cfg.Job.InputsDir, "did-1", "0"), date(2018, 10, 1), date(2019, 2, 28), gracia)

	summary, err := ForecastMonthly(context.Background(), NewEnv(cfg, ToolForecastMonthly))
	require.NoError(t, err)
	assert.Equal(t, 24, summary.Results)

	data, err := os.ReadFile(cfg.Output.ResultPath)
	require.NoError(t, err)
	var out struct {
		Granularity string           `json:"granularity"`
		Rows        []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, models.GranularityMonthly, out.Granularity)
	require.Len(t, out.Rows, 24)
	assert.Contains(t, out.Rows[0], "O3_forecast")
	assert.Equal(t, "2023-01-31T00:00:00Z", out.Rows[0]["datetime"])
}

func TestForecastWithoutTrainingData(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Job.DIDs = `["did-1"]`
	writeCSV(t, filepath.Join(cfg.Job.InputsDir, "did-1", "0"), date(2019, 5, 1), date(2019, 5, 2), gracia)

	_, err := ForecastMonthly(context.Background(), NewEnv(cfg, ToolForecastMonthly))
	require.Error(t, err)
	assert.NoFileExists(t, cfg.Output.ResultPath)
}

// ── Plot and ingest ──

func TestPlot(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Job.DIDs = `["did-1"]`
	writeCSV(t, filepath.Join(cfg.Job.InputsDir, "did-1", "0"), date(2019, 3, 1), date(2019, 3, 2), gracia)

	summary, err := Plot(context.Background(), NewEnv(cfg, ToolPlot))
	require.NoError(t, err)
	assert.Equal(t, 48, summary.Results)
	assert.FileExists(t, cfg.Job.PlotPath)
	assert.NoFileExists(t, cfg.Output.ResultPath)
}

func TestIngestRequiresDatabase(t *testing.T) {
	cfg := testConfig(t.TempDir())
	_, err := Ingest(context.Background(), NewEnv(cfg, ToolIngest))
	assert.ErrorIs(t, err, ErrNoDatabase)
}

// ── Run loop ──

type recordingPublisher struct {
	got []models.RunSummary
}

func (p *recordingPublisher) Publish(_ context.Context, s models.RunSummary) error {
	p.got = append(p.got, s)
	return nil
}

func TestRunPublishesSummary(t *testing.T) {
	env := NewEnv(testConfig(t.TempDir()), "fake")
	pub := &recordingPublisher{}
	env.Publisher = pub

	job := func(context.Context, *Env) (*models.RunSummary, error) {
		return &models.RunSummary{RunID: "r1", Tool: "fake", Results: 3}, nil
	}
	require.NoError(t, Run(context.Background(), env, job))
	require.Len(t, pub.got, 1)
	assert.Equal(t, "r1", pub.got[0].RunID)
	assert.False(t, pub.got[0].FinishedAt.IsZero())
}

func TestRunReturnsJobError(t *testing.T) {
	env := NewEnv(testConfig(t.TempDir()), "fake")
	boom := errors.New("boom")
	err := Run(context.Background(), env, func(context.Context, *Env) (*models.RunSummary, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunLoopUntilCancelled(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Job.RunInterval = 5 * time.Millisecond
	env := NewEnv(cfg, "fake")

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	job := func(context.Context, *Env) (*models.RunSummary, error) {
		if calls.Add(1) >= 3 {
			cancel()
		}
		// failures do not stop the loop
		return nil, errors.New("transient")
	}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, env, job) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestEnvClose(t *testing.T) {
	env := NewEnv(testConfig(t.TempDir()), "fake")
	var order []int
	env.onClose(func() error { order = append(order, 1); return errors.New("first") })
	env.onClose(func() error { order = append(order, 2); return nil })
	env.onClose(func() error { order = append(order, 3); return errors.New("third") })

	err := env.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "third")
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, env.Close())
}
