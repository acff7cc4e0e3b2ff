package jobs

import (
	"fmt"
	"log"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
)

// input is the melted long table of every resolved asset.
type input struct {
	Paths        []string
	Observations []models.Observation
	RowsRead     int
	Stats        pipeline.MeltStats
}

func resolver(cfg *config.Config) pipeline.Resolver {
	return pipeline.Resolver{
		Local:     cfg.Job.Local,
		LocalFile: cfg.Job.LocalFile,
		InputsDir: cfg.Job.InputsDir,
		DIDs:      cfg.Job.DIDs,
	}
}

func load(env *Env) (*input, error) {
	cfg := env.Config
	policy, err := pipeline.ParseHour24Policy(cfg.Job.Hour24Policy)
	if err != nil {
		return nil, err
	}

	var paths []string
	if cfg.Job.MultiAsset {
		paths, err = resolver(cfg).ResolveAll()
	} else {
		var path string
		path, err = resolver(cfg).Resolve()
		paths = []string{path}
	}
	if err != nil {
		return nil, err
	}

	opts := pipeline.DefaultReadOptions()
	opts.Pollutant = cfg.Job.Pollutant

	in := &input{Paths: paths}
	for _, path := range paths {
		table, err := pipeline.ReadWideFile(path, opts)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		obs, stats, err := pipeline.Melt(table.Records, policy)
		if err != nil {
			return nil, fmt.Errorf("reshape %s: %w", path, err)
		}
		in.RowsRead += table.RowsRead
		in.Stats.Records += stats.Records
		in.Stats.Rows += stats.Rows
		in.Stats.Missing += stats.Missing
		in.Observations = append(in.Observations, obs...)
	}

	env.Metrics.RowsRead.Add(float64(in.RowsRead))
	env.Metrics.ObservationsLong.Add(float64(in.Stats.Kept()))
	env.Metrics.RowsDropped.Add(float64(in.Stats.Missing))
	log.Printf("reshaped %d %s records into %d observations (%d missing dropped)",
		in.Stats.Records, cfg.Job.Pollutant, in.Stats.Kept(), in.Stats.Missing)
	return in, nil
}

func (in *input) summary(env *Env, runID string) *models.RunSummary {
	return &models.RunSummary{
		RunID:       runID,
		Tool:        env.Tool,
		Pollutant:   env.Config.Job.Pollutant,
		RowsRead:    in.RowsRead,
		RowsLong:    in.Stats.Kept(),
		RowsDropped: in.Stats.Missing,
	}
}
